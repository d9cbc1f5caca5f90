package repository

import (
	"context"
	"time"

	"github.com/iliyamo/marketplace-backend/internal/model"
	"github.com/iliyamo/marketplace-backend/internal/utils"
)

// TokenFunc issues a signed session token for a freshly created user.
// CreateAccount calls it inside the insert transaction, once the user id
// exists, so the initial session row can commit atomically with the
// account itself.
type TokenFunc func(model.User) (utils.SignedToken, error)

// NewAccount carries the validated signup input into the user store.
// PasswordHash is already bcrypt-hashed by the caller.
type NewAccount struct {
	FirstName    string
	LastName     string
	DisplayName  *string
	Email        string
	PasswordHash string
	Role         model.Role
}

// OAuthProfile carries the provider-verified identity used by the OAuth
// login upsert.
type OAuthProfile struct {
	Email     string
	FirstName string
	LastName  string
	AvatarURL *string
	Provider  string
}

// UserStore captures the persistence operations the auth handlers need
// for user records, including the reset-code state embedded on them.
type UserStore interface {
	// CreateAccount inserts the user, its default role assignment and the
	// initial active session in a single transaction. The token returned
	// by issue is the one registered in the session row.
	CreateAccount(ctx context.Context, acc NewAccount, issue TokenFunc) (model.User, utils.SignedToken, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	// UpsertOAuth creates the account on first login (null password,
	// email verified, CUSTOMER default role) and on subsequent logins
	// fills in the avatar only if currently unset. The bool reports
	// whether a new account was created.
	UpsertOAuth(ctx context.Context, p OAuthProfile) (model.User, bool, error)
	// SetResetCode overwrites any unconsumed prior code.
	SetResetCode(ctx context.Context, userID uint64, code string, expires time.Time) error
	// FindByResetCode returns the user holding a matching, unexpired
	// code, or ErrInvalidResetCode.
	FindByResetCode(ctx context.Context, code string, now time.Time) (model.User, error)
	// CompleteReset consumes a still-valid code in one transaction:
	// update the hash, null the reset pair, append the audit row and
	// invalidate the user's active sessions. ErrInvalidResetCode if the
	// code was consumed or expired in the meantime.
	CompleteReset(ctx context.Context, userID uint64, code, oldHash, newHash string) error
	// ChangePassword updates the hash and appends the audit row in one
	// transaction.
	ChangePassword(ctx context.Context, userID uint64, oldHash, newHash string) error
}

// RoleStore captures role catalog and assignment operations.
type RoleStore interface {
	Catalog(ctx context.Context) ([]model.Role, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.RoleAssignment, error)
	// SwitchDefault atomically clears the user's default flag and sets it
	// on the target assignment. ErrRoleNotAssociated when the user was
	// never granted the role, ErrAlreadyDefault when no write is needed.
	SwitchDefault(ctx context.Context, userID uint64, role model.Role) error
}

// SessionStore captures the session registry operations.
type SessionStore interface {
	// Start invalidates all prior active sessions and records the new one
	// in a single transaction.
	Start(ctx context.Context, userID uint64, tokenHash string, expires time.Time) error
	// InvalidateActive flips every active session inactive and reports
	// how many rows were touched.
	InvalidateActive(ctx context.Context, userID uint64) (int64, error)
	// IsActive reports whether the given token hash is the user's live,
	// unexpired session.
	IsActive(ctx context.Context, userID uint64, tokenHash string) (bool, error)
}

// ChangeLogStore exposes the append-only password-change audit trail.
type ChangeLogStore interface {
	// History lists a user's password changes, newest first.
	History(ctx context.Context, userID uint64) ([]model.PasswordChange, error)
}
