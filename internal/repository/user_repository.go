package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/marketplace-backend/internal/model"
	"github.com/iliyamo/marketplace-backend/internal/utils"
)

// UserRepo persists user records together with the reset-code state
// embedded on them. Multi-row mutations (account creation, reset
// completion, password change) run inside a single transaction; the
// database is the only source of truth shared across server instances,
// so the transaction boundary is the concurrency-correctness mechanism.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `id, email, password_hash, first_name, last_name, display_name,
	avatar_url, email_verified, is_active, reset_code, reset_code_expires,
	created_at, updated_at`

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface{ Scan(dest ...any) error }

func scanUser(row rowScanner) (model.User, error) {
	var (
		u            model.User
		passwordHash sql.NullString
		displayName  sql.NullString
		avatarURL    sql.NullString
		resetCode    sql.NullString
		resetExpires sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &passwordHash, &u.FirstName, &u.LastName,
		&displayName, &avatarURL, &u.EmailVerified, &u.IsActive,
		&resetCode, &resetExpires, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	if passwordHash.Valid {
		v := passwordHash.String
		u.PasswordHash = &v
	}
	if displayName.Valid {
		v := displayName.String
		u.DisplayName = &v
	}
	if avatarURL.Valid {
		v := avatarURL.String
		u.AvatarURL = &v
	}
	if resetCode.Valid {
		v := resetCode.String
		u.ResetCode = &v
	}
	if resetExpires.Valid {
		v := resetExpires.Time
		u.ResetCodeExpires = &v
	}
	return u, nil
}

// GetByEmail fetches a user by normalized email. sql.ErrNoRows maps to
// ErrNotFound so handlers never see driver errors.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
	if err == sql.ErrNoRows {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	if err == sql.ErrNoRows {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// CreateAccount inserts the user, its default role assignment and the
// initial active session as one transaction. Email uniqueness is
// pre-checked so the common conflict surfaces as ErrEmailExists; the
// unique index still backstops concurrent signups and duplicate-key
// failures from it are translated the same way.
func (r *UserRepo) CreateAccount(ctx context.Context, acc NewAccount, issue TokenFunc) (model.User, utils.SignedToken, error) {
	email := strings.ToLower(strings.TrimSpace(acc.Email))

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.User{}, utils.SignedToken{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM users WHERE email=? LIMIT 1", email).Scan(&exists)
	if err == nil {
		return model.User{}, utils.SignedToken{}, ErrEmailExists
	}
	if err != sql.ErrNoRows {
		return model.User{}, utils.SignedToken{}, err
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, first_name, last_name, display_name, email_verified, is_active)
		 VALUES (?,?,?,?,?,0,1)`,
		email, acc.PasswordHash, acc.FirstName, acc.LastName, acc.DisplayName)
	if err != nil {
		if isDuplicateKey(err) {
			return model.User{}, utils.SignedToken{}, ErrEmailExists
		}
		return model.User{}, utils.SignedToken{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, utils.SignedToken{}, err
	}

	u, err := scanUser(tx.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=?", uint64(id)))
	if err != nil {
		return model.User{}, utils.SignedToken{}, err
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO role_assignments (user_id, role_id, is_default) VALUES (?,?,1)",
		u.ID, uint8(acc.Role)); err != nil {
		return model.User{}, utils.SignedToken{}, err
	}

	// Token issuance needs the generated user id, so it happens inside
	// the transaction; it is pure CPU work and never touches the
	// database.
	tok, err := issue(u)
	if err != nil {
		return model.User{}, utils.SignedToken{}, err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO sessions (user_id, token_hash, is_logged_in, last_login, expires_at) VALUES (?,?,1,UTC_TIMESTAMP(),?)",
		u.ID, tok.Hash, tok.Exp); err != nil {
		return model.User{}, utils.SignedToken{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.User{}, utils.SignedToken{}, err
	}
	return u, tok, nil
}

// UpsertOAuth looks a user up by the provider-verified email and creates
// the account on first login: null password hash, email_verified set,
// CUSTOMER granted as the default role. On subsequent logins only the
// avatar is filled in, and only if currently unset.
func (r *UserRepo) UpsertOAuth(ctx context.Context, p OAuthProfile) (model.User, bool, error) {
	email := strings.ToLower(strings.TrimSpace(p.Email))

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.User{}, false, err
	}
	defer func() { _ = tx.Rollback() }()

	u, err := scanUser(tx.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
	switch err {
	case nil:
		if u.AvatarURL == nil && p.AvatarURL != nil {
			if _, err := tx.ExecContext(ctx,
				"UPDATE users SET avatar_url=? WHERE id=? AND avatar_url IS NULL",
				*p.AvatarURL, u.ID); err != nil {
				return model.User{}, false, err
			}
			u.AvatarURL = p.AvatarURL
		}
		if err := tx.Commit(); err != nil {
			return model.User{}, false, err
		}
		return u, false, nil
	case sql.ErrNoRows:
		// first login through this provider: create the account
	default:
		return model.User{}, false, err
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, first_name, last_name, avatar_url, email_verified, is_active)
		 VALUES (?,NULL,?,?,?,1,1)`,
		email, p.FirstName, p.LastName, p.AvatarURL)
	if err != nil {
		if isDuplicateKey(err) {
			return model.User{}, false, ErrEmailExists
		}
		return model.User{}, false, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, false, err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO role_assignments (user_id, role_id, is_default) VALUES (?,?,1)",
		uint64(id), uint8(model.RoleCustomer)); err != nil {
		return model.User{}, false, err
	}
	u, err = scanUser(tx.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=?", uint64(id)))
	if err != nil {
		return model.User{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return model.User{}, false, err
	}
	return u, true, nil
}

// SetResetCode persists a fresh code and expiry on the user row,
// overwriting any unconsumed prior code. At most one code is pending per
// user at any time.
func (r *UserRepo) SetResetCode(ctx context.Context, userID uint64, code string, expires time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET reset_code=?, reset_code_expires=? WHERE id=?",
		code, expires, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// FindByResetCode returns the user holding a matching, unexpired code.
// Expired and unknown codes are indistinguishable to the caller.
func (r *UserRepo) FindByResetCode(ctx context.Context, code string, now time.Time) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE reset_code=? AND reset_code_expires > ? LIMIT 1",
		code, now.UTC()))
	if err == sql.ErrNoRows {
		return model.User{}, ErrInvalidResetCode
	}
	return u, err
}

// CompleteReset consumes a still-valid code: in one transaction the
// password hash is replaced, the reset pair is nulled, the audit row is
// appended and every active session is flipped inactive. The UPDATE is
// conditional on the code still matching, so a concurrent completion of
// the same code commits at most once — the loser sees zero rows and
// reports ErrInvalidResetCode (no replay).
func (r *UserRepo) CompleteReset(ctx context.Context, userID uint64, code, oldHash, newHash string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET password_hash=?, reset_code=NULL, reset_code_expires=NULL
		 WHERE id=? AND reset_code=? AND reset_code_expires > UTC_TIMESTAMP()`,
		newHash, userID, code)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidResetCode
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO password_changes (user_id, old_password_hash, new_password_hash) VALUES (?,?,?)",
		userID, oldHash, newHash); err != nil {
		return err
	}
	// A completed reset proves the old credential was lost; sessions
	// minted with it must not outlive it.
	if _, err := tx.ExecContext(ctx,
		"UPDATE sessions SET is_logged_in=0 WHERE user_id=? AND is_logged_in=1",
		userID); err != nil {
		return err
	}
	return tx.Commit()
}

// ChangePassword replaces the hash and appends the audit row in one
// transaction (profile change-password flow; the caller has already
// verified the current password).
func (r *UserRepo) ChangePassword(ctx context.Context, userID uint64, oldHash, newHash string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"UPDATE users SET password_hash=? WHERE id=?", newHash, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO password_changes (user_id, old_password_hash, new_password_hash) VALUES (?,?,?)",
		userID, oldHash, newHash); err != nil {
		return err
	}
	return tx.Commit()
}

// isDuplicateKey reports whether the driver error is MySQL 1062
// (duplicate entry for a unique key).
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}
