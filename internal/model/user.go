package model

import "time"

// User represents an account record as stored in the `users` table.
// Each field corresponds to a column in the database. The json tags are
// omitted here because these structs are used internally by the
// repository layer; handlers define separate response types with
// appropriate JSON tags.
//
// PasswordHash is nullable: accounts created through an OAuth provider
// carry no local credential until the owner sets one. The reset fields
// form a pair — whenever ResetCode is non-null, ResetCodeExpires is
// non-null as well, and both are cleared together when a reset is
// consumed.
//
// Fields:
//  ID               – primary key identifier of the user.
//  Email            – unique, lower-cased email address.
//  PasswordHash     – bcrypt hashed password (nil for OAuth-only accounts).
//  FirstName        – given name.
//  LastName         – family name.
//  DisplayName      – optional public name shown in storefronts.
//  AvatarURL        – optional profile image URL.
//  EmailVerified    – whether the address has been confirmed.
//  IsActive         – whether the account is active.
//  ResetCode        – pending 6-digit password reset code (nullable).
//  ResetCodeExpires – expiry of the pending reset code (nullable).
//  CreatedAt        – timestamp of creation.
//  UpdatedAt        – timestamp of last update.
type User struct {
	ID               uint64     // users.id
	Email            string     // users.email
	PasswordHash     *string    // users.password_hash (nullable)
	FirstName        string     // users.first_name
	LastName         string     // users.last_name
	DisplayName      *string    // users.display_name (nullable)
	AvatarURL        *string    // users.avatar_url (nullable)
	EmailVerified    bool       // users.email_verified
	IsActive         bool       // users.is_active
	ResetCode        *string    // users.reset_code (nullable)
	ResetCodeExpires *time.Time // users.reset_code_expires (nullable)
	CreatedAt        time.Time  // users.created_at
	UpdatedAt        time.Time  // users.updated_at
}

// HasPassword reports whether the account carries a local credential.
// OAuth-only accounts have none until the owner completes a password
// reset or sets one explicitly.
func (u User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// PasswordChange is an append-only audit row in the `password_changes`
// table. A record is written on every successful password change, whether
// it came from the profile change-password flow or from completing a
// reset. Rows are never updated or deleted.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – user whose password changed.
//  OldHash   – bcrypt hash before the change (empty for OAuth-only accounts).
//  NewHash   – bcrypt hash after the change.
//  ChangedAt – when the change was committed.
type PasswordChange struct {
	ID        uint64    // password_changes.id
	UserID    uint64    // password_changes.user_id
	OldHash   string    // password_changes.old_password_hash
	NewHash   string    // password_changes.new_password_hash
	ChangedAt time.Time // password_changes.changed_at
}
