package model

import "time"

// Session models an entry in the `sessions` table. The table is an
// append-only audit trail: rows are flipped inactive on logout or when a
// new signin supersedes them, but never deleted. The plain token is not
// stored; only its SHA-256 hash.
//
// Fields:
//  ID         – primary key identifier.
//  UserID     – owner of the session.
//  TokenHash  – SHA-256 hex digest of the issued token.
//  IsLoggedIn – whether the session is still live.
//  LastLogin  – when the session was established.
//  ExpiresAt  – hard expiry mirroring the token's exp claim.
//  CreatedAt  – timestamp of creation.
type Session struct {
	ID         uint64    // sessions.id
	UserID     uint64    // sessions.user_id
	TokenHash  string    // sessions.token_hash
	IsLoggedIn bool      // sessions.is_logged_in
	LastLogin  time.Time // sessions.last_login
	ExpiresAt  time.Time // sessions.expires_at
	CreatedAt  time.Time // sessions.created_at
}
