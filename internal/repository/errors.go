// Package repository persists users, role assignments, sessions and the
// password-change audit log over database/sql. The sentinel values below
// let handlers distinguish failure scenarios without inspecting driver
// errors: conflicts map to HTTP 409, missing associations to 404, and
// authentication failures to 401. Anything else is an internal error —
// handlers log the cause and return a generic message.
package repository

import "errors"

// ErrEmailExists is returned when an insert would violate the unique
// constraint on users.email. Signup pre-checks existence so this
// surfaces as a domain conflict, not a raw constraint-violation leak.
var ErrEmailExists = errors.New("email already exists")

// ErrNotFound is returned when a required record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrRoleNotAssociated is returned when a user tries to switch to a role
// they were never granted.
var ErrRoleNotAssociated = errors.New("role not associated with user")

// ErrAlreadyDefault is returned when the target role is already the
// user's default. The switch is idempotent: callers reissue a token from
// current state and perform no writes.
var ErrAlreadyDefault = errors.New("role already default")

// ErrInvalidResetCode is returned when a reset code does not match any
// user or its expiry has passed. The two cases are indistinguishable on
// purpose.
var ErrInvalidResetCode = errors.New("invalid or expired reset code")
