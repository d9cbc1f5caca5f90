package model

import (
	"errors"
	"time"
)

// Role is a typed identifier for a row in the `roles` table. The catalog
// is small and fixed, so the ids are mirrored here as constants and
// validated at the boundary instead of trusting raw numeric input.
type Role uint8

const (
	RoleCustomer Role = 1
	RoleVendor   Role = 2
	RoleAdmin    Role = 3
	RoleSupport  Role = 4
)

// ErrInvalidRole is returned when a numeric id or name does not map to a
// known role. Callers should reject the request rather than fall through
// to a default.
var ErrInvalidRole = errors.New("invalid role")

var roleNames = map[Role]string{
	RoleCustomer: "CUSTOMER",
	RoleVendor:   "VENDOR",
	RoleAdmin:    "ADMIN",
	RoleSupport:  "SUPPORT",
}

// Name returns the canonical upper-case role name, or the empty string
// for an unknown role.
func (r Role) Name() string { return roleNames[r] }

// Valid reports whether the role id is part of the catalog.
func (r Role) Valid() bool { _, ok := roleNames[r]; return ok }

// SelfAssignable reports whether the role may be chosen at signup.
// ADMIN and SUPPORT are provisioned by operators, never self-assigned.
func (r Role) SelfAssignable() bool {
	return r == RoleCustomer || r == RoleVendor
}

// RoleFromID validates a raw numeric id coming off the wire.
func RoleFromID(id uint8) (Role, error) {
	r := Role(id)
	if !r.Valid() {
		return 0, ErrInvalidRole
	}
	return r, nil
}

// RoleFromName maps a canonical role name to its id. The caller is
// expected to upper-case and trim the input first.
func RoleFromName(name string) (Role, error) {
	for r, n := range roleNames {
		if n == name {
			return r, nil
		}
	}
	return 0, ErrInvalidRole
}

// Roles lists the full catalog in id order, for the public catalog
// endpoint and for seeding checks.
func Roles() []Role {
	return []Role{RoleCustomer, RoleVendor, RoleAdmin, RoleSupport}
}

// RoleAssignment models a row in the `role_assignments` join table.
// A user may hold several roles; at most one assignment per user has
// IsDefault set, and that row decides which role a freshly issued token
// embeds as the acting role.
//
// Fields:
//  UserID    – owner of the assignment.
//  RoleID    – granted role.
//  IsDefault – whether this role is the user's current default.
//  CreatedAt – when the role was granted.
type RoleAssignment struct {
	UserID    uint64    // role_assignments.user_id
	RoleID    Role      // role_assignments.role_id
	IsDefault bool      // role_assignments.is_default
	CreatedAt time.Time // role_assignments.created_at
}
