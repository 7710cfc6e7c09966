// Copyright (c) 2026 Heimursaga. All rights reserved.

package sec

// # User Roles

// Role represents the authorization level granted to an account.
type Role string

const (
	// Unrestricted system access
	RoleAdmin Role = "admin"

	// Can publish expeditions and receive sponsorships
	RoleCreator Role = "creator"

	// Default role for standard registered users
	RoleUser Role = "user"
)

// # Role Membership

// OneOf reports whether the role is a member of the allowed set.
//
// Authorization on Heimursaga is declared as an explicit allow-list per
// route, not a hierarchy: a route either names the role or it doesn't.
func (r Role) OneOf(allowed ...Role) bool {
	for _, candidate := range allowed {
		if r == candidate {
			return true
		}
	}
	return false
}

// Valid reports whether the role is one of the known role values.
func (r Role) Valid() bool {
	return r.OneOf(RoleAdmin, RoleCreator, RoleUser)
}
