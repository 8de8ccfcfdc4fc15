// Copyright (c) 2026 CareLink. All rights reserved.
// Author: dev@carelink.app

package sec

// # User Roles
//
// Roles are a flat membership set, not a hierarchy: a user may hold any
// combination, and authorization is a simple membership test.

const (
	// Unrestricted system access
	RoleAdmin = "admin"

	// A member looking for care services for their dependents
	RoleCareseeker = "careseeker"

	// A member offering care services on the marketplace
	RoleCaregiver = "caregiver"
)

// KnownRoles lists every role the platform seeds at startup.
func KnownRoles() []string {
	return []string{RoleAdmin, RoleCareseeker, RoleCaregiver}
}

// IsKnownRole reports whether name is one of the seeded role names.
func IsKnownRole(name string) bool {
	switch name {
	case RoleAdmin, RoleCareseeker, RoleCaregiver:
		return true
	}
	return false
}

// HasRole reports whether the role set contains the wanted role name.
func HasRole(roles []string, want string) bool {
	for _, role := range roles {
		if role == want {
			return true
		}
	}
	return false
}
