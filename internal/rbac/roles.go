package rbac

import "strings"

// Role names. Keep these stable; they are carried in access tokens and stored
// on user records.
const (
	RoleCitizen = "citizen"
	RoleStaff   = "staff"
)

// HasRole reports whether roles contains role, ignoring case.
func HasRole(roles []string, role string) bool {
	for _, r := range roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

func HasAnyRole(roles []string, allowed ...string) bool {
	for _, a := range allowed {
		if HasRole(roles, a) {
			return true
		}
	}
	return false
}
