package domain

// Role is the RBAC role carried on a user record.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleUser      Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RoleUser:
		return true
	}
	return false
}

// RequireRole checks that the resolved user holds one of the allowed roles.
// The role comes from the directory-resolved user, never from raw token
// claims, so an admin demotion takes effect on the next cache miss without a
// re-login. Pure function, no I/O.
func RequireRole(user *User, allowed ...Role) error {
	if user == nil {
		return ErrForbidden
	}
	for _, r := range allowed {
		if user.Role == r {
			return nil
		}
	}
	return ErrForbidden
}
