package constants

// Roles issued by the auth service that may act on behalf of other users.
const (
	Superadmin = "superadmin"
	Admin      = "admin"
)

// IsAdminRole reports whether role may act on behalf of other users.
func IsAdminRole(role string) bool {
	return role == Admin || role == Superadmin
}
