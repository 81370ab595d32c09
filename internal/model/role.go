package model

// Role codes as constants
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// ValidRole reports whether code names a known role.
func ValidRole(code string) bool {
	return code == RoleCustomer || code == RoleAdmin
}
