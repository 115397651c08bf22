package enums

import "fmt"

// RoleName identifies the role assigned to a user.
type RoleName string

const (
	RoleSuperAdmin RoleName = "superAdmin"
	RoleAdmin      RoleName = "admin"
	RoleCustomer   RoleName = "customer"
	RoleVendor     RoleName = "vendor"
)

var validRoleNames = []RoleName{
	RoleSuperAdmin,
	RoleAdmin,
	RoleCustomer,
	RoleVendor,
}

// String implements fmt.Stringer.
func (s RoleName) String() string {
	return string(s)
}

// IsValid reports whether the value is a known RoleName.
func (s RoleName) IsValid() bool {
	for _, candidate := range validRoleNames {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseRoleName converts raw input into a RoleName.
func ParseRoleName(value string) (RoleName, error) {
	for _, candidate := range validRoleNames {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
