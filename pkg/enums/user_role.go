package enums

import "fmt"

// UserRole describes what a user does in the field organisation.
type UserRole string

const (
	UserRoleTechnician UserRole = "technician"
	UserRoleLead       UserRole = "lead"
	UserRoleDispatcher UserRole = "dispatcher"
)

var validUserRoles = []UserRole{
	UserRoleTechnician,
	UserRoleLead,
	UserRoleDispatcher,
}

// IsValid reports whether the value is a known UserRole.
func (r UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}
