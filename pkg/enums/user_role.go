package enums

import "fmt"

// UserRole is carried in the access token and gates write endpoints.
type UserRole string

const (
	UserRoleAdmin  UserRole = "admin"
	UserRoleAgent  UserRole = "agent"
	UserRoleViewer UserRole = "viewer"
)

var validUserRoles = []UserRole{
	UserRoleAdmin,
	UserRoleAgent,
	UserRoleViewer,
}

func (r UserRole) String() string {
	return string(r)
}

func (r UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// CanWrite reports whether the role may modify quotes and parts lists.
func (r UserRole) CanWrite() bool {
	return r == UserRoleAdmin || r == UserRoleAgent
}

func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}
