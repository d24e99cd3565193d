package enums

import "fmt"

// Role is the single site-wide role a user holds.
type Role string

const (
	RoleEmperor  Role = "emperor"
	RoleDuke     Role = "duke"
	RoleKnight   Role = "knight"
	RoleCivilian Role = "civilian"
	RoleTempUser Role = "temp_user"
)

var validRoles = []Role{
	RoleEmperor,
	RoleDuke,
	RoleKnight,
	RoleCivilian,
	RoleTempUser,
}

// assignableDefaultRoles may be configured as the role for self-registration.
var assignableDefaultRoles = []Role{RoleDuke, RoleKnight, RoleCivilian}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsAssignableDefault reports whether the role may be handed out on registration.
func (r Role) IsAssignableDefault() bool {
	for _, candidate := range assignableDefaultRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
