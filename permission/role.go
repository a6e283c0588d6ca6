package permission

import "strings"

// Role is a named bundle of permissions with a fixed position in the role
// hierarchy. The numeric value is the hierarchy ordinal.
type Role int

const (
	RoleElderly      Role = 20
	RoleFamily       Role = 40
	RoleVolunteer    Role = 60
	RoleProfessional Role = 80
	RoleSuperAdmin   Role = 100
)

var roleNames = map[Role]string{
	RoleElderly:      "elderly",
	RoleFamily:       "family",
	RoleVolunteer:    "volunteer",
	RoleProfessional: "professional",
	RoleSuperAdmin:   "super_admin",
}

// Roles returns every known role in ascending hierarchy order.
func Roles() []Role {
	return []Role{RoleElderly, RoleFamily, RoleVolunteer, RoleProfessional, RoleSuperAdmin}
}

// String returns the wire name of the role, or "" for unknown values.
func (r Role) String() string {
	return roleNames[r]
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// ParseRole resolves a wire name such as "super_admin" to its [Role].
func ParseRole(name string) (Role, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for role, n := range roleNames {
		if n == name {
			return role, true
		}
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so roles can be read from
// YAML/JSON route rule files by name.
func (r *Role) UnmarshalText(text []byte) error {
	role, ok := ParseRole(string(text))
	if !ok {
		return &UnknownRoleError{Name: string(text)}
	}
	*r = role
	return nil
}

// UnknownRoleError is returned when a role name does not match the hierarchy.
type UnknownRoleError struct {
	Name string
}

func (e *UnknownRoleError) Error() string {
	return "unknown role: " + e.Name
}

// Compare returns -1, 0 or +1 when a is lower than, equal to, or higher than b
// in the hierarchy.
func Compare(a, b Role) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// HasMinimumRole reports whether role sits at or above required in the
// hierarchy. Unknown roles never satisfy a minimum.
func HasMinimumRole(role, required Role) bool {
	if !role.Valid() || !required.Valid() {
		return false
	}
	return Compare(role, required) >= 0
}

// HasAnyRole reports whether role is a member of allowed.
func HasAnyRole(role Role, allowed []Role) bool {
	for _, candidate := range allowed {
		if candidate == role {
			return true
		}
	}
	return false
}
