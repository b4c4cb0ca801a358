package iam

import (
	"fmt"
	"strconv"
	"strings"
)

// Role is an ordinal on the fixed four-tier scale. Comparison is the only
// authorization primitive: a higher ordinal includes every lower one.
type Role int

const (
	// RoleNone is the effective role of an account without assignments. It grants nothing.
	RoleNone Role = iota
	RoleDefaultUser
	RoleUser
	RoleAdmin
	RoleSuperAdmin
)

var roleNames = map[Role]string{
	RoleDefaultUser: "default_user",
	RoleUser:        "User",
	RoleAdmin:       "Admin",
	RoleSuperAdmin:  "super_admin",
}

// String returns the wire name of the role. Ordinals outside the scale render as "User".
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return roleNames[RoleUser]
}

// Valid reports whether r can be assigned or requested.
func (r Role) Valid() bool {
	return r >= RoleDefaultUser && r <= RoleSuperAdmin
}

// ParseRole accepts a wire name (case-insensitive) or an ordinal between 1 and 4.
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if role := Role(n); role.Valid() {
			return role, nil
		}
		return RoleNone, fmt.Errorf("%w: %d", ErrInvalidRole, n)
	}
	for role, name := range roleNames {
		if strings.EqualFold(s, name) {
			return role, nil
		}
	}
	return RoleNone, fmt.Errorf("%w: %q", ErrInvalidRole, s)
}
