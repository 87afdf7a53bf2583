package domain

import "fmt"

// Role is the closed set of caller roles.
type Role int

const (
	RoleUser Role = iota + 1
	RoleAdmin
)

// ParseRole converts the stored role string into a Role.
func ParseRole(value string) (Role, error) {
	switch value {
	case "user":
		return RoleUser, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return 0, fmt.Errorf("unknown role %q", value)
	}
}

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAdmin:
		return "admin"
	default:
		return ""
	}
}

// MarshalText encodes the role as its stored string.
func (r Role) MarshalText() ([]byte, error) {
	s := r.String()
	if s == "" {
		return nil, fmt.Errorf("invalid role %d", int(r))
	}
	return []byte(s), nil
}

// UnmarshalText decodes a stored role string.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Identity is the authenticated caller resolved by the access gate.
type Identity struct {
	ID   string
	Role Role
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	switch i.Role {
	case RoleAdmin:
		return true
	case RoleUser:
		return false
	default:
		return false
	}
}
