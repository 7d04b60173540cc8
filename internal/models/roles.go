package models

import "fmt"

// Role is the closed set of privilege levels an account can hold.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleViewer  Role = "viewer"
)

// ParseRole validates a raw role string against the closed set.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleAdmin, RoleManager, RoleViewer:
		return Role(raw), nil
	}
	return "", fmt.Errorf("unknown role %q", raw)
}

// Level returns the privilege rank of the role; higher outranks lower.
func (r Role) Level() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleManager:
		return 2
	case RoleViewer:
		return 1
	}
	return 0
}

// AtLeast reports whether r carries at least the privilege of other.
func (r Role) AtLeast(other Role) bool {
	return r.Level() >= other.Level()
}

func (r Role) String() string {
	return string(r)
}
