package user

import (
	"errors"
	"strings"
)

var (
	ErrIDRequired  = errors.New("user: id is required")
	ErrInvalidRole = errors.New("user: invalid role")
)

type ID string

type Role string

const (
	RoleGuest Role = "guest"
	RoleHost  Role = "host"
	RoleAdmin Role = "admin"
	// RoleSystem is never issued to callers; the engine uses it for forced transitions.
	RoleSystem Role = "system"
)

// Principal is the acting identity supplied by the identity provider on every call.
type Principal struct {
	ID   ID
	Role Role
}

// System is the principal used when the engine itself drives a transition.
var System = Principal{ID: "system", Role: RoleSystem}

func NewPrincipal(id string, role string) (Principal, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Principal{}, ErrIDRequired
	}
	r, err := ParseRole(role)
	if err != nil {
		return Principal{}, err
	}
	return Principal{ID: ID(id), Role: r}, nil
}

// ParseRole accepts the externally issued roles only.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleGuest:
		return RoleGuest, nil
	case RoleHost:
		return RoleHost, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", ErrInvalidRole
}

func (p Principal) IsAdmin() bool  { return p.Role == RoleAdmin }
func (p Principal) IsSystem() bool { return p.Role == RoleSystem }
func (p Principal) IsZero() bool   { return p.ID == "" }
