package auth

import "errors"

// Role is an authorisation tier.
type Role string

const (
	// RoleAdmin is the household owner: full dashboard, every command.
	RoleAdmin Role = "admin"

	// RolePartner is a restricted credential shared with the daycare.
	RolePartner Role = "partner"

	// RoleAnonymous is an unauthenticated caller.
	RoleAnonymous Role = "anonymous"
)

// ParseRole maps a configured role name to a Role. Only admin and partner
// can be configured.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RolePartner:
		return Role(s), true
	default:
		return "", false
	}
}

// Identity is the authenticated caller of one request.
type Identity struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Anonymous is the identity of an unauthenticated caller.
var Anonymous = Identity{Role: RoleAnonymous}

// IsAnonymous reports whether id carries no usable role.
func (id Identity) IsAnonymous() bool {
	return id.Role == "" || id.Role == RoleAnonymous
}

// Sentinel errors for auth operations.
var (
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("not authorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("invalid token")
)
