package identity

import "strings"

// Role is the coarse role carried by every principal.
type Role string

const (
	// RoleAdmin is granted out of band; sign-up never assigns it.
	RoleAdmin Role = "ADMIN"
	// RoleUser is the role assigned at sign-up.
	RoleUser Role = "USER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// ParseRole maps a stored or claimed role string to a Role. Matching is
// case-insensitive. ok is false for unknown roles.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", false
	}
	return r, true
}

// Identity is the resolved principal for one request. It is a value type and
// is passed explicitly to every guarded operation.
type Identity struct {
	ID       int64
	Username string
	Email    string
	Role     Role
}

// IsZero reports whether id carries no principal.
func (id Identity) IsZero() bool {
	return id.ID == 0 && id.Username == ""
}

// IsAdmin reports whether the identity holds the ADMIN role.
func (id Identity) IsAdmin() bool {
	return id.Role == RoleAdmin
}

// CanonicalEmail trims and lower-cases an email address. Every lookup and
// every stored email goes through this function.
func CanonicalEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
