package password

import "errors"

// ErrPasswordTooLong is returned by Hash when the input exceeds the
// algorithm's byte limit.
var ErrPasswordTooLong = errors.New("password exceeds maximum length")

// Hasher produces and checks salted one-way password hashes.
//
// Verify never returns an error: a malformed stored hash simply fails to
// verify. Implementations are safe for concurrent use.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, encoded string) bool
	// NeedsRehash reports whether encoded was produced with parameters weaker
	// than the current ones. It is false for hashes the hasher does not
	// recognize.
	NeedsRehash(encoded string) bool
	// Recognizes reports whether encoded is in this hasher's format.
	Recognizes(encoded string) bool
}

// Migrating hashes with a primary algorithm and still verifies hashes made by
// legacy ones. Legacy hashes report NeedsRehash so callers can upgrade them on
// the next successful sign-in.
type Migrating struct {
	primary Hasher
	legacy  []Hasher
}

// NewMigrating wraps primary with zero or more legacy hashers.
func NewMigrating(primary Hasher, legacy ...Hasher) (*Migrating, error) {
	if primary == nil {
		return nil, errors.New("primary hasher required")
	}
	for _, h := range legacy {
		if h == nil {
			return nil, errors.New("nil legacy hasher")
		}
	}
	return &Migrating{primary: primary, legacy: legacy}, nil
}

func (m *Migrating) Hash(plain string) (string, error) {
	return m.primary.Hash(plain)
}

func (m *Migrating) Verify(plain, encoded string) bool {
	if m.primary.Recognizes(encoded) {
		return m.primary.Verify(plain, encoded)
	}
	for _, h := range m.legacy {
		if h.Recognizes(encoded) {
			return h.Verify(plain, encoded)
		}
	}
	return false
}

func (m *Migrating) NeedsRehash(encoded string) bool {
	if m.primary.Recognizes(encoded) {
		return m.primary.NeedsRehash(encoded)
	}
	for _, h := range m.legacy {
		if h.Recognizes(encoded) {
			return true
		}
	}
	return false
}

func (m *Migrating) Recognizes(encoded string) bool {
	if m.primary.Recognizes(encoded) {
		return true
	}
	for _, h := range m.legacy {
		if h.Recognizes(encoded) {
			return true
		}
	}
	return false
}
