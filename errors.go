package taskAuth

import (
	"errors"

	"github.com/MrEthical07/taskAuth/jwt"
	"github.com/MrEthical07/taskAuth/permission"
	"github.com/MrEthical07/taskAuth/session"
)

var (
	// ErrDuplicateIdentity is returned when the username or email is taken.
	ErrDuplicateIdentity = errors.New("duplicate identity")
	// ErrAuthenticationFailed covers unknown email and wrong password alike.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrMalformedToken is returned for tokens that cannot be parsed, use an
	// unexpected algorithm, or carry an empty subject.
	ErrMalformedToken = jwt.ErrMalformedToken
	// ErrBadSignature is returned when a token's signature does not verify.
	ErrBadSignature = jwt.ErrBadSignature
	// ErrExpired is returned for correctly signed tokens past their expiry.
	ErrExpired = jwt.ErrExpired
	// ErrIdentityNotFound is returned when a token's account no longer exists.
	ErrIdentityNotFound = session.ErrIdentityNotFound
	// ErrConflictingUpdate is returned when an optimistic write lost a race.
	// The caller may reload and retry.
	ErrConflictingUpdate = errors.New("conflicting update")
	// ErrDenied is wrapped by every authorization denial.
	ErrDenied = permission.ErrDenied
	// ErrInvalidRequest is returned for empty or oversized inputs.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrEngineNotReady is returned when an Engine was not built by Builder.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// Errors a CredentialStore implementation returns. The engine maps them to
// the errors above; any other store error is passed through unchanged.
var (
	// ErrRecordNotFound is returned by finders and Delete for unknown ids.
	ErrRecordNotFound = errors.New("credential record not found")
	// ErrRecordDuplicate is returned by Create and Update when a unique
	// constraint on username or email rejects the write.
	ErrRecordDuplicate = errors.New("credential record duplicate")
	// ErrVersionConflict is returned by Update when the stored version does
	// not match the record's version.
	ErrVersionConflict = errors.New("credential record version conflict")
)

// IsUnauthenticated reports whether err should surface as "unauthenticated".
// Callers must not reveal which check failed.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrAuthenticationFailed) ||
		errors.Is(err, ErrMalformedToken) ||
		errors.Is(err, ErrBadSignature) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrIdentityNotFound)
}

// IsForbidden reports whether err is an authorization denial.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrDenied)
}

// IsConflict reports whether err is a lost optimistic-concurrency race.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflictingUpdate)
}

// IsRetryable reports whether the operation may succeed if repeated.
func IsRetryable(err error) bool {
	return IsConflict(err)
}
