// Package taskAuth is the authentication and authorization core of a
// multi-user task tracker.
//
// An [Engine] is assembled with [Builder] and a [CredentialStore]. It signs
// users up and in, issuing HMAC-signed session tokens, resolves those tokens
// back to an [Identity], and runs profile operations behind the ownership
// rules in package permission. Engine methods are safe for concurrent use
// after [Builder.Build].
//
// # Error classes
//
// Every failure belongs to one class, tested with the Is* helpers:
//
//   - unauthenticated: bad credentials or any token problem. Callers must
//     answer these uniformly.
//   - forbidden: a guard denial, see [ErrDenied] and permission.ReasonOf.
//   - conflict: a lost optimistic-concurrency race, safe to retry.
//
// [ErrDuplicateIdentity] and [ErrInvalidRequest] are returned as-is. Store
// connectivity errors are returned unwrapped and never reclassified.
//
// # Layout
//
// The leaf packages identity, jwt, password, permission and session carry no
// dependency on this package. Stores under store/, the task service in tasks
// and the HTTP layer in httpapi build on top of it.
package taskAuth
