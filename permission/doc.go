// Package permission decides whether an identity may act on a task or profile.
//
// Every predicate is pure: it takes an [identity.Identity] and a resource
// reference and returns a [Decision]. A denial is returned as a value with a
// stable reason and never panics or errors. [Decision.Err] converts a denial
// into a [*DeniedError] wrapping [ErrDenied] for callers that propagate errors.
//
// Rules:
//
//   - edit, delete and executor management: task author only
//   - status change: assigned executors only, authorship does not count
//   - comment: any resolved identity
//   - profile update and deletion: the profile's owner only
//
// ADMIN has no implicit override. [Policy.AdminOverride] enables one explicitly.
//
// # What this package must NOT do
//
//   - Perform I/O or look anything up. Callers load the resource first.
//   - Read an identity from context. Identities are always passed in.
package permission
