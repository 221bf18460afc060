// Package session resolves the caller's identity from a bearer token.
//
// [Resolver.Resolve] decodes the token with the configured codec and maps the
// claims to an [identity.Identity]. When a [Loader] is supplied the account is
// re-read on every call, so a deleted account fails with
// [ErrIdentityNotFound] even while its token is still unexpired.
//
// # What this package must NOT do
//
//   - Keep server-side session state. Tokens are the only session record.
//   - Hide codec failures. Decode errors come back unchanged.
package session
