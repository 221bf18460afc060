// Package middleware adapts Engine identity resolution to net/http.
//
// [Guard] reads "Authorization: Bearer <token>", resolves the caller through
// Engine.ResolveIdentity, and stores the resulting Identity in the request
// context. Handlers call [IdentityFromContext] once and pass the identity
// explicitly to every core call; nothing below the handler reads the context
// for the principal.
//
// Every authentication failure is answered with the same 401 body so clients
// cannot tell which check failed. Store failures during re-fetch are 500.
package middleware
