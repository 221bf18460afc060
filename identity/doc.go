// Package identity defines the principal shape shared by the token codec, the
// session resolver, the authorization guard and the task workflow.
//
// # What this package must NOT do
//
//   - Import any other taskAuth package.
//   - Carry credentials. Password hashes live in CredentialRecord only.
package identity
