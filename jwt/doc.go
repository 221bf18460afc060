// Package jwt signs and verifies session tokens with a symmetric key.
//
// Tokens carry the username as subject plus id, email and role claims. Decode
// reports exactly one of [ErrMalformedToken], [ErrBadSignature] or
// [ErrExpired] on failure, and expiry is only checked once the signature has
// verified.
//
// There is no revocation list. A token stays valid until exp even after a
// password change or account deletion; callers that need tighter bounds use a
// short TTL and re-fetch the account on resolve.
package jwt
