// Package httpapi exposes the auth engine and task service over JSON/HTTP
// with a chi router.
//
// Errors are RFC 7807 problem documents. Every authentication failure maps
// to the same 401 document, denials to 403 with the denial reason, duplicate
// identities to 409, and lost optimistic-concurrency races to 409 with
// "retryable": true. Anything unrecognized is a 500 without detail.
package httpapi
