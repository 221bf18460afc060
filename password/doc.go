// Package password implements salted one-way password hashing.
//
// Two algorithms are provided behind the [Hasher] interface:
//
//	$2a$<cost>$<salt+hash>                              (bcrypt, default)
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Migrating] hashes with one algorithm while still verifying hashes produced by
// another, and reports them through NeedsRehash so the caller can upgrade the
// stored hash after the next successful sign-in.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Enforce password policy beyond the algorithm's byte limit.
//   - Log plaintext passwords or hash parameters at runtime.
package password
