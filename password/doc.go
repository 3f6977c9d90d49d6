// Package password implements password hashing and password policy for
// the credential lifecycle.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Parameters travel with the hash, so verification of historical hashes
// keeps working after a parameter upgrade and reuse checks can compare a
// candidate password against history entries hashed under older costs.
//
// # Architecture boundaries
//
// This package owns hashing, verification, and static policy (length,
// character classes, denylist). Reuse history and rate limiting are
// enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive hashes.
//   - Import any other accesscore package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
