// Package password hashes and verifies account passwords.
//
// # Output format
//
// New hashes are argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher.Verify] also accepts bcrypt hashes ($2a$, $2b$, $2y$) written by
// earlier deployments. [Hasher.NeedsRehash] reports true for those and for
// argon2id hashes produced with weaker parameters, so callers can re-hash
// after the next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other careAuth package.
//   - Log plaintext passwords.
package password
