// Package careAuth is the identity and authorization core of the care
// coordination platform: signed access and refresh tokens, single-use refresh
// rotation, rate-limited login and registration, and role/permission checks
// for the HTTP gate.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// careAuth is the public surface. It exposes [Engine], [Builder], [Config] and
// value types ([Principal], [TokenPair]). Flow orchestration, rate limiting and
// audit dispatch live under internal/ and are never exported. Account storage
// belongs to the caller and is reached through [CredentialStore]; the
// credentials package provides a Postgres implementation. HTTP wiring lives in
// middleware (request gate) and httpauth (login, refresh, logout, register).
//
// # What this package must NOT do
//
//   - Persist raw refresh tokens. The registry stores SHA-256 references only.
//   - Reveal whether a login failed on the email or on the password.
//   - Start without a signing secret.
//   - Import any sub-package that re-imports careAuth (no import cycles).
package careAuth
