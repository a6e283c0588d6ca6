// Package limiters provides the careAuth throttling policies built on top of
// the internal/rate primitives.
//
// # Limiters
//
//   - [LoginLimiter]: attempts per (client ip, email) pair, 5 per 15 minutes by default.
//   - [RegistrationLimiter]: sign-ups per client ip, 3 per hour by default.
//
// All limiters are nil-safe: calling any method on a nil receiver allows the
// attempt.
//
// # What this package must NOT do
//
//   - Import careAuth or any sibling internal package except internal/rate.
//   - Make policy decisions beyond counting; flow functions decide consequences.
package limiters
