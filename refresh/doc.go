// Package refresh is the server-side registry of issued refresh tokens.
//
// Refresh tokens are signed and self-describing, but a signature alone cannot
// express "already used". The registry records every issued refresh token by
// its [TokenRef] (hex SHA-256; raw tokens are never persisted) and enforces
// single use: [Registry.Consume] succeeds exactly once per token, even under
// concurrent callers, and every later attempt fails with [ErrAlreadyConsumed].
//
// # Backends
//
//   - [MemoryStore]: single process, mutex-guarded, expired records evicted.
//   - [RedisStore]: one hash per record plus an owner index; consume is a Lua
//     compare-and-set.
//   - [PostgresStore]: conditional UPDATE on a refresh_tokens table.
//
// # What this package must NOT do
//
//   - Verify token signatures (the caller does that first).
//   - Import careAuth or jwt.
package refresh
