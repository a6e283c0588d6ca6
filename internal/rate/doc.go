// Package rate implements the fixed-window attempt counter that throttles
// credential guessing.
//
// # Window semantics
//
// The first attempt for a key opens a window of the configured length and
// sets count to 1. Each further attempt inside the window increments the
// count; the attempt is denied once count exceeds the maximum. After the
// window elapses the next attempt starts a fresh window. Reset clears a key
// immediately.
//
// Counting is delegated to a [Store]. [MemoryStore] serializes access with a
// mutex; [RedisStore] performs increment and expiry in one Lua script so the
// read-modify-write is atomic across processes.
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (those live in internal/limiters).
//   - Be imported outside the careAuth module.
package rate
