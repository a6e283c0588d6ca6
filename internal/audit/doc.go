// Package audit implements async event dispatching for authentication events
// (logins, refresh rotations, logouts, registrations, revocations).
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, slog, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: structured audit record with timestamp, type, user, email, IP, metadata.
//
// A sink that panics is isolated: the dispatcher recovers, counts the failure
// and keeps delivering. Authentication outcomes never depend on audit delivery.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import careAuth or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
