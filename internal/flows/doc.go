// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunLogin, RunRefresh, RunLogout, RunRegister,
// RunAuthenticate) accepts a typed dependency struct and returns results
// without side-effects beyond those dependencies. Metric IDs, audit event
// names and host sentinel errors are injected through the Metrics, Events and
// Errors fields so the flows never import the root package.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the token codec, refresh registry, rate
// limiters, credential store, audit dispatcher, and metrics. They do NOT own
// any of these resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import careAuth (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency functions.
package flows
