// Package internal groups the private building blocks behind the careAuth
// engine.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: dependency-injected orchestrators for every Engine operation
//   - limiters: login and registration rate policies
//   - metrics: lock-free counters and latency histograms
//   - rate: fixed-window counters over Redis or memory
//   - security: startup security report
//
// Nothing here appears in the public careAuth API.
package internal
