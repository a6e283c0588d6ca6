// Package security builds the startup security report: a secret-free summary
// of token lifetimes, hashing cost, cookie flags and rate policies, with
// warnings for settings production mode would reject.
package security
