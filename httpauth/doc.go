// Package httpauth exposes the careAuth session service over HTTP: login,
// refresh, logout, registration and the current-user endpoint. Tokens travel
// in HttpOnly cookies configured by a session.Policy.
package httpauth
