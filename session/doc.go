// Package session writes and clears the browser cookies that carry careAuth
// access and refresh tokens.
//
// # Cookies
//
// Both cookies are HttpOnly, SameSite=Lax and scoped to Path "/". Secure is
// set in production. The access cookie lives 3600 seconds; the refresh cookie
// lives 604800 seconds, or 2592000 when the user asked to be remembered.
//
// # Architecture boundaries
//
// This package only translates tokens to and from HTTP cookies. It does NOT
// verify tokens or decide whether a request is authenticated.
//
// # What this package must NOT do
//
//   - Import careAuth, jwt, or permission (no upward imports).
//   - Log or otherwise expose cookie values.
package session
