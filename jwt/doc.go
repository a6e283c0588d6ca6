// Package jwt is the token codec: it signs and verifies the compact HS256 tokens
// that carry careAuth identity claims.
//
// # Contract
//
// [Manager.Issue] embeds {userId, email, role, kind, iat, exp, jti}.
// [Manager.Verify] returns a uniform invalid result for any failure (bad
// signature, wrong algorithm, expiry, malformed input) so callers cannot learn
// why a token was refused. The codec is kind-agnostic; callers that need an
// access or refresh token check [Claims.Kind] themselves.
//
// # What this package must NOT do
//
//   - Perform I/O or consult revocation state.
//   - Import careAuth, refresh, or permission.
package jwt
