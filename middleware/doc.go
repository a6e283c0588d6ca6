// Package middleware is the request gate for careAuth-protected HTTP services.
//
// # Gate
//
// [Gate] resolves a [RouteRule] for each request by longest path prefix,
// reads the access token from the access cookie or an "Authorization: Bearer"
// header and asks an [Authorizer] (normally *careAuth.Engine) to verify it.
// Paths under the API prefix get JSON 401/403 bodies; browser paths are
// redirected to the login page or the landing page instead.
//
// Paths without a rule are public unless they fall under one of the
// configured protected areas, where a valid session is enough.
//
// # Handler helpers
//
// Resource handlers read the principal with [RequireAuthenticated],
// [RequirePermission] and [RequireAnyRole].
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to the Authorizer).
//   - Touch the refresh registry or the rate limiter.
package middleware
