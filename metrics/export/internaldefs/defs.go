package internaldefs

import (
	careAuth "github.com/MrEthical07/careAuth"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   careAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   careAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: careAuth.MetricLoginSuccess, Name: "careauth_login_success_total", Help: "Successful login attempts."},
	{ID: careAuth.MetricLoginFailure, Name: "careauth_login_failure_total", Help: "Failed login attempts."},
	{ID: careAuth.MetricLoginRateLimited, Name: "careauth_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: careAuth.MetricLoginAccountBlocked, Name: "careauth_login_account_blocked_total", Help: "Logins refused for pending, rejected or deactivated accounts."},
	{ID: careAuth.MetricRefreshSuccess, Name: "careauth_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: careAuth.MetricRefreshFailure, Name: "careauth_refresh_failure_total", Help: "Failed refresh rotations."},
	{ID: careAuth.MetricRefreshReuseDetected, Name: "careauth_refresh_reuse_detected_total", Help: "Refresh tokens presented after consumption."},
	{ID: careAuth.MetricLogout, Name: "careauth_logout_total", Help: "Logout operations."},
	{ID: careAuth.MetricRevokeAll, Name: "careauth_revoke_all_total", Help: "Revoke-all operations for a user."},
	{ID: careAuth.MetricRegistrationSuccess, Name: "careauth_registration_success_total", Help: "Accounts registered."},
	{ID: careAuth.MetricRegistrationDuplicate, Name: "careauth_registration_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: careAuth.MetricRegistrationRateLimited, Name: "careauth_registration_rate_limited_total", Help: "Rate-limited registration attempts."},
	{ID: careAuth.MetricRateLimitHit, Name: "careauth_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
	{ID: careAuth.MetricAuthenticateFailure, Name: "careauth_authenticate_failure_total", Help: "Access tokens that failed verification."},
	{ID: careAuth.MetricGateUnauthenticated, Name: "careauth_gate_unauthenticated_total", Help: "Requests denied for missing or invalid credentials."},
	{ID: careAuth.MetricGateForbidden, Name: "careauth_gate_forbidden_total", Help: "Requests denied for insufficient role or permission."},
	{ID: careAuth.MetricPasswordUpgraded, Name: "careauth_password_upgraded_total", Help: "Stored hashes rehashed with current parameters after login."},
	{ID: careAuth.MetricPasswordChangeSuccess, Name: "careauth_password_change_success_total", Help: "Completed password changes."},
	{ID: careAuth.MetricPasswordChangeInvalidOld, Name: "careauth_password_change_invalid_old_total", Help: "Password changes refused for a wrong current password."},
}

// HistogramDefs lists every histogram in export order.
var HistogramDefs = []HistogramDef{
	{ID: careAuth.MetricAuthenticateLatency, Name: "careauth_authenticate_latency_seconds", Help: "Access token verification latency."},
}

// HistogramBounds are the upper bounds, in seconds, of the fixed buckets.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// BucketLabels renders each bucket's upper bound as a Prometheus-style le
// value, +Inf included.
var BucketLabels = []string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
