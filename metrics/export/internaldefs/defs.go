package internaldefs

import (
	taskAuth "github.com/MrEthical07/taskAuth"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   taskAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram.
type HistogramDef struct {
	ID   taskAuth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: taskAuth.MetricSignUpSuccess, Name: "taskauth_sign_up_success_total", Help: "Successful sign-ups."},
	{ID: taskAuth.MetricSignUpDuplicate, Name: "taskauth_sign_up_duplicate_total", Help: "Sign-ups rejected for a taken username or email."},
	{ID: taskAuth.MetricSignUpFailure, Name: "taskauth_sign_up_failure_total", Help: "Sign-ups failed for invalid input or store errors."},
	{ID: taskAuth.MetricSignInSuccess, Name: "taskauth_sign_in_success_total", Help: "Successful sign-ins."},
	{ID: taskAuth.MetricSignInFailure, Name: "taskauth_sign_in_failure_total", Help: "Failed sign-ins."},
	{ID: taskAuth.MetricPasswordRehash, Name: "taskauth_password_rehash_total", Help: "Password hashes upgraded on sign-in."},
	{ID: taskAuth.MetricResolveSuccess, Name: "taskauth_resolve_success_total", Help: "Tokens resolved to an identity."},
	{ID: taskAuth.MetricResolveMalformed, Name: "taskauth_resolve_malformed_total", Help: "Tokens rejected as malformed."},
	{ID: taskAuth.MetricResolveBadSignature, Name: "taskauth_resolve_bad_signature_total", Help: "Tokens rejected for a bad signature."},
	{ID: taskAuth.MetricResolveExpired, Name: "taskauth_resolve_expired_total", Help: "Tokens rejected as expired."},
	{ID: taskAuth.MetricResolveIdentityNotFound, Name: "taskauth_resolve_identity_not_found_total", Help: "Valid tokens whose account no longer exists."},
	{ID: taskAuth.MetricAuthorizationDenied, Name: "taskauth_authorization_denied_total", Help: "Guard denials."},
	{ID: taskAuth.MetricConflictingUpdate, Name: "taskauth_conflicting_update_total", Help: "Profile writes lost to a concurrent update."},
	{ID: taskAuth.MetricProfileUpdate, Name: "taskauth_profile_update_total", Help: "Profile updates."},
	{ID: taskAuth.MetricPasswordChange, Name: "taskauth_password_change_total", Help: "Password changes."},
	{ID: taskAuth.MetricProfileDelete, Name: "taskauth_profile_delete_total", Help: "Deleted profiles."},
}

var HistogramDefs = []HistogramDef{
	{ID: taskAuth.MetricResolveLatency, Name: "taskauth_resolve_latency_seconds", Help: "Token resolution latency."},
}

// AuditDroppedName is the counter for events lost to dispatcher backpressure.
const AuditDroppedName = "taskauth_audit_dropped_total"

// HistogramUpperBounds are the finite bucket bounds in seconds. The last
// engine bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the engine's eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
