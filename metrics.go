package taskAuth

import internalmetrics "github.com/MrEthical07/taskAuth/internal/metrics"

// MetricID identifies a counter or histogram in the in-process metrics.
type MetricID = internalmetrics.MetricID

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

const (
	MetricSignUpSuccess           = internalmetrics.MetricSignUpSuccess
	MetricSignUpDuplicate         = internalmetrics.MetricSignUpDuplicate
	MetricSignUpFailure           = internalmetrics.MetricSignUpFailure
	MetricSignInSuccess           = internalmetrics.MetricSignInSuccess
	MetricSignInFailure           = internalmetrics.MetricSignInFailure
	MetricPasswordRehash          = internalmetrics.MetricPasswordRehash
	MetricResolveSuccess          = internalmetrics.MetricResolveSuccess
	MetricResolveMalformed        = internalmetrics.MetricResolveMalformed
	MetricResolveBadSignature     = internalmetrics.MetricResolveBadSignature
	MetricResolveExpired          = internalmetrics.MetricResolveExpired
	MetricResolveIdentityNotFound = internalmetrics.MetricResolveIdentityNotFound
	MetricAuthorizationDenied     = internalmetrics.MetricAuthorizationDenied
	MetricConflictingUpdate       = internalmetrics.MetricConflictingUpdate
	MetricProfileUpdate           = internalmetrics.MetricProfileUpdate
	MetricPasswordChange          = internalmetrics.MetricPasswordChange
	MetricProfileDelete           = internalmetrics.MetricProfileDelete
	// MetricResolveLatency is the only histogram.
	MetricResolveLatency = internalmetrics.MetricResolveLatency
)

// Metrics is the engine's counter set.
type Metrics = internalmetrics.Metrics

// NewMetrics creates a Metrics for cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:                 cfg.Enabled,
		EnableLatencyHistograms: cfg.EnableLatencyHistograms,
	})
}
