package otel

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	taskAuth "github.com/MrEthical07/taskAuth"
	"github.com/MrEthical07/taskAuth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() taskAuth.MetricsSnapshot
	AuditDropped() uint64
}

// series is one engine counter reported under a family's attributes.
type series struct {
	id   taskAuth.MetricID
	opts []metric.ObserveOption
}

// family groups engine counters that differ only by an attribute, so
// dashboards can break sign-in or resolve traffic down by outcome.
type family struct {
	name   string
	desc   string
	unit   string
	series []series

	instrument metric.Int64ObservableCounter
}

func keyed(key, value string, id taskAuth.MetricID) series {
	return series{
		id:   id,
		opts: []metric.ObserveOption{metric.WithAttributeSet(attribute.NewSet(attribute.String(key, value)))},
	}
}

func plain(id taskAuth.MetricID) series {
	return series{id: id}
}

func families() []*family {
	return []*family{
		{
			name: "taskauth.sign_up", desc: "Sign-up attempts by outcome.", unit: "{attempt}",
			series: []series{
				keyed("outcome", "success", taskAuth.MetricSignUpSuccess),
				keyed("outcome", "duplicate", taskAuth.MetricSignUpDuplicate),
				keyed("outcome", "failure", taskAuth.MetricSignUpFailure),
			},
		},
		{
			name: "taskauth.sign_in", desc: "Sign-in attempts by outcome.", unit: "{attempt}",
			series: []series{
				keyed("outcome", "success", taskAuth.MetricSignInSuccess),
				keyed("outcome", "failure", taskAuth.MetricSignInFailure),
			},
		},
		{
			name: "taskauth.password.rehash", desc: "Stored hashes upgraded on sign-in.", unit: "{hash}",
			series: []series{plain(taskAuth.MetricPasswordRehash)},
		},
		{
			name: "taskauth.identity.resolve", desc: "Bearer token resolutions by outcome.", unit: "{token}",
			series: []series{
				keyed("outcome", "success", taskAuth.MetricResolveSuccess),
				keyed("outcome", "malformed", taskAuth.MetricResolveMalformed),
				keyed("outcome", "bad_signature", taskAuth.MetricResolveBadSignature),
				keyed("outcome", "expired", taskAuth.MetricResolveExpired),
				keyed("outcome", "identity_not_found", taskAuth.MetricResolveIdentityNotFound),
			},
		},
		{
			name: "taskauth.authorization.denied", desc: "Guard denials.", unit: "{decision}",
			series: []series{plain(taskAuth.MetricAuthorizationDenied)},
		},
		{
			name: "taskauth.profile.write", desc: "Completed profile writes by operation.", unit: "{write}",
			series: []series{
				keyed("operation", "update", taskAuth.MetricProfileUpdate),
				keyed("operation", "password_change", taskAuth.MetricPasswordChange),
				keyed("operation", "delete", taskAuth.MetricProfileDelete),
			},
		},
		{
			name: "taskauth.profile.conflict", desc: "Profile writes lost to a concurrent update.", unit: "{write}",
			series: []series{plain(taskAuth.MetricConflictingUpdate)},
		},
	}
}

// Exporter publishes engine snapshots through observable instruments. A
// single callback takes one snapshot per collection so every instrument in
// a cycle reports the same moment.
type Exporter struct {
	source       metricsSource
	registration metric.Registration
	families     []*family

	latencyBuckets metric.Int64ObservableGauge
	latencyCount   metric.Int64ObservableGauge
	bucketOpts     []metric.ObserveOption
	auditDropped   metric.Int64ObservableCounter
}

// NewExporter registers instruments for engine on meter.
func NewExporter(meter metric.Meter, engine *taskAuth.Engine) (*Exporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewExporterFromSource(meter, engine)
}

func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source, families: families()}
	observables := make([]metric.Observable, 0, len(e.families)+3)

	for _, f := range e.families {
		ins, err := meter.Int64ObservableCounter(f.name, metric.WithDescription(f.desc), metric.WithUnit(f.unit))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", f.name, err)
		}
		f.instrument = ins
		observables = append(observables, ins)
	}

	var err error
	e.latencyBuckets, err = meter.Int64ObservableGauge(
		"taskauth.identity.resolve.duration.bucket",
		metric.WithDescription("Cumulative resolutions at or under the le bound in seconds."),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create resolve latency buckets: %w", err)
	}
	e.latencyCount, err = meter.Int64ObservableGauge(
		"taskauth.identity.resolve.duration.count",
		metric.WithDescription("Resolutions with a recorded latency."),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create resolve latency count: %w", err)
	}
	e.auditDropped, err = meter.Int64ObservableCounter(
		"taskauth.audit.dropped",
		metric.WithDescription("Audit events dropped by a full dispatcher buffer."),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	observables = append(observables, e.latencyBuckets, e.latencyCount, e.auditDropped)

	for _, bound := range internaldefs.HistogramUpperBounds {
		le := strconv.FormatFloat(bound, 'g', -1, 64)
		e.bucketOpts = append(e.bucketOpts, metric.WithAttributes(attribute.String("le", le)))
	}
	e.bucketOpts = append(e.bucketOpts, metric.WithAttributes(attribute.String("le", "+Inf")))

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()

	for _, f := range e.families {
		for _, s := range f.series {
			o.ObserveInt64(f.instrument, int64(snapshot.Counters[s.id]), s.opts...)
		}
	}

	cumulative := internaldefs.CumulativeBuckets(
		internaldefs.NormalizeBuckets(snapshot.Histograms[taskAuth.MetricResolveLatency]))
	for i, opt := range e.bucketOpts {
		o.ObserveInt64(e.latencyBuckets, int64(cumulative[i]), opt)
	}
	o.ObserveInt64(e.latencyCount, int64(cumulative[len(cumulative)-1]))

	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
