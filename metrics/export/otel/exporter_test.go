package otel

import (
	"context"
	"sync"
	"testing"

	taskAuth "github.com/MrEthical07/taskAuth"
	"github.com/MrEthical07/taskAuth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot taskAuth.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() taskAuth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := taskAuth.MetricsSnapshot{
		Counters:   make(map[taskAuth.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[taskAuth.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("taskauth-test")

	src := &fakeSource{
		snapshot: taskAuth.MetricsSnapshot{
			Counters: map[taskAuth.MetricID]uint64{
				taskAuth.MetricSignInSuccess: 3,
			},
			Histograms: map[taskAuth.MetricID][]uint64{
				taskAuth.MetricResolveLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("expected collected metrics, got none")
	}

	if got := counterValue(t, rm, "taskauth.sign_in", "outcome", "success"); got != 3 {
		t.Fatalf("expected sign-in success 3, got %d", got)
	}
	if got := counterValue(t, rm, "taskauth.sign_in", "outcome", "failure"); got != 0 {
		t.Fatalf("expected sign-in failure 0, got %d", got)
	}
	if got := counterValue(t, rm, "taskauth.audit.dropped", "", ""); got != 1 {
		t.Fatalf("expected audit dropped 1, got %d", got)
	}
	if got := gaugeValue(t, rm, "taskauth.identity.resolve.duration.bucket", "le", "0.025"); got != 3 {
		t.Fatalf("expected 3 resolutions at or under 25ms, got %d", got)
	}
	if got := gaugeValue(t, rm, "taskauth.identity.resolve.duration.bucket", "le", "+Inf"); got != 8 {
		t.Fatalf("expected +Inf bucket 8, got %d", got)
	}
	if got := gaugeValue(t, rm, "taskauth.identity.resolve.duration.count", "", ""); got != 8 {
		t.Fatalf("expected count 8, got %d", got)
	}
}

func TestExporterCoversEveryEngineCounter(t *testing.T) {
	seen := make(map[taskAuth.MetricID]bool)
	for _, f := range families() {
		for _, s := range f.series {
			if seen[s.id] {
				t.Fatalf("counter %d exported twice", s.id)
			}
			seen[s.id] = true
		}
	}
	for _, def := range internaldefs.CounterDefs {
		if !seen[def.ID] {
			t.Fatalf("counter %s not exported", def.Name)
		}
	}
}

func TestExporterReportsResolveOutcomes(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	src := &fakeSource{snapshot: taskAuth.MetricsSnapshot{
		Counters: map[taskAuth.MetricID]uint64{
			taskAuth.MetricResolveSuccess:      5,
			taskAuth.MetricResolveBadSignature: 2,
			taskAuth.MetricProfileDelete:       1,
		},
	}}
	exp, err := NewExporterFromSource(provider.Meter("taskauth-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if got := counterValue(t, rm, "taskauth.identity.resolve", "outcome", "success"); got != 5 {
		t.Fatalf("expected 5 resolved, got %d", got)
	}
	if got := counterValue(t, rm, "taskauth.identity.resolve", "outcome", "bad_signature"); got != 2 {
		t.Fatalf("expected 2 bad signatures, got %d", got)
	}
	if got := counterValue(t, rm, "taskauth.profile.write", "operation", "delete"); got != 1 {
		t.Fatalf("expected 1 profile delete, got %d", got)
	}
}

func findMetric(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Metrics {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m
			}
		}
	}
	t.Fatalf("metric %s not collected", name)
	return metricdata.Metrics{}
}

func matches(set attribute.Set, key, value string) bool {
	if key == "" {
		return set.Len() == 0
	}
	v, ok := set.Value(attribute.Key(key))
	return ok && v.AsString() == value
}

// counterValue returns the data point of sum name whose key attribute equals
// value. An empty key selects the point without attributes.
func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	m := findMetric(t, rm, name)
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %s has unexpected data %T", name, m.Data)
	}
	for _, dp := range sum.DataPoints {
		if matches(dp.Attributes, key, value) {
			return dp.Value
		}
	}
	t.Fatalf("metric %s has no point %s=%s", name, key, value)
	return 0
}

func gaugeValue(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	m := findMetric(t, rm, name)
	gauge, ok := m.Data.(metricdata.Gauge[int64])
	if !ok {
		t.Fatalf("metric %s has unexpected data %T", name, m.Data)
	}
	for _, dp := range gauge.DataPoints {
		if matches(dp.Attributes, key, value) {
			return dp.Value
		}
	}
	t.Fatalf("metric %s has no point %s=%s", name, key, value)
	return 0
}

func TestExporterRejectsNilSource(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("taskauth-test")

	if _, err := NewExporterFromSource(meter, nil); err == nil {
		t.Fatal("expected error for nil source")
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("taskauth-test")

	src := &fakeSource{
		snapshot: taskAuth.MetricsSnapshot{
			Counters: map[taskAuth.MetricID]uint64{
				taskAuth.MetricSignInSuccess: 1,
			},
			Histograms: map[taskAuth.MetricID][]uint64{
				taskAuth.MetricResolveLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[taskAuth.MetricSignInSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
