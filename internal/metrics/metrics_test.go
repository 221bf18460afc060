package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestDisabledNoIncrement(t *testing.T) {
	m := New(Config{Enabled: false})
	m.Inc(MetricSignInSuccess)

	if got := m.Value(MetricSignInSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if s := m.Snapshot(); len(s.Counters) != 0 || len(s.Histograms) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", s)
	}
}

func TestEnabledIncrement(t *testing.T) {
	m := New(Config{Enabled: true})
	m.Inc(MetricSignInSuccess)
	m.Inc(MetricSignInSuccess)
	m.Inc(MetricSignInSuccess)

	if got := m.Value(MetricSignInSuccess); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}

func TestConcurrentIncrementSafe(t *testing.T) {
	m := New(Config{Enabled: true})

	const goroutines = 16
	const perG = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricSignUpSuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricSignUpSuccess); got != goroutines*perG {
		t.Fatalf("expected %d, got %d", goroutines*perG, got)
	}
}

func TestHistogramBuckets(t *testing.T) {
	m := New(Config{Enabled: true, EnableLatencyHistograms: true})

	m.Observe(MetricResolveLatency, 2*time.Millisecond)
	m.Observe(MetricResolveLatency, 30*time.Millisecond)
	m.Observe(MetricResolveLatency, time.Second)
	m.Observe(MetricSignInSuccess, time.Millisecond)

	s := m.Snapshot()
	buckets := s.Histograms[MetricResolveLatency]
	if len(buckets) != HistBucketCount {
		t.Fatalf("expected %d buckets, got %d", HistBucketCount, len(buckets))
	}
	if buckets[0] != 1 || buckets[3] != 1 || buckets[7] != 1 {
		t.Fatalf("unexpected buckets %v", buckets)
	}
	if _, ok := s.Histograms[MetricSignInSuccess]; ok {
		t.Fatal("counter id must not appear as histogram")
	}
	if _, ok := s.Counters[MetricResolveLatency]; ok {
		t.Fatal("histogram id must not appear as counter")
	}
}

func TestLatencyDisabledSkipsObserve(t *testing.T) {
	m := New(Config{Enabled: true})
	m.Observe(MetricResolveLatency, time.Millisecond)
	if _, ok := m.Snapshot().Histograms[MetricResolveLatency]; ok {
		t.Fatal("expected no histogram when latency disabled")
	}
}

func TestNilMetricsSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricSignInSuccess)
	m.Observe(MetricResolveLatency, time.Millisecond)
	if m.Value(MetricSignInSuccess) != 0 || m.Enabled() || m.LatencyEnabled() {
		t.Fatal("nil metrics should be inert")
	}
}
