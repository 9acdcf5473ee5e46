package gorefresh

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledIsNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{})
	m.Inc(MetricRefreshSuccess)
	m.Observe(MetricRefreshLatency, time.Millisecond)

	if m.Value(MetricRefreshSuccess) != 0 {
		t.Fatal("disabled metrics recorded a counter")
	}

	var nilMetrics *Metrics
	nilMetrics.Inc(MetricRefreshSuccess)
	if nilMetrics.Value(MetricRefreshSuccess) != 0 {
		t.Fatal("nil metrics must be a no-op")
	}
}

func TestMetricsConcurrentIncrements(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers = 8
	const perWorker = 1000

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Inc(MetricRefreshSuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricRefreshSuccess); got != workers*perWorker {
		t.Fatalf("lost increments: %d", got)
	}
}

func TestLatencyHistogramBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	m.Observe(MetricRefreshLatency, 2*time.Millisecond)
	m.Observe(MetricRefreshLatency, 30*time.Millisecond)
	m.Observe(MetricRefreshLatency, time.Second)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricRefreshLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("unexpected bucket count: %d", len(buckets))
	}
	if buckets[0] != 1 || buckets[2] != 1 || buckets[7] != 1 {
		t.Fatalf("samples landed in wrong buckets: %v", buckets)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricRevoke)

	snap := m.Snapshot()
	m.Inc(MetricRevoke)

	if snap.Counters[MetricRevoke] != 1 {
		t.Fatalf("snapshot mutated after capture: %d", snap.Counters[MetricRevoke])
	}
}
