package gorefresh

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

const (
	// MetricIssueSuccess counts issued refresh-token records.
	MetricIssueSuccess MetricID = iota
	// MetricRefreshSuccess counts refresh episodes that returned a pair.
	MetricRefreshSuccess
	// MetricRefreshInvalid counts refreshes rejected for an unusable token.
	MetricRefreshInvalid
	// MetricRefreshTimeout counts followers that exhausted their wait bound.
	MetricRefreshTimeout
	// MetricRefreshFanout counts callers served from the shared result cache.
	MetricRefreshFanout
	// MetricRefreshStoreFailure counts refreshes failed on store errors.
	MetricRefreshStoreFailure
	// MetricLockAcquired counts episodes that won the per-user lock.
	MetricLockAcquired
	// MetricLockContended counts episodes that entered the follower path.
	MetricLockContended
	// MetricRotateIdempotent counts rotations re-derived within grace.
	MetricRotateIdempotent
	// MetricAccountRejected counts refreshes denied by account status.
	MetricAccountRejected
	// MetricRevoke counts single-token revocations.
	MetricRevoke
	// MetricRevokeAll counts mass revocations.
	MetricRevokeAll
	// MetricDeviceIPMismatch counts advisory IP mismatches.
	MetricDeviceIPMismatch
	// MetricDeviceUAMismatch counts advisory user-agent mismatches.
	MetricDeviceUAMismatch
	// MetricRefreshLatency is the refresh-episode latency histogram.
	MetricRefreshLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free in-process counters and one latency histogram.
// All methods are safe for concurrent use; a nil or disabled Metrics is a
// no-op.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a [Metrics] from the given config.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are collected.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc increments one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records one refresh-episode latency sample.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricRefreshLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot returns a consistent-enough copy of all counters for export.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricRefreshLatency].buckets[i])
		}
		s.Histograms[MetricRefreshLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
