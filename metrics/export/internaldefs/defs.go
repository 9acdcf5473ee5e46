package internaldefs

import (
	gorefresh "github.com/arkadian7/goRefresh"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   gorefresh.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   gorefresh.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: gorefresh.MetricIssueSuccess, Name: "gorefresh_issue_success_total", Help: "Issued refresh-token records."},
	{ID: gorefresh.MetricRefreshSuccess, Name: "gorefresh_refresh_success_total", Help: "Refresh episodes that returned a token pair."},
	{ID: gorefresh.MetricRefreshInvalid, Name: "gorefresh_refresh_invalid_total", Help: "Refreshes rejected for an unusable token."},
	{ID: gorefresh.MetricRefreshTimeout, Name: "gorefresh_refresh_timeout_total", Help: "Followers that exhausted their wait bound."},
	{ID: gorefresh.MetricRefreshFanout, Name: "gorefresh_refresh_fanout_total", Help: "Callers served from the shared result cache."},
	{ID: gorefresh.MetricRefreshStoreFailure, Name: "gorefresh_refresh_store_failure_total", Help: "Refreshes failed on store errors."},
	{ID: gorefresh.MetricLockAcquired, Name: "gorefresh_lock_acquired_total", Help: "Episodes that won the per-user refresh lock."},
	{ID: gorefresh.MetricLockContended, Name: "gorefresh_lock_contended_total", Help: "Episodes that entered the follower path."},
	{ID: gorefresh.MetricRotateIdempotent, Name: "gorefresh_rotate_idempotent_total", Help: "Rotations re-derived within the grace window."},
	{ID: gorefresh.MetricAccountRejected, Name: "gorefresh_account_rejected_total", Help: "Refreshes denied by account status."},
	{ID: gorefresh.MetricRevoke, Name: "gorefresh_revoke_total", Help: "Single-token revocations."},
	{ID: gorefresh.MetricRevokeAll, Name: "gorefresh_revoke_all_total", Help: "Mass revocations."},
	{ID: gorefresh.MetricDeviceIPMismatch, Name: "gorefresh_device_ip_mismatch_total", Help: "Advisory device IP mismatches."},
	{ID: gorefresh.MetricDeviceUAMismatch, Name: "gorefresh_device_ua_mismatch_total", Help: "Advisory device user-agent mismatches."},
}

// HistogramDefs lists every exported histogram in a stable order.
var HistogramDefs = []HistogramDef{
	{ID: gorefresh.MetricRefreshLatency, Name: "gorefresh_refresh_latency_seconds", Help: "Refresh latency histogram."},
}

// HistogramBounds holds the upper bucket bounds in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix holds metric-name-safe renderings of the bounds.
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

// NormalizeBuckets copies a raw snapshot slice into the fixed bucket array.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
