// Package gorefresh provides refresh-token rotation with distributed
// coordination of concurrent refresh attempts: rotating opaque refresh
// tokens in a Redis-backed credential store, JWT access-token issuance, and
// a per-user lock plus shared result cache that collapse N simultaneous
// refresh calls into one rotation while every caller receives the same
// token pair.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build]. All coordination state lives in Redis, so correctness
// holds across multiple process instances; no in-process locks guard the
// refresh path.
//
// # Architecture boundaries
//
// gorefresh is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (TokenPair, DeviceMeta, MetricsSnapshot). Flow
// orchestration and the coordination stores live under internal/ and are
// never exported. The rotation engine mutates token records and never
// touches the lock or the result cache; the coordinator does the reverse.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its
//     public API.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//   - Retry failed store operations; retry policy belongs to the caller.
package gorefresh
