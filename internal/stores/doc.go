// Package stores provides the Redis-backed, short-lived coordination
// primitives for the concurrent-refresh path: the per-user exclusive refresh
// lock and the shared result cache that fans a winner's token pair out to
// followers.
//
// # Design
//
// The lock is a single SETNX key with a TTL and a per-episode owner value.
// Release is a compare-and-delete Lua script so only the holder can release,
// and an abandoned lock self-heals when its TTL elapses. The result cache is
// a plain SET/GET JSON payload with its own TTL.
//
// # Architecture boundaries
//
// This package owns coordination state only. It does NOT read or mutate
// refresh-token records (record lifecycle belongs to the rotation engine)
// and it makes no authentication decisions.
//
// # What this package must NOT do
//
//   - Import goRefresh or any sibling internal package.
//   - Block: every operation is a single round trip; waiting is the caller's job.
package stores
