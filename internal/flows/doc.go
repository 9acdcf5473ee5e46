// Package flows contains the pure-function orchestrator for the refresh
// episode.
//
// RunRefresh accepts a typed dependency struct and returns a typed result
// without side-effects beyond those dependencies. This design enables
// exhaustive unit testing with mock dependencies and keeps the Engine type
// thin.
//
// # Architecture boundaries
//
// The flow coordinates calls to the rotation engine, the refresh lock, the
// shared result cache, the account lookup, and the access-token issuer. It
// does NOT own any of these resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goRefresh (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency interfaces.
package flows
