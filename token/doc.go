// Package token defines the refresh-token record model and its Redis-backed
// store. The store owns record persistence, the per-user token index used for
// mass revocation, and the atomic compare-and-swap that marks a record
// rotated exactly once.
//
// The store never touches the refresh lock or the shared result cache; those
// belong to the coordinator. Keeping the boundaries this way lets rotation
// semantics and mutual-exclusion semantics be tested independently.
package token
