// Package internal contains helper utilities that are intentionally private
// to goRefresh, currently secure random token generation.
//
// # Sub-packages
//
//   - flows — pure-function orchestration of the refresh episode
//   - stores — refresh lock and shared result cache TTL stores
//
// # What this package must NOT do
//
//   - Export types that appear in the public goRefresh API.
//   - Be imported by any package outside the goRefresh module.
package internal
