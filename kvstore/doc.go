// Package kvstore implements an append-only, log-structured key-value
// store over raw flash regions.
//
// Keys are 64 bit hashes computed outside the store (HashKey is a
// convenience over the configured hash). A hash maps deterministically to a
// home region; collisions and full regions are resolved by a zig-zag probe
// sequence over neighboring regions (0, +1, -1, +2, -2, ...). Records are
// packed contiguously inside a region and are never rewritten: deletion
// clears a single valid bit, and space is reclaimed only when garbage
// collection finds a region whose records are all tombstones and erases it
// whole.
//
// The engine issues at most one flash access per region visited, through
// the narrow flash.Device contract, and owns a single region-sized scratch
// buffer. A controller that operates asynchronously reports not-ready; the
// store then returns a NotReadyError whose Continuation token resumes the
// operation exactly where it paused. The Async facade stores that token and
// re-drives the store from a completion handler.
//
// The store is single-threaded and non-reentrant; see Store for the
// serial-access precondition.
package kvstore
