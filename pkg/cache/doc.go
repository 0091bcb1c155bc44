// Package cache provides a generic, thread-safe TTL cache with LRU eviction.
//
// Entries carry an absolute expiry instant supplied by the caller, which keeps
// the cache free of its own clock and makes expiry behavior fully testable:
// callers pass "now" on reads, so tests can move time without sleeping.
package cache
