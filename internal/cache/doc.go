// Package cache provides the bounded, thread-safe LRU cache that sits between
// slide sessions and the pyramid decoder.
//
// Cache is generic over its key and value types. The slide layer uses the
// RegionCache instantiation keyed by RegionKey and holding raw RGB pixel
// buffers; a single process-wide instance of it is reachable through Global.
//
// # Capacity
//
// Capacity counts entries, not bytes. It must be positive at construction and
// on every Resize; a non-positive value is rejected with a *CapacityError that
// matches ErrInvalidCapacity, and additionally ErrInvalidArgumentType when the
// value is negative. Shrinking evicts least-recently-used entries until the
// cache fits. Entries never touched after insertion are evicted in insertion
// order.
//
// # Statistics
//
// Stats and DetailedStats are value snapshots taken under the cache lock.
// DetailedStats embeds Stats, so the shared fields of one detailed snapshot
// always agree with each other. Hit and miss counters are cumulative and
// survive Clear.
//
// # Thread Safety
//
// Every method is safe for concurrent use. Operations are linearizable: each
// runs entirely inside one critical section. Observers are notified after the
// lock is released.
package cache
