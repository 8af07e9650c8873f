// Package metrics maintains per-entity metric ledgers: Redis hashes of
// counters and gauges (post counts, engagement totals, sentiment buckets,
// timestamps) with atomic per-field increments and typed snapshot reads.
//
// Data is ephemeral: every mutation refreshes the hash TTL, so an entity that
// stops receiving updates ages out after one TTL window. last_updated is
// rewritten on every mutation (last writer wins).
//
// An optional in-process hot cache (expirable LRU) short-circuits repeated
// snapshot reads for the same entity. Local writes invalidate the cached
// entry; writes from other processes become visible once the cache entry
// expires.
package metrics
