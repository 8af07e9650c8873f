// Package store provides typed wrappers over the four Redis primitives the
// platform uses: string/counter, hash, sorted set, and list, plus pub/sub and
// server-side scripts. It is the only package that imports go-redis; every
// higher-level service (metrics, trending, activity, alerts, rate limiting)
// is built exclusively on these wrappers.
//
// # Serialization
//
// Structured values (maps, slices, structs) are serialized to JSON before
// storage and times to RFC 3339; scalars are stored in Redis' native string
// form. Reads return raw strings; DecodeValue recovers typed values.
//
// # Error model
//
// The wrappers distinguish three error categories instead of swallowing
// failures:
//
//   - absent data is ErrNotFound (or an empty result for range reads), never
//     a store failure;
//   - store/connection failures are returned as *StoreError wrapping the
//     underlying error, so callers can choose fail-soft or fail-hard;
//   - caller misuse (bad key types, invalid arguments) propagates as-is.
//
// Redis guarantees atomicity only per single command; any wrapper that issues
// several commands for one logical operation says so in its comment. LPushTrim
// runs as one server-side script and is atomic.
package store
