// Package keys defines the Redis key schema and TTL policy shared by every
// other package in this module.
//
// # Key layout
//
// All keys live under the fixed "psm" namespace and follow the pattern
//
//	{namespace}:{kind}:{id}:{subresource}[:{timeframe}]
//
// Examples:
//
//	psm:entity:42:metrics          entity metrics hash
//	psm:trending:topics:1h         trending sorted set
//	psm:activity:entity:42         activity list
//	psm:alerts:entity:42           alert sorted set
//	psm:alerts:topic:elections     alert pub/sub channel
//	psm:ratelimit:ip:10.0.0.1      rate-limit counter
//
// Composition ("all alerts for an entity") is expressed purely through key
// naming; no stored cross-key references exist.
//
// # TTL policy
//
// Short-lived caches use TTLShort/TTLMedium/TTLStandard. Trending sets use the
// TTL of their timeframe, refreshed on every increment, so an idle set expires
// one window after its last update. Rate-limit counters expire at window end.
// Activity lists and alert sets carry no TTL and are bounded by trimming and
// sweeping instead.
package keys
