// Package trending ranks topics, hashtags, and entities by engagement score
// inside per-timeframe sorted sets, and derives velocity (momentum) by
// comparing one member's score across timeframes of increasing width.
//
// Scores are cumulative engagement credit. Each bump refreshes the set's TTL
// to its timeframe's retention, so a set that stops receiving bumps expires
// one window after its last update. Velocity is computed on demand and never
// persisted.
package trending
