package keys

import (
	"fmt"
	"strings"
	"time"
)

// Namespace prefixes every key to avoid collisions when multiple logical
// applications share one Redis instance. It is fixed by convention and not
// configurable.
const Namespace = "psm"

// TTL classes for short-lived caches.
const (
	TTLShort    = 5 * time.Minute
	TTLMedium   = 30 * time.Minute
	TTLStandard = time.Hour
)

// RateLimitWindow is the default fixed window for rate-limit counters.
const RateLimitWindow = 15 * time.Minute

// Activity stream bounds. Lists are trimmed back to MaxStreamLength once a
// push takes them past MaxStreamLength*TrimThreshold. The bound is soft: it is
// enforced per push, not continuously.
const (
	MaxStreamLength = 1000
	TrimThreshold   = 1.2
)

// TrimTriggerLength is the list length at which a push triggers a trim.
const TrimTriggerLength = int64(MaxStreamLength * TrimThreshold)

// Timeframe is a named time horizon used to scope trending sets and their TTLs.
type Timeframe string

const (
	TimeframeHour     Timeframe = "1h"
	TimeframeSixHours Timeframe = "6h"
	TimeframeDay      Timeframe = "1d"
	TimeframeWeek     Timeframe = "1w"
	TimeframeMonth    Timeframe = "1m"
)

// Timeframes lists all valid timeframes from shortest to longest.
var Timeframes = []Timeframe{TimeframeHour, TimeframeSixHours, TimeframeDay, TimeframeWeek, TimeframeMonth}

// Valid reports whether tf is one of the defined timeframes.
func (tf Timeframe) Valid() bool {
	switch tf {
	case TimeframeHour, TimeframeSixHours, TimeframeDay, TimeframeWeek, TimeframeMonth:
		return true
	}
	return false
}

// TTL returns the retention for data scoped to this timeframe. Unknown
// timeframes fall back to TTLStandard.
func (tf Timeframe) TTL() time.Duration {
	switch tf {
	case TimeframeHour:
		return time.Hour
	case TimeframeSixHours:
		return 6 * time.Hour
	case TimeframeDay:
		return 24 * time.Hour
	case TimeframeWeek:
		return 7 * 24 * time.Hour
	case TimeframeMonth:
		return 30 * 24 * time.Hour
	default:
		return TTLStandard
	}
}

// ParseTimeframe converts a string such as "1h" into a Timeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if !tf.Valid() {
		return "", fmt.Errorf("unknown timeframe %q", s)
	}
	return tf, nil
}

// EntityMetrics returns the key of an entity's metrics hash.
func EntityMetrics(entityID string) string {
	return fmt.Sprintf("%s:entity:%s:metrics", Namespace, entityID)
}

// EntityMetricsPattern matches every entity metrics hash key.
func EntityMetricsPattern() string {
	return Namespace + ":entity:*:metrics"
}

// EntityIDFromMetricsKey extracts the entity id from a metrics hash key, or
// ok=false if the key has a different shape.
func EntityIDFromMetricsKey(key string) (string, bool) {
	prefix := Namespace + ":entity:"
	if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, ":metrics") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(key, prefix), ":metrics")
	if id == "" {
		return "", false
	}
	return id, true
}

// EntityEngagement returns the key of an entity's engagement hash.
func EntityEngagement(entityID string) string {
	return fmt.Sprintf("%s:entity:%s:engagement", Namespace, entityID)
}

// EntityMentions returns the key of an entity's mention sorted set.
func EntityMentions(entityID string) string {
	return fmt.Sprintf("%s:entity:%s:mentions", Namespace, entityID)
}

// Trending returns the key of the trending sorted set for an item type
// ("topics", "hashtags", "entities") and timeframe.
func Trending(itemType string, tf Timeframe) string {
	return fmt.Sprintf("%s:trending:%s:%s", Namespace, itemType, tf)
}

// Leaderboard returns the key of a generic leaderboard sorted set.
func Leaderboard(name string) string {
	return fmt.Sprintf("%s:leaderboard:%s", Namespace, name)
}

// ActivityEntity returns the key of an entity's activity list.
func ActivityEntity(entityID string) string {
	return fmt.Sprintf("%s:activity:entity:%s", Namespace, entityID)
}

// ActivityUser returns the key of a user's activity list.
func ActivityUser(userID string) string {
	return fmt.Sprintf("%s:activity:user:%s", Namespace, userID)
}

// ActivityGlobal returns the key of the global activity list.
func ActivityGlobal() string {
	return Namespace + ":activity:global"
}

// AlertsEntity returns the key of an entity's persistent alert sorted set.
func AlertsEntity(entityID string) string {
	return fmt.Sprintf("%s:alerts:entity:%s", Namespace, entityID)
}

// AlertChannelEntity returns the pub/sub channel for an entity's alerts.
func AlertChannelEntity(entityID string) string {
	return fmt.Sprintf("%s:alerts:entity:%s", Namespace, entityID)
}

// AlertChannelTopic returns the pub/sub channel for a topic's alerts.
func AlertChannelTopic(topic string) string {
	return fmt.Sprintf("%s:alerts:topic:%s", Namespace, topic)
}

// AlertChannelPattern matches every alert pub/sub channel, entity and topic.
func AlertChannelPattern() string {
	return Namespace + ":alerts:*"
}

// AlertsEntityPattern matches every entity alert sorted set key.
func AlertsEntityPattern() string {
	return Namespace + ":alerts:entity:*"
}

// RateLimitIP returns the rate-limit counter key for a client IP.
func RateLimitIP(ip string) string {
	return fmt.Sprintf("%s:ratelimit:ip:%s", Namespace, ip)
}

// RateLimitUser returns the rate-limit counter key for a user.
func RateLimitUser(userID string) string {
	return fmt.Sprintf("%s:ratelimit:user:%s", Namespace, userID)
}
