package keys

import (
	"testing"
	"time"
)

func TestKeyFormats(t *testing.T) {
	cases := []struct {
		got  string
		want string
	}{
		{EntityMetrics("42"), "psm:entity:42:metrics"},
		{EntityEngagement("42"), "psm:entity:42:engagement"},
		{EntityMentions("42"), "psm:entity:42:mentions"},
		{Trending("topics", TimeframeHour), "psm:trending:topics:1h"},
		{Trending("hashtags", TimeframeDay), "psm:trending:hashtags:1d"},
		{Leaderboard("accounts"), "psm:leaderboard:accounts"},
		{ActivityEntity("42"), "psm:activity:entity:42"},
		{ActivityUser("7"), "psm:activity:user:7"},
		{ActivityGlobal(), "psm:activity:global"},
		{AlertsEntity("42"), "psm:alerts:entity:42"},
		{AlertChannelTopic("elections"), "psm:alerts:topic:elections"},
		{AlertChannelPattern(), "psm:alerts:*"},
		{RateLimitIP("10.0.0.1"), "psm:ratelimit:ip:10.0.0.1"},
		{RateLimitUser("7"), "psm:ratelimit:user:7"},
	}

	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("expected key %q, got %q", c.want, c.got)
		}
	}
}

func TestTimeframeTTL(t *testing.T) {
	cases := []struct {
		tf   Timeframe
		want time.Duration
	}{
		{TimeframeHour, time.Hour},
		{TimeframeSixHours, 6 * time.Hour},
		{TimeframeDay, 24 * time.Hour},
		{TimeframeWeek, 7 * 24 * time.Hour},
		{TimeframeMonth, 30 * 24 * time.Hour},
		{Timeframe("bogus"), TTLStandard},
	}

	for _, c := range cases {
		if got := c.tf.TTL(); got != c.want {
			t.Errorf("TTL(%q): expected %v, got %v", c.tf, c.want, got)
		}
	}
}

func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe("6h")
	if err != nil {
		t.Fatalf("ParseTimeframe failed: %v", err)
	}
	if tf != TimeframeSixHours {
		t.Errorf("expected %q, got %q", TimeframeSixHours, tf)
	}

	if _, err := ParseTimeframe("2h"); err == nil {
		t.Error("expected error for unknown timeframe")
	}
}

func TestTimeframesOrdered(t *testing.T) {
	for i := 1; i < len(Timeframes); i++ {
		if Timeframes[i-1].TTL() >= Timeframes[i].TTL() {
			t.Errorf("expected Timeframes sorted shortest to longest, %q >= %q", Timeframes[i-1], Timeframes[i])
		}
	}
}

func TestTrimTrigger(t *testing.T) {
	if TrimTriggerLength != 1200 {
		t.Errorf("expected trim trigger at 1200, got %d", TrimTriggerLength)
	}
}

func TestEntityIDFromMetricsKey(t *testing.T) {
	id, ok := EntityIDFromMetricsKey(EntityMetrics("senator-blutarsky"))
	if !ok || id != "senator-blutarsky" {
		t.Errorf("expected senator-blutarsky, got %q (ok=%v)", id, ok)
	}

	for _, key := range []string{
		"psm:entity::metrics",
		"psm:entity:e1:engagement",
		"other:entity:e1:metrics",
	} {
		if _, ok := EntityIDFromMetricsKey(key); ok {
			t.Errorf("expected no match for %q", key)
		}
	}
}
