// Package ratelimit enforces fixed-window request limits backed by Redis
// counters, shared across every instance pointing at the same store. The
// check-and-increment runs as one server-side script, so concurrent checks
// can never overshoot the limit; a denied request does not consume quota.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/psmlab/realtime/pkg/keys"
	"github.com/psmlab/realtime/pkg/observability"
	"github.com/psmlab/realtime/pkg/store"
)

// checkScript admits and counts a request atomically. A denied request is
// not counted. Returns {allowed, count, secondsUntilReset}.
var checkScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local ttl = redis.call('TTL', KEYS[1])
if ttl < 0 then
  redis.call('SET', KEYS[1], 1, 'EX', window)
  return {1, 1, window}
end
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count >= limit then
  return {0, count, ttl}
end
count = redis.call('INCR', KEYS[1])
return {1, count, ttl}
`)

// Result is one rate-limit decision.
type Result struct {
	Allowed bool
	Count   int64
	Limit   int
	Reset   time.Duration
}

// Remaining returns how much quota is left in the window.
func (r Result) Remaining() int64 {
	remaining := int64(r.Limit) - r.Count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Limiter checks fixed-window limits against the store.
type Limiter struct {
	store     *store.Client
	log       *observability.Logger
	window    time.Duration
	decisions func(outcome string)
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLogger attaches a logger.
func WithLogger(log *observability.Logger) Option {
	return func(l *Limiter) { l.log = log }
}

// WithWindow overrides the default window duration.
func WithWindow(window time.Duration) Option {
	return func(l *Limiter) { l.window = window }
}

// WithMetrics wires the decision counter.
func WithMetrics(m *observability.Metrics) Option {
	return func(l *Limiter) {
		l.decisions = func(outcome string) {
			m.RateLimitDecisionsTotal.WithLabelValues(outcome).Inc()
		}
	}
}

// NewLimiter creates a limiter on top of the store client.
func NewLimiter(st *store.Client, opts ...Option) *Limiter {
	l := &Limiter{
		store:  st,
		log:    observability.Nop(),
		window: keys.RateLimitWindow,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) record(outcome string) {
	if l.decisions != nil {
		l.decisions(outcome)
	}
}

// Check admits the request if fewer than limit requests have been counted in
// the current window, and counts it. On store failure the limiter fails open:
// the request is allowed and the error is surfaced for the caller to log.
func (l *Limiter) Check(ctx context.Context, key string, limit int) (Result, error) {
	if limit < 1 {
		l.record("denied")
		return Result{Allowed: false, Limit: limit, Reset: l.window}, nil
	}

	windowSec := int64(l.window / time.Second)
	vals, err := checkScript.Run(ctx, l.store.Redis(), []string{key}, limit, windowSec).Int64Slice()
	if err != nil {
		l.record("failopen")
		l.log.WithError(err).WithField("key", key).Warn("rate limit check failed, failing open")
		return Result{Allowed: true, Limit: limit}, fmt.Errorf("rate limit check %s: %w", key, err)
	}
	if len(vals) != 3 {
		l.record("failopen")
		return Result{Allowed: true, Limit: limit}, fmt.Errorf("rate limit check %s: unexpected script reply %v", key, vals)
	}

	res := Result{
		Allowed: vals[0] == 1,
		Count:   vals[1],
		Limit:   limit,
		Reset:   time.Duration(vals[2]) * time.Second,
	}
	if res.Allowed {
		l.record("allowed")
	} else {
		l.record("denied")
	}
	return res, nil
}

// CheckIP applies the limit to a client IP.
func (l *Limiter) CheckIP(ctx context.Context, ip string, limit int) (Result, error) {
	return l.Check(ctx, keys.RateLimitIP(ip), limit)
}

// CheckUser applies the limit to a user.
func (l *Limiter) CheckUser(ctx context.Context, userID string, limit int) (Result, error) {
	return l.Check(ctx, keys.RateLimitUser(userID), limit)
}

// Reset clears a counter, reopening the window immediately.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	_, err := l.store.Del(ctx, key)
	return err
}
