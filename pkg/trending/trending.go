package trending

import (
	"context"
	"fmt"

	"github.com/psmlab/realtime/pkg/keys"
	"github.com/psmlab/realtime/pkg/observability"
	"github.com/psmlab/realtime/pkg/store"
)

// ItemType scopes a trending set. Unknown item types are caller errors and
// are rejected, never silently no-oped.
type ItemType string

const (
	Topics   ItemType = "topics"
	Hashtags ItemType = "hashtags"
	Entities ItemType = "entities"
)

// Valid reports whether it is a known item type.
func (it ItemType) Valid() bool {
	switch it {
	case Topics, Hashtags, Entities:
		return true
	}
	return false
}

// Entry is one ranked member with its score.
type Entry struct {
	Member string  `json:"member"`
	Score  float64 `json:"score"`
}

// Engine scores and ranks trending items.
type Engine struct {
	store *store.Client
	log   *observability.Logger
	bumps func(itemType, timeframe string)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches a logger.
func WithLogger(log *observability.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMetrics wires the bump counter.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.bumps = func(itemType, timeframe string) {
			m.TrendingBumpsTotal.WithLabelValues(itemType, timeframe).Inc()
		}
	}
}

// NewEngine creates a trending engine on top of the store client.
func NewEngine(st *store.Client, opts ...Option) *Engine {
	e := &Engine{
		store: st,
		log:   observability.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func trendingKey(it ItemType, tf keys.Timeframe) (string, error) {
	if !it.Valid() {
		return "", fmt.Errorf("unknown trending item type %q", it)
	}
	if !tf.Valid() {
		return "", fmt.Errorf("unknown timeframe %q", tf)
	}
	return keys.Trending(string(it), tf), nil
}

// Bump adds delta to member's score in the (itemType, timeframe) set and
// refreshes the set's TTL to the timeframe's retention. Returns the new score.
func (e *Engine) Bump(ctx context.Context, it ItemType, tf keys.Timeframe, member string, delta float64) (float64, error) {
	key, err := trendingKey(it, tf)
	if err != nil {
		return 0, err
	}

	score, err := e.store.ZIncrBy(ctx, key, member, delta, tf.TTL())
	if err != nil {
		e.log.WithError(err).WithField("member", member).Warn("trending bump failed")
		return 0, err
	}

	if e.bumps != nil {
		e.bumps(string(it), string(tf))
	}
	return score, nil
}

// Top returns up to limit members in descending score order. Tie order among
// equal scores is whatever the store yields and is not part of the contract.
func (e *Engine) Top(ctx context.Context, it ItemType, tf keys.Timeframe, limit int) ([]Entry, error) {
	key, err := trendingKey(it, tf)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	zs, err := e.store.ZRevRange(ctx, key, 0, int64(limit-1))
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(zs))
	for i, z := range zs {
		entries[i] = Entry{Member: z.Member, Score: z.Score}
	}
	return entries, nil
}

// Rank returns member's 0-based descending rank, or ok=false if the member
// has no score in the set.
func (e *Engine) Rank(ctx context.Context, it ItemType, tf keys.Timeframe, member string) (int64, bool, error) {
	key, err := trendingKey(it, tf)
	if err != nil {
		return 0, false, err
	}

	rank, err := e.store.ZRevRank(ctx, key, member)
	if store.IsNotFound(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rank, true, nil
}

// Score returns member's score, or ok=false if it has none.
func (e *Engine) Score(ctx context.Context, it ItemType, tf keys.Timeframe, member string) (float64, bool, error) {
	key, err := trendingKey(it, tf)
	if err != nil {
		return 0, false, err
	}

	score, err := e.store.ZScore(ctx, key, member)
	if store.IsNotFound(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return score, true, nil
}

// Velocity computes a momentum score for member by comparing its scores
// across timeframes ordered shortest to longest. For each adjacent pair the
// normalized growth is (short/long)-1 when the long score is positive, or the
// raw short score when the long window is empty; pair i is weighted 1/(i+1)
// so the nearest-term comparison dominates. Pairs where both scores are zero
// are skipped. Returns 0 when fewer than two timeframes are given or every
// score is zero. Absent members score 0 in each timeframe.
func (e *Engine) Velocity(ctx context.Context, it ItemType, member string, timeframes []keys.Timeframe) (float64, error) {
	if !it.Valid() {
		return 0, fmt.Errorf("unknown trending item type %q", it)
	}
	if len(timeframes) < 2 {
		return 0, nil
	}

	scores := make([]float64, len(timeframes))
	for i, tf := range timeframes {
		score, ok, err := e.Score(ctx, it, tf, member)
		if err != nil {
			return 0, err
		}
		if ok {
			scores[i] = score
		}
	}

	var totalVelocity, weightSum float64
	for i := 0; i < len(scores)-1; i++ {
		shortTerm := scores[i]
		longTerm := scores[i+1]

		if shortTerm == 0 && longTerm == 0 {
			continue
		}

		var velocity float64
		if longTerm > 0 {
			velocity = shortTerm/longTerm - 1
		} else {
			velocity = shortTerm
		}

		weight := 1.0 / float64(i+1)
		totalVelocity += velocity * weight
		weightSum += weight
	}

	if weightSum == 0 {
		return 0, nil
	}
	return totalVelocity / weightSum, nil
}
