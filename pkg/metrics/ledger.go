package metrics

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/psmlab/realtime/pkg/keys"
	"github.com/psmlab/realtime/pkg/observability"
	"github.com/psmlab/realtime/pkg/store"
)

const (
	defaultHotCacheSize = 1024
	defaultHotCacheTTL  = 2 * time.Second
)

// Ledger maintains per-entity metrics hashes.
type Ledger struct {
	store *store.Client
	log   *observability.Logger
	now   func() time.Time

	hot    *lru.LRU[string, map[string]interface{}]
	hits   func()
	misses func()
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger attaches a logger.
func WithLogger(log *observability.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// WithHotCache enables the in-process snapshot cache. Entries live for at
// most ttl; local writes invalidate them immediately.
func WithHotCache(size int, ttl time.Duration) Option {
	return func(l *Ledger) {
		if size <= 0 {
			size = defaultHotCacheSize
		}
		if ttl <= 0 {
			ttl = defaultHotCacheTTL
		}
		l.hot = lru.NewLRU[string, map[string]interface{}](size, nil, ttl)
	}
}

// WithCacheMetrics wires hot-cache hit/miss counters.
func WithCacheMetrics(m *observability.Metrics) Option {
	return func(l *Ledger) {
		l.hits = m.HotCacheHitsTotal.Inc
		l.misses = m.HotCacheMissesTotal.Inc
	}
}

// NewLedger creates a metrics ledger on top of the store client.
func NewLedger(st *store.Client, opts ...Option) *Ledger {
	l := &Ledger{
		store: st,
		log:   observability.Nop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Update overwrites the given fields of an entity's metrics hash. Structured
// values are serialized to JSON; last_updated is always rewritten; the hash
// TTL is refreshed. A zero ttl means keys.TTLStandard.
func (l *Ledger) Update(ctx context.Context, entityID string, fields map[string]interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = keys.TTLStandard
	}

	merged := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	if _, ok := merged[FieldLastUpdated]; !ok {
		merged[FieldLastUpdated] = l.now().UTC().Format(time.RFC3339Nano)
	}

	key := keys.EntityMetrics(entityID)
	if err := l.store.HSet(ctx, key, merged, ttl); err != nil {
		l.log.WithError(err).WithField("entity_id", entityID).Warn("metrics update failed")
		return err
	}

	l.invalidate(entityID)
	return nil
}

// Increment atomically increments each named counter and returns the new
// values. Each field increment is its own atomic command; increments across
// different fields are not mutually atomic. last_updated is rewritten and the
// TTL refreshed once after all increments.
func (l *Ledger) Increment(ctx context.Context, entityID string, deltas map[string]int64, ttl time.Duration) (map[string]int64, error) {
	if ttl <= 0 {
		ttl = keys.TTLStandard
	}

	key := keys.EntityMetrics(entityID)
	results := make(map[string]int64, len(deltas))

	for field, delta := range deltas {
		val, err := l.store.HIncrBy(ctx, key, field, delta)
		if err != nil {
			l.log.WithError(err).WithField("entity_id", entityID).Warn("metrics increment failed")
			return results, err
		}
		results[field] = val
	}

	stamp := map[string]interface{}{
		FieldLastUpdated: l.now().UTC().Format(time.RFC3339Nano),
	}
	if err := l.store.HSet(ctx, key, stamp, ttl); err != nil {
		return results, err
	}

	l.invalidate(entityID)
	return results, nil
}

// Snapshot reads an entity's metrics, all fields or only the named subset.
// Stored values come back typed: integers as int64, decimals as float64,
// JSON as its decoded form. Absent fields are omitted; an absent entity
// yields an empty map, not an error.
func (l *Ledger) Snapshot(ctx context.Context, entityID string, fields ...string) (map[string]interface{}, error) {
	if len(fields) == 0 {
		if cached, ok := l.cached(entityID); ok {
			return cached, nil
		}
	}

	key := keys.EntityMetrics(entityID)

	var (
		raw map[string]string
		err error
	)
	if len(fields) > 0 {
		raw, err = l.store.HMGet(ctx, key, fields...)
	} else {
		raw, err = l.store.HGetAll(ctx, key)
	}
	if err != nil {
		return nil, err
	}

	snapshot := make(map[string]interface{}, len(raw))
	for field, value := range raw {
		snapshot[field] = store.DecodeValue(value)
	}

	if len(fields) == 0 {
		l.cache(entityID, snapshot)
	}
	return snapshot, nil
}

// Compare reads the named fields across several entities.
func (l *Ledger) Compare(ctx context.Context, entityIDs []string, fields []string) (map[string]map[string]interface{}, error) {
	results := make(map[string]map[string]interface{}, len(entityIDs))
	for _, id := range entityIDs {
		snapshot, err := l.Snapshot(ctx, id, fields...)
		if err != nil {
			return results, err
		}
		results[id] = snapshot
	}
	return results, nil
}

// Touch rewrites a timestamp field (last_active by default is the caller's
// choice) and refreshes the TTL.
func (l *Ledger) Touch(ctx context.Context, entityID, field string, ttl time.Duration) error {
	return l.Update(ctx, entityID, map[string]interface{}{
		field: l.now().UTC().Format(time.RFC3339Nano),
	}, ttl)
}

// Clear removes an entity's metrics hash.
func (l *Ledger) Clear(ctx context.Context, entityID string) error {
	_, err := l.store.Del(ctx, keys.EntityMetrics(entityID))
	l.invalidate(entityID)
	return err
}

func (l *Ledger) cached(entityID string) (map[string]interface{}, bool) {
	if l.hot == nil {
		return nil, false
	}
	snapshot, ok := l.hot.Get(entityID)
	if ok {
		if l.hits != nil {
			l.hits()
		}
		return snapshot, true
	}
	if l.misses != nil {
		l.misses()
	}
	return nil, false
}

func (l *Ledger) cache(entityID string, snapshot map[string]interface{}) {
	if l.hot == nil {
		return
	}
	l.hot.Add(entityID, snapshot)
}

func (l *Ledger) invalidate(entityID string) {
	if l.hot == nil {
		return
	}
	l.hot.Remove(entityID)
}
