// Package activity records recent platform events into capped Redis lists.
// Each event fans out to an entity stream, a user stream, and a global
// stream as requested. Streams hold serialized records newest-first and are
// trimmed back to a fixed length once they overshoot a soft bound, so a
// stream is a rolling window, not a durable log.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/psmlab/realtime/pkg/keys"
	"github.com/psmlab/realtime/pkg/observability"
	"github.com/psmlab/realtime/pkg/store"
)

// Record is one activity event as stored in a stream.
type Record struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	EntityID  string                 `json:"entity_id,omitempty"`
	UserID    string                 `json:"user_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Stream identifies one activity list.
type Stream struct {
	scope string
	key   string
}

// EntityStream addresses the per-entity activity list.
func EntityStream(entityID string) Stream {
	return Stream{scope: "entity", key: keys.ActivityEntity(entityID)}
}

// UserStream addresses the per-user activity list.
func UserStream(userID string) Stream {
	return Stream{scope: "user", key: keys.ActivityUser(userID)}
}

// GlobalStream addresses the platform-wide activity list.
func GlobalStream() Stream {
	return Stream{scope: "global", key: keys.ActivityGlobal()}
}

// Scopes selects which streams an Add fans out to. Zero-value fields are
// skipped; at least one scope must be set.
type Scopes struct {
	EntityID string
	UserID   string
	Global   bool
}

func (s Scopes) streams() []Stream {
	var out []Stream
	if s.EntityID != "" {
		out = append(out, EntityStream(s.EntityID))
	}
	if s.UserID != "" {
		out = append(out, UserStream(s.UserID))
	}
	if s.Global {
		out = append(out, GlobalStream())
	}
	return out
}

// Filter narrows a Range read. Type matches Record.Type exactly; EntityID
// matches Record.EntityID and is mainly useful on the global stream.
type Filter struct {
	Type     string
	EntityID string
}

func (f Filter) match(r Record) bool {
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.EntityID != "" && r.EntityID != f.EntityID {
		return false
	}
	return true
}

// Service writes and reads activity streams.
type Service struct {
	store  *store.Client
	log    *observability.Logger
	now    func() time.Time
	pushes func(scope string)
	trims  func()
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a logger.
func WithLogger(log *observability.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithMetrics wires push and trim counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) {
		s.pushes = func(scope string) { m.ActivityPushesTotal.WithLabelValues(scope).Inc() }
		s.trims = func() { m.ActivityTrimsTotal.Inc() }
	}
}

// NewService creates an activity service on top of the store client.
func NewService(st *store.Client, opts ...Option) *Service {
	s := &Service{
		store: st,
		log:   observability.Nop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// recordID derives a stream-local id from the write time and the record
// content, so the same event lands under distinct ids in distinct streams.
func recordID(ts time.Time, streamKey, activityType string, payload []byte) string {
	h := fnv.New64a()
	h.Write([]byte(streamKey))
	h.Write([]byte(activityType))
	h.Write(payload)
	return fmt.Sprintf("%d-%d", ts.UnixMilli(), h.Sum64())
}

// Add records one event into every requested stream. Streams are written
// independently and concurrently; a failed stream does not roll back the
// others. Returns the record written per scope ("entity", "user", "global").
func (s *Service) Add(ctx context.Context, activityType string, scopes Scopes, data map[string]interface{}) (map[string]Record, error) {
	streams := scopes.streams()
	if len(streams) == 0 {
		return nil, fmt.Errorf("activity add: no scopes selected")
	}

	ts := s.now().UTC()
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("activity add: encode data: %w", err)
	}

	results := make([]Record, len(streams))
	g, gctx := errgroup.WithContext(ctx)
	for i, st := range streams {
		i, st := i, st
		g.Go(func() error {
			rec := Record{
				ID:        recordID(ts, st.key, activityType, payload),
				Type:      activityType,
				Timestamp: ts,
				EntityID:  scopes.EntityID,
				UserID:    scopes.UserID,
				Data:      data,
			}
			raw, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("activity add: encode record: %w", err)
			}

			n, err := s.store.LPushTrim(gctx, st.key, string(raw), keys.TrimTriggerLength, keys.MaxStreamLength)
			if err != nil {
				s.log.WithError(err).WithField("stream", st.scope).Warn("activity push failed")
				return err
			}
			if s.pushes != nil {
				s.pushes(st.scope)
			}
			if s.trims != nil && n == keys.MaxStreamLength {
				s.trims()
			}
			results[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]Record, len(streams))
	for i, st := range streams {
		out[st.scope] = results[i]
	}
	return out, nil
}

// Range returns up to limit records from [start, start+limit), newest first.
// Filtering happens after the read, so a filtered page may come back short.
func (s *Service) Range(ctx context.Context, st Stream, start, limit int, filter Filter) ([]Record, error) {
	if limit <= 0 {
		return nil, nil
	}

	raws, err := s.store.LRange(ctx, st.key, int64(start), int64(start+limit-1))
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(raws))
	for _, raw := range raws {
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			s.log.WithError(err).WithField("stream", st.scope).Warn("skipping undecodable activity record")
			continue
		}
		if filter.match(rec) {
			records = append(records, rec)
		}
	}
	return records, nil
}

// FindByID scans the stream for a record id. The scan is bounded by the
// stream cap, so it stays cheap. Returns ok=false when the id is not present.
func (s *Service) FindByID(ctx context.Context, st Stream, id string) (Record, bool, error) {
	raws, err := s.store.LRange(ctx, st.key, 0, -1)
	if err != nil {
		return Record{}, false, err
	}

	for _, raw := range raws {
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		if rec.ID == id {
			return rec, true, nil
		}
	}
	return Record{}, false, nil
}

// DeleteByID removes the record with the given id from the stream. Returns
// whether a record was removed.
func (s *Service) DeleteByID(ctx context.Context, st Stream, id string) (bool, error) {
	raws, err := s.store.LRange(ctx, st.key, 0, -1)
	if err != nil {
		return false, err
	}

	for _, raw := range raws {
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		if rec.ID == id {
			n, err := s.store.LRem(ctx, st.key, 1, raw)
			if err != nil {
				return false, err
			}
			return n > 0, nil
		}
	}
	return false, nil
}

// Count returns the current stream length.
func (s *Service) Count(ctx context.Context, st Stream) (int64, error) {
	return s.store.LLen(ctx, st.key)
}

// Clear drops the stream entirely.
func (s *Service) Clear(ctx context.Context, st Stream) error {
	_, err := s.store.Del(ctx, st.key)
	return err
}

// Types returns the distinct activity types currently present in the stream,
// sorted for stable output.
func (s *Service) Types(ctx context.Context, st Stream) ([]string, error) {
	raws, err := s.store.LRange(ctx, st.key, 0, -1)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, raw := range raws {
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		seen[rec.Type] = struct{}{}
	}

	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return types, nil
}
