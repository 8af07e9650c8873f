// Package alerts persists anomaly alerts per entity and broadcasts them over
// pub/sub. Pending alerts sit in a sorted set scored by unix time plus a
// priority bonus, so a CRITICAL alert raised an hour ago still ranks above a
// LOW alert raised just now. Alert sets carry no TTL; retention is the
// sweeper's job.
package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/psmlab/realtime/pkg/keys"
	"github.com/psmlab/realtime/pkg/observability"
	"github.com/psmlab/realtime/pkg/store"
)

// priorityScoreScale spaces priorities far enough apart that recency can
// never flip the priority order inside the retention window.
const priorityScoreScale = 10000

// Alert is one raised alert.
type Alert struct {
	ID        string                 `json:"id"`
	EntityID  string                 `json:"entity_id,omitempty"`
	Topic     string                 `json:"topic,omitempty"`
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Priority  Priority               `json:"priority"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Service raises, reads, acknowledges, and sweeps alerts.
type Service struct {
	store     *store.Client
	log       *observability.Logger
	now       func() time.Time
	raised    func(priority string)
	published func()
	swept     func(n int)
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a logger.
func WithLogger(log *observability.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithMetrics wires alert counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) {
		s.raised = func(priority string) { m.AlertsRaisedTotal.WithLabelValues(priority).Inc() }
		s.published = func() { m.AlertsPublishedTotal.Inc() }
		s.swept = func(n int) { m.AlertsSweptTotal.Add(float64(n)) }
	}
}

// NewService creates an alert service on top of the store client.
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

func (s *Service) score(ts time.Time, pri Priority) float64 {
	return float64(ts.Unix() + int64(pri)*priorityScoreScale)
}

// RaiseOption adjusts a single Raise call.
type RaiseOption func(*raiseConfig)

type raiseConfig struct {
	publish bool
}

// NoPublish persists the alert without broadcasting it.
func NoPublish() RaiseOption {
	return func(rc *raiseConfig) { rc.publish = false }
}

// Raise persists an alert for the entity and, unless NoPublish is given,
// broadcasts it on the entity's alert channel. Persistence is the contract; a
// publish failure is logged and the alert still stands.
func (s *Service) Raise(ctx context.Context, entityID, alertType, message string, pri Priority, data map[string]interface{}, opts ...RaiseOption) (Alert, error) {
	rc := raiseConfig{publish: true}
	for _, opt := range opts {
		opt(&rc)
	}

	if !pri.Valid() {
		return Alert{}, fmt.Errorf("unknown alert priority %d", int(pri))
	}
	if entityID == "" {
		return Alert{}, fmt.Errorf("alert entity id is required")
	}

	ts := s.now().UTC()
	alert := Alert{
		ID:        fmt.Sprintf("alert:%d:%s", ts.UnixMilli(), uuid.NewString()),
		EntityID:  entityID,
		Type:      alertType,
		Message:   message,
		Priority:  pri,
		Timestamp: ts,
		Data:      data,
	}

	raw, err := json.Marshal(alert)
	if err != nil {
		return Alert{}, fmt.Errorf("encode alert: %w", err)
	}

	if err := s.store.ZAdd(ctx, keys.AlertsEntity(entityID), string(raw), s.score(ts, pri), 0); err != nil {
		return Alert{}, err
	}
	if s.raised != nil {
		s.raised(pri.String())
	}

	if rc.publish {
		if _, err := s.store.Publish(ctx, keys.AlertChannelEntity(entityID), string(raw)); err != nil {
			s.log.WithError(err).WithField("entity_id", entityID).Warn("alert publish failed")
		} else if s.published != nil {
			s.published()
		}
	}
	return alert, nil
}

// RaiseTopic broadcasts an alert on a topic channel without persisting it.
// Topic alerts are fire and forget: nobody listening means nobody told.
func (s *Service) RaiseTopic(ctx context.Context, topic, alertType, message string, pri Priority, data map[string]interface{}) (Alert, error) {
	if !pri.Valid() {
		return Alert{}, fmt.Errorf("unknown alert priority %d", int(pri))
	}
	if topic == "" {
		return Alert{}, fmt.Errorf("alert topic is required")
	}

	ts := s.now().UTC()
	alert := Alert{
		ID:        fmt.Sprintf("alert:%d:%s", ts.UnixMilli(), uuid.NewString()),
		Topic:     topic,
		Type:      alertType,
		Message:   message,
		Priority:  pri,
		Timestamp: ts,
		Data:      data,
	}

	raw, err := json.Marshal(alert)
	if err != nil {
		return Alert{}, fmt.Errorf("encode alert: %w", err)
	}

	if _, err := s.store.Publish(ctx, keys.AlertChannelTopic(topic), string(raw)); err != nil {
		return Alert{}, err
	}
	if s.published != nil {
		s.published()
	}
	return alert, nil
}

// Pending returns up to limit of the entity's unacknowledged alerts, highest
// score first, dropping anything below minPriority. The priority filter runs
// after the read, so a filtered page may come back short. A limit of 0 or
// less returns everything.
func (s *Service) Pending(ctx context.Context, entityID string, limit int, minPriority Priority) ([]Alert, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	zs, err := s.store.ZRevRange(ctx, keys.AlertsEntity(entityID), 0, stop)
	if err != nil {
		return nil, err
	}

	alerts := make([]Alert, 0, len(zs))
	for _, z := range zs {
		var alert Alert
		if err := json.Unmarshal([]byte(z.Member), &alert); err != nil {
			s.log.WithError(err).WithField("entity_id", entityID).Warn("skipping undecodable alert")
			continue
		}
		if alert.Priority >= minPriority {
			alerts = append(alerts, alert)
		}
	}
	return alerts, nil
}

// Acknowledge removes one alert by id. Returns whether it was present.
func (s *Service) Acknowledge(ctx context.Context, entityID, alertID string) (bool, error) {
	zs, err := s.store.ZRevRange(ctx, keys.AlertsEntity(entityID), 0, -1)
	if err != nil {
		return false, err
	}

	for _, z := range zs {
		var alert Alert
		if err := json.Unmarshal([]byte(z.Member), &alert); err != nil {
			continue
		}
		if alert.ID == alertID {
			n, err := s.store.ZRem(ctx, keys.AlertsEntity(entityID), z.Member)
			if err != nil {
				return false, err
			}
			return n > 0, nil
		}
	}
	return false, nil
}

// SweepOlderThan removes alerts raised before the cutoff age from every
// entity's alert set. Returns how many were removed.
func (s *Service) SweepOlderThan(ctx context.Context, age time.Duration) (int, error) {
	alertKeys, err := s.store.Keys(ctx, keys.AlertsEntityPattern())
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-age)
	removed := 0
	for _, key := range alertKeys {
		zs, err := s.store.ZRange(ctx, key, 0, -1)
		if err != nil {
			return removed, err
		}
		var stale []string
		for _, z := range zs {
			var alert Alert
			if err := json.Unmarshal([]byte(z.Member), &alert); err != nil {
				stale = append(stale, z.Member)
				continue
			}
			if alert.Timestamp.Before(cutoff) {
				stale = append(stale, z.Member)
			}
		}
		if len(stale) == 0 {
			continue
		}
		n, err := s.store.ZRem(ctx, key, stale...)
		if err != nil {
			return removed, err
		}
		removed += int(n)
	}

	if removed > 0 {
		s.log.WithField("removed", removed).Info("alert sweep complete")
		if s.swept != nil {
			s.swept(removed)
		}
	}
	return removed, nil
}

// SweepAll drops every entity's alert set outright.
func (s *Service) SweepAll(ctx context.Context) (int, error) {
	alertKeys, err := s.store.Keys(ctx, keys.AlertsEntityPattern())
	if err != nil {
		return 0, err
	}
	if len(alertKeys) == 0 {
		return 0, nil
	}

	removed := 0
	for _, key := range alertKeys {
		n, err := s.store.ZCard(ctx, key)
		if err != nil {
			return removed, err
		}
		if _, err := s.store.Del(ctx, key); err != nil {
			return removed, err
		}
		removed += int(n)
	}

	if removed > 0 && s.swept != nil {
		s.swept(removed)
	}
	return removed, nil
}
