package alerts

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/psmlab/realtime/pkg/keys"
	"github.com/psmlab/realtime/pkg/store"
)

// Handler consumes one delivered alert. It runs on the consumer's goroutine,
// so a slow handler backs up that consumer only.
type Handler func(Alert)

// Consumer is a running alert subscription.
type Consumer struct {
	sub  *store.Subscription
	wg   sync.WaitGroup
	once sync.Once
}

func (s *Service) consume(sub *store.Subscription, handler Handler) *Consumer {
	c := &Consumer{sub: sub}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for msg := range sub.Channel() {
			var alert Alert
			if err := json.Unmarshal([]byte(msg.Payload), &alert); err != nil {
				s.log.WithError(err).WithField("channel", msg.Channel).Warn("dropping undecodable alert delivery")
				continue
			}
			handler(alert)
		}
	}()
	return c
}

// Close stops the consumer and waits for in-flight handler calls to return.
func (c *Consumer) Close() error {
	var err error
	c.once.Do(func() {
		err = c.sub.Close()
		c.wg.Wait()
	})
	return err
}

// Subscribe delivers the entity's alerts to handler until the consumer is
// closed. Deliveries are live only: alerts raised before the subscription
// landed are read via Pending, not replayed here.
func (s *Service) Subscribe(ctx context.Context, entityID string, handler Handler) (*Consumer, error) {
	sub, err := s.store.Subscribe(ctx, keys.AlertChannelEntity(entityID))
	if err != nil {
		return nil, err
	}
	return s.consume(sub, handler), nil
}

// SubscribeTopic delivers a topic channel's alerts to handler.
func (s *Service) SubscribeTopic(ctx context.Context, topic string, handler Handler) (*Consumer, error) {
	sub, err := s.store.Subscribe(ctx, keys.AlertChannelTopic(topic))
	if err != nil {
		return nil, err
	}
	return s.consume(sub, handler), nil
}

// SubscribeAll delivers every alert broadcast, entity and topic alike.
func (s *Service) SubscribeAll(ctx context.Context, handler Handler) (*Consumer, error) {
	sub, err := s.store.PSubscribe(ctx, keys.AlertChannelPattern())
	if err != nil {
		return nil, err
	}
	return s.consume(sub, handler), nil
}
