package store

import (
	"context"

	"github.com/go-redis/redis/v8"
)

// Message is one pub/sub delivery.
type Message struct {
	Channel string
	Payload string
}

// Subscription is an active pub/sub subscription. Deliveries are fire and
// forget: messages published while no subscriber is attached are lost.
type Subscription struct {
	ps *redis.PubSub
	ch chan Message
}

// Publish broadcasts a payload on a channel and returns the number of
// subscribers that received it. Structured payloads are serialized to JSON.
func (c *Client) Publish(ctx context.Context, channel string, payload interface{}) (int64, error) {
	done := c.observe("publish")
	encoded, err := EncodeValue(payload)
	if err != nil {
		done(err)
		return 0, err
	}
	n, err := c.rdb.Publish(ctx, channel, encoded).Result()
	if err != nil {
		done(err)
		return 0, storeErr("publish", channel, err)
	}
	done(nil)
	return n, nil
}

// Subscribe opens a subscription on the given channels and confirms it with
// the server before returning.
func (c *Client) Subscribe(ctx context.Context, channels ...string) (*Subscription, error) {
	ps := c.rdb.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, storeErr("subscribe", channels[0], err)
	}
	return newSubscription(ps), nil
}

// PSubscribe opens a pattern subscription (e.g. "psm:alerts:*").
func (c *Client) PSubscribe(ctx context.Context, patterns ...string) (*Subscription, error) {
	ps := c.rdb.PSubscribe(ctx, patterns...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, storeErr("psubscribe", patterns[0], err)
	}
	return newSubscription(ps), nil
}

func newSubscription(ps *redis.PubSub) *Subscription {
	s := &Subscription{ps: ps, ch: make(chan Message)}
	go func() {
		defer close(s.ch)
		for msg := range ps.Channel() {
			s.ch <- Message{Channel: msg.Channel, Payload: msg.Payload}
		}
	}()
	return s
}

// Channel returns the delivery channel. It is closed when the subscription is
// closed.
func (s *Subscription) Channel() <-chan Message {
	return s.ch
}

// Close terminates the subscription and drains the delivery channel.
func (s *Subscription) Close() error {
	return s.ps.Close()
}
