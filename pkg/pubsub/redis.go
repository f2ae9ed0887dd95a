package pubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

type RedisBroker struct {
	client *redis.Client
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func (b *RedisBroker) Publish(ctx context.Context, group string, payload []byte) error {
	if err := b.client.Publish(ctx, group, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", group, err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, groups ...string) (Subscription, error) {
	ps := b.client.Subscribe(ctx, groups...)

	// Wait for confirmation that subscription is created
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe to %v: %w", groups, err)
	}

	sub := &redisSubscription{
		ps:   ps,
		out:  make(chan []byte, subscriptionBuffer),
		done: make(chan struct{}),
	}
	go sub.forward()

	return sub, nil
}

// redisSubscription drops payloads for a subscriber whose buffer is full,
// the same as the memory broker.
type redisSubscription struct {
	ps   *redis.PubSub
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func (s *redisSubscription) forward() {
	defer close(s.out)
	msgs := s.ps.Channel()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			select {
			case s.out <- []byte(msg.Payload):
			default:
			}
		}
	}
}

func (s *redisSubscription) C() <-chan []byte {
	return s.out
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
