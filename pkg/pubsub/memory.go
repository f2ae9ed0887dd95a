package pubsub

import (
	"context"
	"sync"
)

// MemoryBroker fans out inside the process. Used when no redis is configured.
// A subscriber whose buffer is full misses the payload rather than blocking
// the publisher.
type MemoryBroker struct {
	mu     sync.RWMutex
	groups map[string]map[*memorySubscription]struct{}
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{groups: make(map[string]map[*memorySubscription]struct{})}
}

func (b *MemoryBroker) Publish(_ context.Context, group string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.groups[group] {
		select {
		case sub.ch <- payload:
		default:
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(_ context.Context, groups ...string) (Subscription, error) {
	sub := &memorySubscription{
		broker: b,
		groups: groups,
		ch:     make(chan []byte, subscriptionBuffer),
	}

	b.mu.Lock()
	for _, g := range groups {
		if b.groups[g] == nil {
			b.groups[g] = make(map[*memorySubscription]struct{})
		}
		b.groups[g][sub] = struct{}{}
	}
	b.mu.Unlock()

	return sub, nil
}

// Subscribers reports how many subscriptions are joined to group.
func (b *MemoryBroker) Subscribers(group string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.groups[group])
}

type memorySubscription struct {
	broker *MemoryBroker
	groups []string
	ch     chan []byte
	once   sync.Once
}

func (s *memorySubscription) C() <-chan []byte {
	return s.ch
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.broker.mu.Lock()
		for _, g := range s.groups {
			delete(s.broker.groups[g], s)
			if len(s.broker.groups[g]) == 0 {
				delete(s.broker.groups, g)
			}
		}
		s.broker.mu.Unlock()
		close(s.ch)
	})
	return nil
}
