package memory

import (
	"context"
	"sync"

	"classroom-quiz-service/internal/domain"
)

const subscriberBuffer = 8

// Broker is an in-process change feed. Delivery is at-most-once: a slow
// subscriber loses its oldest pending event rather than blocking publishers.
type Broker struct {
	mu          sync.Mutex
	subscribers map[domain.Topic]map[chan domain.ChangeEvent]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[domain.Topic]map[chan domain.ChangeEvent]struct{}),
	}
}

func (b *Broker) Publish(_ context.Context, event domain.ChangeEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers[event.Topic()] {
		select {
		case ch <- event:
		default:
			// drop the stale event so the newest one always fits
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
	return nil
}

func (b *Broker) Subscribe(ctx context.Context, topic domain.Topic) (<-chan domain.ChangeEvent, func(), error) {
	ch := make(chan domain.ChangeEvent, subscriberBuffer)

	b.mu.Lock()
	subs, ok := b.subscribers[topic]
	if !ok {
		subs = make(map[chan domain.ChangeEvent]struct{})
		b.subscribers[topic] = subs
	}
	subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	done := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(done)
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.subscribers[topic]
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(b.subscribers, topic)
			}
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return ch, cancel, nil
}

// SubscriberCount reports live subscriptions on topic.
func (b *Broker) SubscriberCount(topic domain.Topic) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers[topic])
}
