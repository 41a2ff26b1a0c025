package memory

import (
	"context"
	"testing"
	"time"

	"classroom-quiz-service/internal/domain"
)

func TestBrokerDeliversByTopic(t *testing.T) {
	broker := NewBroker()
	ctx := context.Background()
	topic := domain.Topic{Table: domain.TableSessions, SessionID: "s1"}

	ch, cancel, err := broker.Subscribe(ctx, topic)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	_ = broker.Publish(ctx, domain.ChangeEvent{ID: "other", Table: domain.TableSessions, SessionID: "s2"})
	_ = broker.Publish(ctx, domain.ChangeEvent{ID: "mine", Table: domain.TableSessions, SessionID: "s1"})

	select {
	case ev := <-ch:
		if ev.ID != "mine" {
			t.Fatalf("expected own topic event, got %s", ev.ID)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for event")
	}
}

func TestBrokerDropsOldestWhenFull(t *testing.T) {
	broker := NewBroker()
	ctx := context.Background()
	topic := domain.Topic{Table: domain.TableParticipants, SessionID: "s1"}

	ch, cancel, _ := broker.Subscribe(ctx, topic)
	defer cancel()

	for i := 0; i < subscriberBuffer+3; i++ {
		_ = broker.Publish(ctx, domain.ChangeEvent{ID: string(rune('a' + i)), Table: topic.Table, SessionID: "s1"})
	}

	var last domain.ChangeEvent
	for i := 0; i < subscriberBuffer; i++ {
		last = <-ch
	}
	if want := string(rune('a' + subscriberBuffer + 2)); last.ID != want {
		t.Fatalf("expected newest event %s last, got %s", want, last.ID)
	}
}

func TestBrokerUnsubscribesOnContextDone(t *testing.T) {
	broker := NewBroker()
	ctx, cancelCtx := context.WithCancel(context.Background())
	topic := domain.Topic{Table: domain.TableSessions, SessionID: "s1"}

	ch, _, _ := broker.Subscribe(ctx, topic)
	cancelCtx()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("subscription not closed after context cancel")
	}
	if n := broker.SubscriberCount(topic); n != 0 {
		t.Fatalf("expected no subscribers, got %d", n)
	}
}
