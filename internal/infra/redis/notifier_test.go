package redis

import (
	"context"
	"testing"
	"time"

	"classroom-quiz-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestNotifierRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	notifier := NewNotifier(newClient(mr))
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	topic := domain.Topic{Table: domain.TableSessions, SessionID: "s1"}
	ch, cancel, err := notifier.Subscribe(ctx, topic)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	event := domain.ChangeEvent{
		ID:        "ev-1",
		Table:     domain.TableSessions,
		Type:      domain.ChangeUpdate,
		SessionID: "s1",
		After:     []byte(`{"status":"playing"}`),
		At:        time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	if err := notifier.Publish(ctx, domain.ChangeEvent{ID: "other", Table: domain.TableSessions, SessionID: "s2"}); err != nil {
		t.Fatalf("publish other: %v", err)
	}
	if err := notifier.Publish(ctx, event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-ch:
		if got.ID != "ev-1" || got.Type != domain.ChangeUpdate || string(got.After) != `{"status":"playing"}` {
			t.Fatalf("unexpected event: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for event")
	}
}

func TestNotifierCancelClosesChannel(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	notifier := NewNotifier(newClient(mr))
	ch, cancel, err := notifier.Subscribe(context.Background(), domain.Topic{Table: domain.TableParticipants, SessionID: "s1"})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("channel not closed after cancel")
	}
}
