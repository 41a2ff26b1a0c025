package nats

import (
	"testing"

	"classroom-quiz-service/internal/domain"
	"github.com/nats-io/nats.go"
)

func TestSubjectPerTableAndSession(t *testing.T) {
	n := NewNotifier(nil, "")
	got := n.subject(domain.Topic{Table: domain.TableParticipants, SessionID: "s-1"})
	if got != "quiz.changes.participants.s-1" {
		t.Fatalf("unexpected subject %q", got)
	}
}

func TestDecodeSkipsGarbage(t *testing.T) {
	if _, ok := decode(&nats.Msg{Subject: "quiz.changes.game_sessions.s1", Data: []byte("not json")}); ok {
		t.Fatalf("expected decode failure")
	}
	event, ok := decode(&nats.Msg{Data: []byte(`{"id":"e1","table":"game_sessions","type":"UPDATE","sessionId":"s1"}`)})
	if !ok || event.ID != "e1" || event.Type != domain.ChangeUpdate || event.SessionID != "s1" {
		t.Fatalf("unexpected decode result: %+v ok=%v", event, ok)
	}
}

func TestDeliverKeepsNewest(t *testing.T) {
	ch := make(chan domain.ChangeEvent, 1)
	deliver(ch, domain.ChangeEvent{ID: "old"})
	deliver(ch, domain.ChangeEvent{ID: "new"})
	if got := <-ch; got.ID != "new" {
		t.Fatalf("expected newest event, got %s", got.ID)
	}
}
