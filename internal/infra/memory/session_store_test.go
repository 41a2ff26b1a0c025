package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"classroom-quiz-service/internal/domain"
)

func TestStoreSessionLifecycle(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	session := domain.GameSession{ID: "s1", TeacherID: "t1", PinCode: "123456", BlockID: "b1", Status: domain.StatusWaiting, Version: 1}
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.FindActiveByPin(ctx, "123456"); err != nil {
		t.Fatalf("find by pin: %v", err)
	}

	dup := session
	dup.ID = "s2"
	if err := store.CreateSession(ctx, dup); !errors.Is(err, domain.ErrPinInUse) {
		t.Fatalf("expected pin in use, got %v", err)
	}

	session.Status = domain.StatusFinished
	stored, err := store.UpdateSession(ctx, session, 1)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if stored.Version != 2 {
		t.Fatalf("expected version 2, got %d", stored.Version)
	}
	if _, err := store.UpdateSession(ctx, session, 1); !errors.Is(err, domain.ErrStaleSession) {
		t.Fatalf("expected stale session, got %v", err)
	}

	if _, err := store.FindActiveByPin(ctx, "123456"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("finished session should release its pin, got %v", err)
	}
	if err := store.CreateSession(ctx, dup); err != nil {
		t.Fatalf("pin should be reusable after finish: %v", err)
	}
}

func TestStoreNicknameUniquePerSession(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_ = store.CreateSession(ctx, domain.GameSession{ID: "s1", PinCode: "111111", Status: domain.StatusWaiting})
	_ = store.CreateSession(ctx, domain.GameSession{ID: "s2", PinCode: "222222", Status: domain.StatusWaiting})

	if err := store.CreateParticipant(ctx, domain.Participant{ID: "p1", SessionID: "s1", Nickname: "Ana"}); err != nil {
		t.Fatalf("first join: %v", err)
	}
	if err := store.CreateParticipant(ctx, domain.Participant{ID: "p2", SessionID: "s1", Nickname: "Ana"}); !errors.Is(err, domain.ErrNicknameTaken) {
		t.Fatalf("expected nickname taken, got %v", err)
	}
	if err := store.CreateParticipant(ctx, domain.Participant{ID: "p3", SessionID: "s2", Nickname: "Ana"}); err != nil {
		t.Fatalf("same nickname in another session: %v", err)
	}
}

func TestStoreRecordAnswerOnce(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_ = store.CreateSession(ctx, domain.GameSession{ID: "s1", PinCode: "111111", Status: domain.StatusPlaying})
	_ = store.CreateParticipant(ctx, domain.Participant{ID: "p1", SessionID: "s1", Nickname: "Ana"})

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.RecordAnswer(ctx, domain.Answer{ParticipantID: "p1", QuestionID: "q1", PointsEarned: 900})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	accepted := 0
	for err := range results {
		switch {
		case err == nil:
			accepted++
		case !errors.Is(err, domain.ErrAnswerExists):
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if accepted != 1 {
		t.Fatalf("expected exactly one accepted answer, got %d", accepted)
	}
	p, _ := store.GetParticipant(ctx, "p1")
	if p.TotalScore != 900 {
		t.Fatalf("expected score 900, got %d", p.TotalScore)
	}
	answers, err := store.ListAnswers(ctx, "p1")
	if err != nil || len(answers) != 1 {
		t.Fatalf("expected one listed answer, got %d (%v)", len(answers), err)
	}
	if others, _ := store.ListAnswers(ctx, "p2"); len(others) != 0 {
		t.Fatalf("expected no answers for another participant, got %d", len(others))
	}
}

func TestStoreListParticipantsOrdering(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	_ = store.CreateSession(ctx, domain.GameSession{ID: "s1", PinCode: "111111", Status: domain.StatusWaiting})
	_ = store.CreateParticipant(ctx, domain.Participant{ID: "a", SessionID: "s1", Nickname: "a", JoinedAt: base.Add(2 * time.Second)})
	_ = store.CreateParticipant(ctx, domain.Participant{ID: "b", SessionID: "s1", Nickname: "b", JoinedAt: base.Add(time.Second)})
	_ = store.CreateParticipant(ctx, domain.Participant{ID: "c", SessionID: "s1", Nickname: "c", JoinedAt: base})
	_, _ = store.RecordAnswer(ctx, domain.Answer{ParticipantID: "a", QuestionID: "q1", PointsEarned: 500})
	_, _ = store.RecordAnswer(ctx, domain.Answer{ParticipantID: "b", QuestionID: "q1", PointsEarned: 500})

	list, err := store.ListParticipants(ctx, "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := []string{list[0].ID, list[1].ID, list[2].ID}
	want := []string{"b", "a", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch: got %v want %v", got, want)
		}
	}
}
