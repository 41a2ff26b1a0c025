package redis

import (
	"context"
	"testing"
	"time"

	"classroom-quiz-service/internal/domain"
	"classroom-quiz-service/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestQuestionCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		QuestionLoader: memory.NewStaticQuestionLoader(map[string][]domain.Question{
			"block-1": sampleQuestions(),
		}),
	}
	cache := NewQuestionCache(client, loader, time.Minute)

	questions, err := cache.ListQuestions(context.Background(), "block-1")
	if err != nil {
		t.Fatalf("list questions: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if questions[0].ID != "q1" {
		t.Fatalf("expected questions ordered by index, got %s first", questions[0].ID)
	}
	if !mr.Exists("block:block-1:questions") {
		t.Fatalf("expected redis key to be set")
	}
	if ttl := mr.TTL("block:block-1:questions"); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("expected ttl with up to 10%% jitter, got %s", ttl)
	}

	// Second call should hit cache, loader not incremented.
	cached, err := cache.ListQuestions(context.Background(), "block-1")
	if err != nil {
		t.Fatalf("list questions 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if cached[1].CorrectOption != 0 || cached[1].Options[0] != "Rome" {
		t.Fatalf("cached question lost fields: %+v", cached[1])
	}

	if err := cache.Invalidate(context.Background(), "block-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	_, _ = cache.ListQuestions(context.Background(), "block-1")
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.calls)
	}
}

type countingLoader struct {
	memory.QuestionLoader
	calls int
}

func (l *countingLoader) LoadQuestions(ctx context.Context, blockID string) ([]domain.Question, error) {
	l.calls++
	return l.QuestionLoader.LoadQuestions(ctx, blockID)
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "q2", BlockID: "block-1", OrderIndex: 1, Text: "Capital of Italy?", Options: []string{"Rome", "Paris"}, CorrectOption: 0, TimeSeconds: 20, MaxPoints: 1000},
		{ID: "q1", BlockID: "block-1", OrderIndex: 0, Text: "What is 2 + 2?", Options: []string{"3", "4"}, CorrectOption: 1, TimeSeconds: 30, MaxPoints: 1000},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}
