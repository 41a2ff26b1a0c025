package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"classroom-quiz-service/internal/domain"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches a block's questions from the backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, blockID string) ([]domain.Question, error)
}

// QuestionCache caches question blocks with TTL to avoid repeated DB hits.
// Questions are immutable while a game is running, so a stale entry is only
// ever older content for a block nobody is playing.
type QuestionCache struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  clockwork.Clock
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedBlock
}

type cachedBlock struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionCache(loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return NewQuestionCacheWithClock(loader, ttl, clockwork.NewRealClock())
}

// NewQuestionCacheWithClock is used by tests to drive expiry.
func NewQuestionCacheWithClock(loader QuestionLoader, ttl time.Duration, clock clockwork.Clock) *QuestionCache {
	return &QuestionCache{
		loader: loader,
		ttl:    ttl,
		clock:  clock,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedBlock),
	}
}

func (c *QuestionCache) ListQuestions(ctx context.Context, blockID string) ([]domain.Question, error) {
	if questions, ok := c.lookup(blockID); ok {
		return questions, nil
	}

	result, err, _ := c.sf.Do(blockID, func() (interface{}, error) {
		if questions, ok := c.lookup(blockID); ok {
			return questions, nil
		}

		questions, err := c.loader.LoadQuestions(ctx, blockID)
		if err != nil {
			return nil, err
		}
		sortQuestions(questions)

		c.mu.Lock()
		c.cache[blockID] = cachedBlock{
			questions: questions,
			expiresAt: c.clock.Now().Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Invalidate drops a cached block so edits made since it was loaded are seen.
func (c *QuestionCache) Invalidate(_ context.Context, blockID string) error {
	c.mu.Lock()
	delete(c.cache, blockID)
	c.mu.Unlock()
	return nil
}

func (c *QuestionCache) lookup(blockID string) ([]domain.Question, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[blockID]
	if !ok || !entry.expiresAt.After(c.clock.Now()) {
		return nil, false
	}
	return entry.questions, true
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader is a loader backed by an in-memory map (useful for tests/demos).
type StaticQuestionLoader struct {
	blocks map[string][]domain.Question
}

func NewStaticQuestionLoader(blocks map[string][]domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{blocks: blocks}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, blockID string) ([]domain.Question, error) {
	questions, ok := l.blocks[blockID]
	if !ok {
		return nil, domain.ErrBlockNotFound
	}
	out := make([]domain.Question, len(questions))
	copy(out, questions)
	return out, nil
}

func sortQuestions(questions []domain.Question) {
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].OrderIndex < questions[j].OrderIndex
	})
}
