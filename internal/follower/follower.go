// Package follower keeps a participant's view of a live game in sync with the
// authoritative session record. Change events and a periodic poll are both
// treated as triggers to re-read the snapshot; neither is trusted as state.
package follower

import (
	"context"
	"sync"
	"time"

	"classroom-quiz-service/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// DefaultPollInterval is the fallback re-check period when events are missed.
const DefaultPollInterval = 3 * time.Second

// SnapshotSource rebuilds a participant's state from its id.
type SnapshotSource interface {
	GetSessionSnapshot(ctx context.Context, participantID string) (domain.Snapshot, error)
}

// Feed is the change-notification feed.
type Feed interface {
	Subscribe(ctx context.Context, topic domain.Topic) (<-chan domain.ChangeEvent, func(), error)
}

// Follower tracks one participant.
type Follower struct {
	source        SnapshotSource
	feed          Feed
	clock         clockwork.Clock
	interval      time.Duration
	participantID string

	mu   sync.RWMutex
	last *domain.Snapshot
}

// Option customizes a Follower.
type Option func(*Follower)

func WithClock(clock clockwork.Clock) Option {
	return func(f *Follower) { f.clock = clock }
}

func WithPollInterval(d time.Duration) Option {
	return func(f *Follower) {
		if d > 0 {
			f.interval = d
		}
	}
}

func New(source SnapshotSource, feed Feed, participantID string, opts ...Option) *Follower {
	f := &Follower{
		source:        source,
		feed:          feed,
		clock:         clockwork.NewRealClock(),
		interval:      DefaultPollInterval,
		participantID: participantID,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run fetches the initial snapshot, then re-fetches on every change event and
// poll tick until ctx ends. onSnapshot is called from Run's goroutine for every
// accepted snapshot. The initial fetch error is returned; later fetch errors
// are logged and retried on the next trigger.
func (f *Follower) Run(ctx context.Context, onSnapshot func(domain.Snapshot)) error {
	initial, err := f.source.GetSessionSnapshot(ctx, f.participantID)
	if err != nil {
		return err
	}
	f.offer(initial, onSnapshot)
	sessionID := initial.Session.ID

	events := make(chan domain.ChangeEvent, 1)
	for _, table := range []domain.Table{domain.TableSessions, domain.TableParticipants} {
		ch, cancel, err := f.feed.Subscribe(ctx, domain.Topic{Table: table, SessionID: sessionID})
		if err != nil {
			// polling still converges, only slower
			log.Warn().Err(err).Str("table", string(table)).Str("session_id", sessionID).Msg("subscribe to change feed")
			continue
		}
		defer cancel()
		go forward(ctx, ch, events)
	}

	ticker := f.clock.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-events:
		case <-ticker.Chan():
		}
		snap, err := f.source.GetSessionSnapshot(ctx, f.participantID)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Str("participant_id", f.participantID).Msg("refresh snapshot")
			continue
		}
		f.offer(snap, onSnapshot)
	}
}

// Current returns the last accepted snapshot with its countdown recomputed
// for the current instant.
func (f *Follower) Current() (domain.Snapshot, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.last == nil {
		return domain.Snapshot{}, false
	}
	snap := *f.last
	snap.RemainingSeconds = Remaining(snap, f.clock.Now())
	return snap, true
}

func (f *Follower) offer(snap domain.Snapshot, onSnapshot func(domain.Snapshot)) {
	f.mu.Lock()
	if f.last != nil && Regresses(*f.last, snap) {
		f.mu.Unlock()
		log.Debug().
			Str("participant_id", f.participantID).
			Int("index", snap.Session.CurrentQuestionIndex).
			Str("status", string(snap.Session.Status)).
			Msg("dropping stale snapshot")
		return
	}
	stored := snap
	f.last = &stored
	f.mu.Unlock()

	snap.RemainingSeconds = Remaining(snap, f.clock.Now())
	if onSnapshot != nil {
		onSnapshot(snap)
	}
}

// Regresses reports whether next is older than prev: an earlier status, or an
// earlier question within the same status.
func Regresses(prev, next domain.Snapshot) bool {
	pr, nr := prev.Session.Status.Rank(), next.Session.Status.Rank()
	if nr != pr {
		return nr < pr
	}
	return next.Session.CurrentQuestionIndex < prev.Session.CurrentQuestionIndex
}

// Remaining derives the countdown from the snapshot's question start anchor.
func Remaining(snap domain.Snapshot, now time.Time) int {
	if snap.Session.Status != domain.StatusPlaying || snap.Session.QuestionStartedAt == nil || snap.CurrentQuestion == nil {
		return 0
	}
	return domain.RemainingSeconds(*snap.Session.QuestionStartedAt, snap.CurrentQuestion.TimeSeconds, now)
}

// forward collapses events into a single pending trigger.
func forward(ctx context.Context, in <-chan domain.ChangeEvent, out chan<- domain.ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- ev:
			default:
			}
		}
	}
}
