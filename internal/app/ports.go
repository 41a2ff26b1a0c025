package app

import (
	"context"

	"classroom-quiz-service/internal/domain"
)

// SessionRepository stores game session rows.
type SessionRepository interface {
	CreateSession(ctx context.Context, session domain.GameSession) error
	GetSession(ctx context.Context, sessionID string) (domain.GameSession, error)
	// FindActiveByPin resolves a PIN among waiting and playing sessions.
	FindActiveByPin(ctx context.Context, pin string) (domain.GameSession, error)
	// UpdateSession replaces the row if its version still equals expectedVersion,
	// and returns the stored row with the version bumped. A mismatch yields
	// domain.ErrStaleSession.
	UpdateSession(ctx context.Context, session domain.GameSession, expectedVersion int64) (domain.GameSession, error)
}

// ParticipantRepository stores participant rows.
type ParticipantRepository interface {
	// CreateParticipant fails with domain.ErrNicknameTaken if the nickname is in use in the session.
	CreateParticipant(ctx context.Context, participant domain.Participant) error
	GetParticipant(ctx context.Context, participantID string) (domain.Participant, error)
	// ListParticipants returns the session's participants ordered by score desc, then join time.
	ListParticipants(ctx context.Context, sessionID string) ([]domain.Participant, error)
	CountParticipants(ctx context.Context, sessionID string) (int, error)
}

// QuestionRepository loads the ordered questions of a block.
type QuestionRepository interface {
	ListQuestions(ctx context.Context, blockID string) ([]domain.Question, error)
}

// QuestionRefresher is implemented by question caches that can drop a block so
// the next read goes to the backing store.
type QuestionRefresher interface {
	Invalidate(ctx context.Context, blockID string) error
}

// AnswerStore is the atomic half of the scoring procedure: the answer row and
// the participant's score increment are written together or not at all.
type AnswerStore interface {
	// RecordAnswer fails with domain.ErrAnswerExists on a second answer for the same question.
	RecordAnswer(ctx context.Context, answer domain.Answer) (totalScore int, err error)
	ListAnswers(ctx context.Context, participantID string) ([]domain.Answer, error)
}

// TeacherDirectory answers the one question asked of the auth service.
type TeacherDirectory interface {
	IsBlocked(ctx context.Context, teacherID string) (bool, error)
}

// Notifier is the change-notification feed.
// The caller must invoke the returned cancel function to avoid leaks.
type Notifier interface {
	Publish(ctx context.Context, event domain.ChangeEvent) error
	Subscribe(ctx context.Context, topic domain.Topic) (<-chan domain.ChangeEvent, func(), error)
}

// Repositories groups the row store views the service needs.
type Repositories struct {
	Sessions     SessionRepository
	Participants ParticipantRepository
	Questions    QuestionRepository
	Answers      AnswerStore
	Teachers     TeacherDirectory
}
