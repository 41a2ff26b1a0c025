package memory

import (
	"context"
	"sort"
	"sync"

	"classroom-quiz-service/internal/domain"
)

// Store is an in-memory row store implementing the session, participant,
// answer and teacher views used by app.GameService. One mutex covers all
// tables so RecordAnswer is atomic.
type Store struct {
	mu           sync.RWMutex
	sessions     map[string]domain.GameSession
	participants map[string]domain.Participant
	answers      map[answerKey]domain.Answer
	blocked      map[string]bool
}

type answerKey struct {
	participantID string
	questionID    string
}

func NewStore() *Store {
	return &Store{
		sessions:     make(map[string]domain.GameSession),
		participants: make(map[string]domain.Participant),
		answers:      make(map[answerKey]domain.Answer),
		blocked:      make(map[string]bool),
	}
}

func (s *Store) CreateSession(_ context.Context, session domain.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sessions {
		if existing.PinCode == session.PinCode && existing.Status.Active() {
			return domain.ErrPinInUse
		}
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *Store) GetSession(_ context.Context, sessionID string) (domain.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *Store) FindActiveByPin(_ context.Context, pin string) (domain.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, session := range s.sessions {
		if session.PinCode == pin && session.Status.Active() {
			return session, nil
		}
	}
	return domain.GameSession{}, domain.ErrSessionNotFound
}

func (s *Store) UpdateSession(_ context.Context, session domain.GameSession, expectedVersion int64) (domain.GameSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[session.ID]
	if !ok {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	if current.Version != expectedVersion {
		return domain.GameSession{}, domain.ErrStaleSession
	}
	session.Version = expectedVersion + 1
	s.sessions[session.ID] = session
	return session, nil
}

func (s *Store) CreateParticipant(_ context.Context, participant domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[participant.SessionID]; !ok {
		return domain.ErrSessionNotFound
	}
	for _, existing := range s.participants {
		if existing.SessionID == participant.SessionID && existing.Nickname == participant.Nickname {
			return domain.ErrNicknameTaken
		}
	}
	s.participants[participant.ID] = participant
	return nil
}

func (s *Store) GetParticipant(_ context.Context, participantID string) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	participant, ok := s.participants[participantID]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return participant, nil
}

func (s *Store) ListParticipants(_ context.Context, sessionID string) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Participant, 0)
	for _, p := range s.participants {
		if p.SessionID == sessionID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalScore != out[j].TotalScore {
			return out[i].TotalScore > out[j].TotalScore
		}
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].Nickname < out[j].Nickname
	})
	return out, nil
}

func (s *Store) CountParticipants(_ context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.participants {
		if p.SessionID == sessionID {
			n++
		}
	}
	return n, nil
}

func (s *Store) RecordAnswer(_ context.Context, answer domain.Answer) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	participant, ok := s.participants[answer.ParticipantID]
	if !ok {
		return 0, domain.ErrParticipantNotFound
	}
	key := answerKey{participantID: answer.ParticipantID, questionID: answer.QuestionID}
	if _, exists := s.answers[key]; exists {
		return 0, domain.ErrAnswerExists
	}
	s.answers[key] = answer
	participant.TotalScore += answer.PointsEarned
	s.participants[participant.ID] = participant
	return participant.TotalScore, nil
}

func (s *Store) ListAnswers(_ context.Context, participantID string) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Answer, 0)
	for key, answer := range s.answers {
		if key.participantID == participantID {
			out = append(out, answer)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AnsweredAt.Before(out[j].AnsweredAt) })
	return out, nil
}

func (s *Store) SetBlocked(teacherID string, blocked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked[teacherID] = blocked
}

func (s *Store) IsBlocked(_ context.Context, teacherID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blocked[teacherID], nil
}
