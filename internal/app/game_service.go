package app

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"classroom-quiz-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const maxNicknameLength = 32

// Transition is the outcome of a host command. Applied is false when the
// command was a duplicate or otherwise not valid from the current status; the
// session is then returned unchanged.
type Transition struct {
	Session domain.GameSession `json:"session"`
	Applied bool               `json:"applied"`
}

// GameService implements the host controller and the participant operations
// on top of the row store and the change feed.
type GameService struct {
	sessions     SessionRepository
	participants ParticipantRepository
	questions    QuestionRepository
	answers      AnswerStore
	teachers     TeacherDirectory
	notifier     Notifier

	clock       clockwork.Clock
	scorer      Scorer
	newPin      func() (string, error)
	pinAttempts int
}

// Option customizes a GameService.
type Option func(*GameService)

// WithClock is used by tests to control timestamps and countdowns.
func WithClock(clock clockwork.Clock) Option {
	return func(s *GameService) { s.clock = clock }
}

// WithScorer replaces the default points policy.
func WithScorer(scorer Scorer) Option {
	return func(s *GameService) { s.scorer = scorer }
}

// WithPinGenerator replaces the random 6-digit PIN source.
func WithPinGenerator(gen func() (string, error)) Option {
	return func(s *GameService) { s.newPin = gen }
}

// WithPinAttempts bounds how many PINs are tried before giving up.
func WithPinAttempts(n int) Option {
	return func(s *GameService) {
		if n > 0 {
			s.pinAttempts = n
		}
	}
}

func NewGameService(repos Repositories, notifier Notifier, opts ...Option) *GameService {
	s := &GameService{
		sessions:     repos.Sessions,
		participants: repos.Participants,
		questions:    repos.Questions,
		answers:      repos.Answers,
		teachers:     repos.Teachers,
		notifier:     notifier,
		clock:        clockwork.NewRealClock(),
		scorer:       NewDecayScorer(),
		newPin:       randomPin,
		pinAttempts:  10,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession opens a waiting session over a block under a fresh PIN.
func (s *GameService) CreateSession(ctx context.Context, teacherID, blockID string) (domain.GameSession, error) {
	if err := s.checkTeacher(ctx, teacherID); err != nil {
		return domain.GameSession{}, err
	}
	// a new game plays the block as it is now, not as it was cached
	if refresher, ok := s.questions.(QuestionRefresher); ok {
		if err := refresher.Invalidate(ctx, blockID); err != nil {
			log.Warn().Err(err).Str("block_id", blockID).Msg("invalidate question cache")
		}
	}
	if _, err := s.questions.ListQuestions(ctx, blockID); err != nil {
		return domain.GameSession{}, err
	}

	for attempt := 0; attempt < s.pinAttempts; attempt++ {
		pin, err := s.newPin()
		if err != nil {
			return domain.GameSession{}, fmt.Errorf("generate pin: %w", err)
		}
		session := domain.GameSession{
			ID:        uuid.NewString(),
			TeacherID: teacherID,
			PinCode:   pin,
			BlockID:   blockID,
			Status:    domain.StatusWaiting,
			CreatedAt: s.clock.Now(),
			Version:   1,
		}
		err = s.sessions.CreateSession(ctx, session)
		if errors.Is(err, domain.ErrPinInUse) {
			log.Debug().Str("pin", pin).Int("attempt", attempt).Msg("pin collision, retrying")
			continue
		}
		if err != nil {
			return domain.GameSession{}, err
		}
		log.Info().
			Str("session_id", session.ID).
			Str("teacher_id", teacherID).
			Str("block_id", blockID).
			Msg("game session created")
		s.publish(ctx, domain.TableSessions, domain.ChangeInsert, session.ID, nil, session)
		return session, nil
	}
	return domain.GameSession{}, domain.ErrPinExhausted
}

// GetSession returns the session to its host.
func (s *GameService) GetSession(ctx context.Context, teacherID, sessionID string) (domain.GameSession, error) {
	return s.hostSession(ctx, teacherID, sessionID)
}

// StartGame moves a waiting session to its first question.
func (s *GameService) StartGame(ctx context.Context, teacherID, sessionID string) (Transition, error) {
	session, err := s.hostSession(ctx, teacherID, sessionID)
	if err != nil {
		return Transition{}, err
	}
	questions, err := s.questions.ListQuestions(ctx, session.BlockID)
	if err != nil {
		return Transition{}, err
	}
	joined, err := s.participants.CountParticipants(ctx, session.ID)
	if err != nil {
		return Transition{}, err
	}
	next, err := startSession(session, len(questions), joined, s.clock.Now())
	return s.commit(ctx, "start", session, next, err)
}

// AdvanceQuestion exposes the next question, or finishes after the last one.
// While the current question still has time left the call is refused with a
// *domain.TimeRemainingError unless override is set.
func (s *GameService) AdvanceQuestion(ctx context.Context, teacherID, sessionID string, override bool) (Transition, error) {
	session, err := s.hostSession(ctx, teacherID, sessionID)
	if err != nil {
		return Transition{}, err
	}
	questions, err := s.questions.ListQuestions(ctx, session.BlockID)
	if err != nil {
		return Transition{}, err
	}
	if !override && session.Status == domain.StatusPlaying {
		current := questionAt(questions, session.CurrentQuestionIndex)
		if remaining := domain.SessionRemaining(session, current, s.clock.Now()); remaining > 0 {
			return Transition{Session: session}, &domain.TimeRemainingError{Remaining: remaining}
		}
	}
	next, err := advanceSession(session, len(questions), s.clock.Now())
	return s.commit(ctx, "advance", session, next, err)
}

// EndGame finishes the session from waiting or playing.
func (s *GameService) EndGame(ctx context.Context, teacherID, sessionID string) (Transition, error) {
	session, err := s.hostSession(ctx, teacherID, sessionID)
	if err != nil {
		return Transition{}, err
	}
	next, err := finishSession(session, s.clock.Now())
	return s.commit(ctx, "end", session, next, err)
}

// JoinGame registers a nickname in the waiting session holding pin.
func (s *GameService) JoinGame(ctx context.Context, pin, nickname string) (domain.Participant, domain.GameSession, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" || utf8.RuneCountInString(nickname) > maxNicknameLength {
		return domain.Participant{}, domain.GameSession{}, domain.ErrInvalidNickname
	}

	session, err := s.sessions.FindActiveByPin(ctx, strings.TrimSpace(pin))
	if err != nil {
		return domain.Participant{}, domain.GameSession{}, err
	}
	if session.Status != domain.StatusWaiting {
		return domain.Participant{}, domain.GameSession{}, domain.ErrSessionNotFound
	}

	participant := domain.Participant{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Nickname:  nickname,
		JoinedAt:  s.clock.Now(),
	}
	if err := s.participants.CreateParticipant(ctx, participant); err != nil {
		return domain.Participant{}, domain.GameSession{}, err
	}

	log.Info().
		Str("session_id", session.ID).
		Str("participant_id", participant.ID).
		Str("nickname", nickname).
		Msg("participant joined")
	s.publish(ctx, domain.TableParticipants, domain.ChangeInsert, session.ID, nil, participant)
	return participant, session, nil
}

// SubmitAnswer scores one answer for the session's current question.
func (s *GameService) SubmitAnswer(ctx context.Context, participantID, questionID string, selectedOption int, responseTimeMs int64) (domain.AnswerResult, error) {
	participant, err := s.participants.GetParticipant(ctx, participantID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	session, err := s.sessions.GetSession(ctx, participant.SessionID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if session.Status != domain.StatusPlaying {
		return domain.AnswerResult{}, domain.ErrSessionNotPlaying
	}
	questions, err := s.questions.ListQuestions(ctx, session.BlockID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if questionByID(questions, questionID) == nil {
		return domain.AnswerResult{}, domain.ErrQuestionNotFound
	}
	current := questionAt(questions, session.CurrentQuestionIndex)
	if current == nil || current.ID != questionID {
		return domain.AnswerResult{}, domain.ErrQuestionNotCurrent
	}
	if domain.SessionRemaining(session, current, s.clock.Now()) == 0 {
		return domain.AnswerResult{}, domain.ErrAnswerWindowClosed
	}
	if selectedOption < 0 || selectedOption >= len(current.Options) {
		return domain.AnswerResult{}, domain.ErrInvalidOption
	}

	responseTimeMs = clampResponseTime(responseTimeMs, current.TimeSeconds)
	correct, points := s.scorer.Score(*current, selectedOption, responseTimeMs)
	answer := domain.Answer{
		ID:             uuid.NewString(),
		ParticipantID:  participant.ID,
		QuestionID:     current.ID,
		SelectedOption: selectedOption,
		ResponseTimeMs: responseTimeMs,
		IsCorrect:      correct,
		PointsEarned:   points,
		AnsweredAt:     s.clock.Now(),
	}
	total, err := s.answers.RecordAnswer(ctx, answer)
	if err != nil {
		return domain.AnswerResult{}, err
	}

	log.Info().
		Str("session_id", session.ID).
		Str("participant_id", participant.ID).
		Str("question_id", current.ID).
		Bool("correct", correct).
		Int("points", points).
		Msg("answer recorded")

	before := participant
	participant.TotalScore = total
	s.publish(ctx, domain.TableAnswers, domain.ChangeInsert, session.ID, nil, answer)
	s.publish(ctx, domain.TableParticipants, domain.ChangeUpdate, session.ID, before, participant)

	return domain.AnswerResult{
		QuestionID:   current.ID,
		IsCorrect:    correct,
		PointsEarned: points,
		TotalScore:   total,
	}, nil
}

// GetSessionSnapshot rebuilds a participant's full view from its id alone.
func (s *GameService) GetSessionSnapshot(ctx context.Context, participantID string) (domain.Snapshot, error) {
	participant, err := s.participants.GetParticipant(ctx, participantID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	session, err := s.sessions.GetSession(ctx, participant.SessionID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	questions, err := s.questions.ListQuestions(ctx, session.BlockID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	board, err := s.Leaderboard(ctx, session.ID)
	if err != nil {
		return domain.Snapshot{}, err
	}

	now := s.clock.Now()
	snap := domain.Snapshot{
		Participant:   participant,
		Session:       session,
		QuestionCount: len(questions),
		ObservedAt:    now,
	}
	for _, entry := range board {
		if entry.ParticipantID == participant.ID {
			snap.Rank = entry.Rank
			snap.Participant.TotalScore = entry.TotalScore
			break
		}
	}
	if session.Status == domain.StatusPlaying {
		if current := questionAt(questions, session.CurrentQuestionIndex); current != nil {
			view := current.Public()
			snap.CurrentQuestion = &view
			snap.RemainingSeconds = domain.SessionRemaining(session, current, now)
			snap.AcceptingAnswers = snap.RemainingSeconds > 0
		}
	}
	return snap, nil
}

// Results lists a participant's answers in question order with the correct
// options revealed. Only available once the session has finished.
func (s *GameService) Results(ctx context.Context, participantID string) (domain.Results, error) {
	participant, err := s.participants.GetParticipant(ctx, participantID)
	if err != nil {
		return domain.Results{}, err
	}
	session, err := s.sessions.GetSession(ctx, participant.SessionID)
	if err != nil {
		return domain.Results{}, err
	}
	if session.Status != domain.StatusFinished {
		return domain.Results{}, domain.ErrResultsNotReady
	}
	questions, err := s.questions.ListQuestions(ctx, session.BlockID)
	if err != nil {
		return domain.Results{}, err
	}
	answers, err := s.answers.ListAnswers(ctx, participant.ID)
	if err != nil {
		return domain.Results{}, err
	}
	board, err := s.Leaderboard(ctx, session.ID)
	if err != nil {
		return domain.Results{}, err
	}

	byQuestion := make(map[string]domain.Answer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}
	reviews := make([]domain.AnswerReview, 0, len(answers))
	for _, q := range questions {
		a, ok := byQuestion[q.ID]
		if !ok {
			continue
		}
		reviews = append(reviews, domain.AnswerReview{
			QuestionID:     q.ID,
			OrderIndex:     q.OrderIndex,
			Text:           q.Text,
			Options:        append([]string(nil), q.Options...),
			SelectedOption: a.SelectedOption,
			CorrectOption:  q.CorrectOption,
			IsCorrect:      a.IsCorrect,
			PointsEarned:   a.PointsEarned,
			ResponseTimeMs: a.ResponseTimeMs,
		})
	}

	results := domain.Results{
		Participant:   participant,
		QuestionCount: len(questions),
		Answers:       reviews,
		Leaderboard:   board,
	}
	for _, entry := range board {
		if entry.ParticipantID == participant.ID {
			results.Rank = entry.Rank
			results.Participant.TotalScore = entry.TotalScore
			break
		}
	}
	return results, nil
}

// LeaveGame ends a participant's connection to the game. The row is kept so
// the final standings stay intact.
func (s *GameService) LeaveGame(ctx context.Context, participantID string) error {
	participant, err := s.participants.GetParticipant(ctx, participantID)
	if err != nil {
		return err
	}
	log.Info().
		Str("session_id", participant.SessionID).
		Str("participant_id", participant.ID).
		Msg("participant left")
	return nil
}

// Leaderboard ranks a session's participants by score, then join time. Equal
// scores share a rank and the next rank skips (1, 1, 3).
func (s *GameService) Leaderboard(ctx context.Context, sessionID string) ([]domain.LeaderboardEntry, error) {
	participants, err := s.participants.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.LeaderboardEntry, 0, len(participants))
	for i, p := range participants {
		rank := i + 1
		if i > 0 && p.TotalScore == participants[i-1].TotalScore {
			rank = entries[i-1].Rank
		}
		entries = append(entries, domain.LeaderboardEntry{
			Rank:          rank,
			ParticipantID: p.ID,
			Nickname:      p.Nickname,
			TotalScore:    p.TotalScore,
		})
	}
	return entries, nil
}

// Subscribe exposes the change feed for one table of one session.
func (s *GameService) Subscribe(ctx context.Context, topic domain.Topic) (<-chan domain.ChangeEvent, func(), error) {
	return s.notifier.Subscribe(ctx, topic)
}

func (s *GameService) hostSession(ctx context.Context, teacherID, sessionID string) (domain.GameSession, error) {
	if err := s.checkTeacher(ctx, teacherID); err != nil {
		return domain.GameSession{}, err
	}
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return domain.GameSession{}, err
	}
	if session.TeacherID != teacherID {
		return domain.GameSession{}, domain.ErrNotHost
	}
	return session, nil
}

func (s *GameService) checkTeacher(ctx context.Context, teacherID string) error {
	if teacherID == "" {
		return domain.ErrNotHost
	}
	if s.teachers == nil {
		return nil
	}
	blocked, err := s.teachers.IsBlocked(ctx, teacherID)
	if err != nil {
		return err
	}
	if blocked {
		return domain.ErrTeacherBlocked
	}
	return nil
}

// commit persists a transition computed from prev. Invalid transitions are
// reported as no-ops so duplicate host actions stay harmless.
func (s *GameService) commit(ctx context.Context, action string, prev, next domain.GameSession, transitionErr error) (Transition, error) {
	if errors.Is(transitionErr, domain.ErrInvalidTransition) {
		log.Debug().
			Str("session_id", prev.ID).
			Str("action", action).
			Str("status", string(prev.Status)).
			Msg("ignoring host action")
		return Transition{Session: prev}, nil
	}
	if transitionErr != nil {
		return Transition{Session: prev}, transitionErr
	}

	stored, err := s.sessions.UpdateSession(ctx, next, prev.Version)
	if err != nil {
		return Transition{Session: prev}, err
	}
	log.Info().
		Str("session_id", stored.ID).
		Str("action", action).
		Str("status", string(stored.Status)).
		Int("question_index", stored.CurrentQuestionIndex).
		Int64("version", stored.Version).
		Msg("session transition")
	s.publish(ctx, domain.TableSessions, domain.ChangeUpdate, stored.ID, prev, stored)
	return Transition{Session: stored, Applied: true}, nil
}

// publish is best-effort: subscribers reconcile by polling when events are lost.
func (s *GameService) publish(ctx context.Context, table domain.Table, typ domain.ChangeType, sessionID string, before, after any) {
	if s.notifier == nil {
		return
	}
	event := domain.ChangeEvent{
		ID:        uuid.NewString(),
		Table:     table,
		Type:      typ,
		SessionID: sessionID,
		Before:    marshalRow(before),
		After:     marshalRow(after),
		At:        s.clock.Now(),
	}
	if err := s.notifier.Publish(ctx, event); err != nil {
		log.Warn().Err(err).
			Str("session_id", sessionID).
			Str("table", string(table)).
			Msg("publish change event")
	}
}

func marshalRow(row any) json.RawMessage {
	if row == nil {
		return nil
	}
	data, err := json.Marshal(row)
	if err != nil {
		return nil
	}
	return data
}

func questionAt(questions []domain.Question, index int) *domain.Question {
	if index < 0 || index >= len(questions) {
		return nil
	}
	return &questions[index]
}

func questionByID(questions []domain.Question, id string) *domain.Question {
	for i := range questions {
		if questions[i].ID == id {
			return &questions[i]
		}
	}
	return nil
}

func clampResponseTime(ms int64, timeSeconds int) int64 {
	if ms < 0 {
		return 0
	}
	if limit := int64(timeSeconds) * 1000; limit > 0 && ms > limit {
		return limit
	}
	return ms
}

// randomPin draws a 6-digit code in [100000, 999999].
func randomPin() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", 100000+n.Int64()), nil
}
