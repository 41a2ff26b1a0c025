package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"classroom-quiz-service/internal/domain"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const (
	uniqueViolation = "23505"

	activePinConstraint       = "game_sessions_active_pin_key"
	nicknameConstraint        = "participants_session_nickname_key"
	participantQuestionUnique = "answers_participant_question_key"
)

// Store is the Postgres row store behind app.GameService.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const sessionColumns = `id, teacher_id, pin_code, block_id, status, current_question_index,
	question_started_at, started_at, ended_at, created_at, version`

func (s *Store) CreateSession(ctx context.Context, session domain.GameSession) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO game_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		session.ID, session.TeacherID, session.PinCode, session.BlockID, string(session.Status),
		session.CurrentQuestionIndex, session.QuestionStartedAt, session.StartedAt, session.EndedAt,
		session.CreatedAt, session.Version,
	)
	if isUniqueViolation(err, activePinConstraint) {
		return domain.ErrPinInUse
	}
	if err != nil {
		return storeError("insert session", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (domain.GameSession, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM game_sessions WHERE id=$1`, sessionID)
	return scanSession(row)
}

func (s *Store) FindActiveByPin(ctx context.Context, pin string) (domain.GameSession, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM game_sessions
		WHERE pin_code=$1 AND status <> 'finished'`, pin)
	return scanSession(row)
}

func (s *Store) UpdateSession(ctx context.Context, session domain.GameSession, expectedVersion int64) (domain.GameSession, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE game_sessions SET
			status=$3, current_question_index=$4, question_started_at=$5,
			started_at=$6, ended_at=$7, version=version+1
		WHERE id=$1 AND version=$2
		RETURNING `+sessionColumns,
		session.ID, expectedVersion, string(session.Status), session.CurrentQuestionIndex,
		session.QuestionStartedAt, session.StartedAt, session.EndedAt,
	)
	stored, err := scanSession(row)
	if errors.Is(err, domain.ErrSessionNotFound) {
		// distinguish a lost race from a missing row
		if _, getErr := s.GetSession(ctx, session.ID); getErr != nil {
			return domain.GameSession{}, getErr
		}
		return domain.GameSession{}, domain.ErrStaleSession
	}
	return stored, err
}

func (s *Store) CreateParticipant(ctx context.Context, participant domain.Participant) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO participants (id, session_id, nickname, total_score, joined_at)
		VALUES ($1, $2, $3, $4, $5)`,
		participant.ID, participant.SessionID, participant.Nickname, participant.TotalScore, participant.JoinedAt,
	)
	if isUniqueViolation(err, nicknameConstraint) {
		return domain.ErrNicknameTaken
	}
	if err != nil {
		return storeError("insert participant", err)
	}
	return nil
}

func (s *Store) GetParticipant(ctx context.Context, participantID string) (domain.Participant, error) {
	var p domain.Participant
	err := s.pool.QueryRow(ctx, `
		SELECT id, session_id, nickname, total_score, joined_at
		FROM participants WHERE id=$1`, participantID,
	).Scan(&p.ID, &p.SessionID, &p.Nickname, &p.TotalScore, &p.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, storeError("load participant", err)
	}
	return p, nil
}

func (s *Store) ListParticipants(ctx context.Context, sessionID string) ([]domain.Participant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, nickname, total_score, joined_at
		FROM participants WHERE session_id=$1
		ORDER BY total_score DESC, joined_at ASC, nickname ASC`, sessionID)
	if err != nil {
		return nil, storeError("list participants", err)
	}
	defer rows.Close()

	out := make([]domain.Participant, 0)
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Nickname, &p.TotalScore, &p.JoinedAt); err != nil {
			return nil, storeError("scan participant", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list participants", err)
	}
	return out, nil
}

func (s *Store) CountParticipants(ctx context.Context, sessionID string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM participants WHERE session_id=$1`, sessionID).Scan(&n); err != nil {
		return 0, storeError("count participants", err)
	}
	return n, nil
}

// RecordAnswer inserts the answer and increments the participant's score in
// one transaction.
func (s *Store) RecordAnswer(ctx context.Context, answer domain.Answer) (int, error) {
	var total int
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO answers (id, participant_id, question_id, selected_option,
				response_time_ms, is_correct, points_earned, answered_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT ON CONSTRAINT `+participantQuestionUnique+` DO NOTHING`,
			answer.ID, answer.ParticipantID, answer.QuestionID, answer.SelectedOption,
			answer.ResponseTimeMs, answer.IsCorrect, answer.PointsEarned, answer.AnsweredAt,
		)
		if err != nil {
			return storeError("insert answer", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrAnswerExists
		}
		err = tx.QueryRow(ctx, `
			UPDATE participants SET total_score = total_score + $2
			WHERE id=$1 RETURNING total_score`,
			answer.ParticipantID, answer.PointsEarned,
		).Scan(&total)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrParticipantNotFound
		}
		if err != nil {
			return storeError("increment score", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAnswerExists) || errors.Is(err, domain.ErrParticipantNotFound) ||
			errors.Is(err, domain.ErrUnavailable) {
			return 0, err
		}
		return 0, storeError("record answer", err)
	}
	return total, nil
}

func (s *Store) ListAnswers(ctx context.Context, participantID string) ([]domain.Answer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, participant_id, question_id, selected_option, response_time_ms,
			is_correct, points_earned, answered_at
		FROM answers WHERE participant_id=$1
		ORDER BY answered_at`, participantID)
	if err != nil {
		return nil, storeError("list answers", err)
	}
	defer rows.Close()

	out := make([]domain.Answer, 0)
	for rows.Next() {
		var a domain.Answer
		if err := rows.Scan(&a.ID, &a.ParticipantID, &a.QuestionID, &a.SelectedOption, &a.ResponseTimeMs,
			&a.IsCorrect, &a.PointsEarned, &a.AnsweredAt); err != nil {
			return nil, storeError("scan answer", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list answers", err)
	}
	return out, nil
}

func (s *Store) IsBlocked(ctx context.Context, teacherID string) (bool, error) {
	var blocked bool
	err := s.pool.QueryRow(ctx, `SELECT is_blocked FROM profiles WHERE id=$1`, teacherID).Scan(&blocked)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storeError("load profile", err)
	}
	return blocked, nil
}

func scanSession(row pgx.Row) (domain.GameSession, error) {
	var (
		session domain.GameSession
		status  string
	)
	err := row.Scan(
		&session.ID, &session.TeacherID, &session.PinCode, &session.BlockID, &status,
		&session.CurrentQuestionIndex, &session.QuestionStartedAt, &session.StartedAt,
		&session.EndedAt, &session.CreatedAt, &session.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.GameSession{}, storeError("scan session", err)
	}
	session.Status = domain.SessionStatus(status)
	return session, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}

// storeError annotates a driver error. Connection-level failures also wrap
// domain.ErrUnavailable so callers see them as retryable.
func storeError(op string, err error) error {
	if isConnectionError(err) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 08 is connection exception, 57P0x is server shutdown
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P0")
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
