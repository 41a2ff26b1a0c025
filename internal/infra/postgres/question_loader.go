package postgres

import (
	"context"

	"classroom-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionLoader loads a block's questions from Postgres.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context, blockID string) ([]domain.Question, error) {
	var exists bool
	if err := l.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM blocks WHERE id=$1)`, blockID).Scan(&exists); err != nil {
		return nil, storeError("load block", err)
	}
	if !exists {
		return nil, domain.ErrBlockNotFound
	}

	rows, err := l.pool.Query(ctx, `
		SELECT id, block_id, order_index, text, options, correct_option, time_seconds, max_points
		FROM questions WHERE block_id=$1 ORDER BY order_index`, blockID)
	if err != nil {
		return nil, storeError("load questions", err)
	}
	defer rows.Close()

	questions := make([]domain.Question, 0)
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.BlockID, &q.OrderIndex, &q.Text, &q.Options,
			&q.CorrectOption, &q.TimeSeconds, &q.MaxPoints); err != nil {
			return nil, storeError("scan question", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("load questions", err)
	}
	return questions, nil
}
