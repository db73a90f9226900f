package repository

import (
	"context"
	"encoding/json"

	"github.com/bridge4er/examhall/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AttemptRepository handles graded attempt persistence.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Exists reports whether the user already submitted the exam set.
func (r *AttemptRepository) Exists(ctx context.Context, userID, setID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM attempts WHERE user_id = $1 AND set_id = $2
		 )`, userID, setID,
	).Scan(&exists)
	return exists, err
}

// Insert persists a graded attempt. The unique (user_id, set_id)
// constraint makes a replayed queue item a no-op rather than an error;
// the duplicate guard for user-facing submissions lives upstream.
func (r *AttemptRepository) Insert(ctx context.Context, a *model.Attempt) error {
	answersRaw, err := json.Marshal(a.Answers)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO attempts
		   (user_id, set_id, score, total_questions, correct_answers,
		    wrong_answers, unanswered, answers, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (user_id, set_id) DO NOTHING`,
		a.UserID, a.SetID, a.Score, a.TotalQuestions, a.CorrectAnswers,
		a.WrongAnswers, a.Unanswered, answersRaw, a.SubmittedAt,
	)
	return err
}
