package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UnlockRepository answers "is this exam set unlocked for this identity".
// Unlock rows are written by the payment pipeline, which lives outside this
// service; here they are read-only.
type UnlockRepository struct {
	pool *pgxpool.Pool
}

// NewUnlockRepository creates a new UnlockRepository.
func NewUnlockRepository(pool *pgxpool.Pool) *UnlockRepository {
	return &UnlockRepository{pool: pool}
}

// IsUnlocked reports whether the user holds an unlock for the exam set.
// Free sets never reach this check.
func (r *UnlockRepository) IsUnlocked(ctx context.Context, userID, setID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM set_unlocks WHERE user_id = $1 AND set_id = $2
		 )`, userID, setID,
	).Scan(&exists)
	return exists, err
}
