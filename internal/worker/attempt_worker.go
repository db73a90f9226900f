package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bridge4er/examhall/internal/config"
	"github.com/bridge4er/examhall/internal/model"
	"github.com/bridge4er/examhall/internal/repository"
	"github.com/bridge4er/examhall/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	AttemptBatchSize    = 50
	AttemptBatchTimeout = 2 * time.Second
	AttemptPollTimeout  = 1 * time.Second
)

// AttemptWorker consumes persist_attempts_queue and writes graded attempts
// to PostgreSQL in batches, so submit responses never wait on the database.
type AttemptWorker struct {
	pool     *pgxpool.Pool
	attempts *repository.AttemptRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewAttemptWorker creates a new AttemptWorker. The pool serves the
// batched UNNEST path; single-row fallbacks go through the repository.
func NewAttemptWorker(pool *pgxpool.Pool, attempts *repository.AttemptRepository, rdb *redis.Client, log zerolog.Logger) *AttemptWorker {
	return &AttemptWorker{
		pool:     pool,
		attempts: attempts,
		rdb:      rdb,
		log:      log.With().Str("component", "attempt_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine; cancel ctx to stop.
func (w *AttemptWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AttemptWorker started")

	batch := make([]*service.AttemptPayload, 0, AttemptBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= AttemptBatchSize || time.Since(lastFlush) >= AttemptBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			w.drain(context.Background())
			return

		default:
			item, err := w.rdb.BLPop(ctx, AttemptPollTimeout, config.WorkerKey.PersistAttemptsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}
			if len(item) < 2 {
				continue
			}

			var p service.AttemptPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}
			batch = append(batch, &p)
		}
	}
}

func (w *AttemptWorker) flushSafe(ctx context.Context, batch []*service.AttemptPayload) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk attempt insert failed, using fallback")

		for _, p := range batch {
			if err := w.persistSingle(ctx, p); err != nil {
				w.log.Error().Err(err).
					Int64("user_id", p.UserID).
					Int64("set_id", p.SetID).
					Msg("persistSingle failed, requeueing")
				raw, _ := json.Marshal(p)
				w.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, raw)
			}
		}
	}
}

// bulkInsert writes a batch in one statement using UNNEST. The unique
// (user_id, set_id) constraint turns replayed queue items into no-ops.
func (w *AttemptWorker) bulkInsert(ctx context.Context, batch []*service.AttemptPayload) error {
	n := len(batch)

	userIDs := make([]int64, 0, n)
	setIDs := make([]int64, 0, n)
	scores := make([]float64, 0, n)
	totals := make([]int, 0, n)
	corrects := make([]int, 0, n)
	wrongs := make([]int, 0, n)
	unanswereds := make([]int, 0, n)
	answers := make([][]byte, 0, n)
	submittedAts := make([]time.Time, 0, n)

	for _, p := range batch {
		raw, err := json.Marshal(p.Answers)
		if err != nil {
			return err
		}
		userIDs = append(userIDs, p.UserID)
		setIDs = append(setIDs, p.SetID)
		scores = append(scores, p.Score)
		totals = append(totals, p.TotalQuestions)
		corrects = append(corrects, p.CorrectAnswers)
		wrongs = append(wrongs, p.WrongAnswers)
		unanswereds = append(unanswereds, p.Unanswered)
		answers = append(answers, raw)
		submittedAts = append(submittedAts, p.SubmittedAt)
	}

	query := `
		INSERT INTO attempts
			(user_id, set_id, score, total_questions, correct_answers,
			 wrong_answers, unanswered, answers, submitted_at)
		SELECT * FROM UNNEST(
			$1::bigint[],
			$2::bigint[],
			$3::float8[],
			$4::int[],
			$5::int[],
			$6::int[],
			$7::int[],
			$8::jsonb[],
			$9::timestamptz[]
		)
		ON CONFLICT (user_id, set_id) DO NOTHING
	`

	_, err := w.pool.Exec(ctx, query,
		userIDs, setIDs, scores, totals, corrects, wrongs, unanswereds, answers, submittedAts)
	return err
}

func (w *AttemptWorker) persistSingle(ctx context.Context, p *service.AttemptPayload) error {
	return w.attempts.Insert(ctx, &model.Attempt{
		UserID:         p.UserID,
		SetID:          p.SetID,
		Score:          p.Score,
		TotalQuestions: p.TotalQuestions,
		CorrectAnswers: p.CorrectAnswers,
		WrongAnswers:   p.WrongAnswers,
		Unanswered:     p.Unanswered,
		Answers:        p.Answers,
		SubmittedAt:    p.SubmittedAt,
	})
}

// drain processes all remaining queue items before shutdown.
func (w *AttemptWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAttemptsQueue).Result()
		if err != nil {
			break
		}

		var p service.AttemptPayload
		if err := json.Unmarshal([]byte(result), &p); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.persistSingle(ctx, &p); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
