package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/bridge4er/examhall/internal/config"
	"github.com/bridge4er/examhall/internal/model"
	"github.com/bridge4er/examhall/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Exam service errors mapped to HTTP statuses at the handler boundary.
var (
	ErrSetNotFound = errors.New("exam set not found")
	ErrSetInactive = errors.New("exam set is not active")
	ErrSetLocked   = errors.New("exam set is locked for this user")
	ErrNoQuestions = errors.New("exam set has no questions")
)

// ExamService assembles start-attempt payloads and maintains the Redis
// payload/answer-key cache. The cache object is constructed here and keyed
// through config.CacheKey; sets are immutable at runtime, so entries are
// written once on first load and never invalidated by this service.
type ExamService struct {
	setRepo    *repository.ExamSetRepository
	unlockRepo *repository.UnlockRepository
	rdb        *redis.Client
	log        zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	setRepo *repository.ExamSetRepository,
	unlockRepo *repository.UnlockRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		setRepo:    setRepo,
		unlockRepo: unlockRepo,
		rdb:        rdb,
		log:        log.With().Str("component", "exam_service").Logger(),
	}
}

// StartSet returns the student payload for an exam set after verifying the
// set exists, is active, and is unlocked for the user.
func (s *ExamService) StartSet(ctx context.Context, userID, setID int64) (*model.SetPayload, error) {
	set, err := s.setRepo.GetByID(ctx, setID)
	if err != nil {
		return nil, ErrSetNotFound
	}
	if !set.IsActive {
		return nil, ErrSetInactive
	}

	if err := s.EnsureUnlocked(ctx, userID, set); err != nil {
		return nil, err
	}

	payload, _, err := s.loadSet(ctx, set)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// EnsureUnlocked verifies the user may access a paid set. Free sets are
// always accessible.
func (s *ExamService) EnsureUnlocked(ctx context.Context, userID int64, set *model.ExamSet) error {
	if set.IsFree {
		return nil
	}
	unlocked, err := s.unlockRepo.IsUnlocked(ctx, userID, set.ID)
	if err != nil {
		return fmt.Errorf("check unlock: %w", err)
	}
	if !unlocked {
		return ErrSetLocked
	}
	return nil
}

// AnswerKeyFor returns the cached answer key for a set, loading it from
// PostgreSQL on a cache miss.
func (s *ExamService) AnswerKeyFor(ctx context.Context, set *model.ExamSet) (model.AnswerKey, []model.Question, error) {
	payload, key, err := s.loadSet(ctx, set)
	if err != nil {
		return nil, nil, err
	}
	return key, payload.Questions, nil
}

// GetSet fetches the raw exam set row.
func (s *ExamService) GetSet(ctx context.Context, setID int64) (*model.ExamSet, error) {
	set, err := s.setRepo.GetByID(ctx, setID)
	if err != nil {
		return nil, ErrSetNotFound
	}
	return set, nil
}

// loadSet returns the student payload and answer key for a set, serving from
// Redis when possible and self-healing the cache from PostgreSQL on a miss.
func (s *ExamService) loadSet(ctx context.Context, set *model.ExamSet) (*model.SetPayload, model.AnswerKey, error) {
	payloadKey := config.CacheKey.SetPayloadKey(set.ID)
	answerKey := config.CacheKey.SetAnswerKey(set.ID)

	cached, err := s.rdb.Get(ctx, payloadKey).Result()
	if err == nil {
		var payload model.SetPayload
		if unmarshalErr := json.Unmarshal([]byte(cached), &payload); unmarshalErr == nil {
			key, keyErr := s.rdb.HGetAll(ctx, answerKey).Result()
			if keyErr == nil && len(key) > 0 {
				return &payload, model.AnswerKey(key), nil
			}
		}
		// Corrupt or partial cache entry, fall through to the DB path.
		s.log.Warn().Int64("set_id", set.ID).Msg("Unusable cache entry, reloading from DB")
	} else if !errors.Is(err, redis.Nil) {
		return nil, nil, fmt.Errorf("redis get payload: %w", err)
	}

	questions, err := s.setRepo.ListQuestions(ctx, set.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, nil, ErrNoQuestions
	}

	key := make(model.AnswerKey, len(questions))
	student := make([]model.Question, len(questions))
	for i, q := range questions {
		key[strconv.FormatInt(q.ID, 10)] = q.CorrectOption
		sq := q
		sq.CorrectOption = ""
		sq.Explanation = ""
		student[i] = sq
	}

	payload := &model.SetPayload{
		ID:              set.ID,
		Name:            set.Name,
		Branch:          set.Branch,
		Instructions:    set.Instructions,
		DurationSeconds: set.DurationSeconds,
		GraceSeconds:    set.GraceSeconds,
		NegativeMarking: set.NegativeMarking,
		Questions:       student,
	}

	s.warmCache(ctx, payloadKey, answerKey, payload, key)
	return payload, key, nil
}

// warmCache best-effort writes payload and answer key to Redis. Failures are
// logged, not returned; the DB remains the source of truth.
func (s *ExamService) warmCache(ctx context.Context, payloadKey, answerKey string, payload *model.SetPayload, key model.AnswerKey) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Msg("Marshal payload for cache")
		return
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, payloadKey, raw, 0)
	fields := make(map[string]interface{}, len(key))
	for qid, opt := range key {
		fields[qid] = opt
	}
	pipe.HSet(ctx, answerKey, fields)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("key", payloadKey).Msg("Cache warm failed")
	}
}
