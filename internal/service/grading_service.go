package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bridge4er/examhall/internal/config"
	"github.com/bridge4er/examhall/internal/model"
	"github.com/bridge4er/examhall/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrAlreadySubmitted is returned when a user submits the same set twice.
var ErrAlreadySubmitted = errors.New("exam set already submitted")

// AttemptPayload is the queue item handed to the persistence worker.
type AttemptPayload struct {
	UserID         int64             `json:"user_id"`
	SetID          int64             `json:"set_id"`
	Score          float64           `json:"score"`
	TotalQuestions int               `json:"total_questions"`
	CorrectAnswers int               `json:"correct_answers"`
	WrongAnswers   int               `json:"wrong_answers"`
	Unanswered     int               `json:"unanswered"`
	Answers        map[string]string `json:"answers"`
	SubmittedAt    time.Time         `json:"submitted_at"`
}

// GradingService grades submissions against the cached answer key, queues
// the attempt for persistence, and maintains the leaderboard. Scoring is
// binary per question: +marks when correct, minus the set's fixed negative
// marking weight when wrong, neutral when unanswered.
type GradingService struct {
	examService *ExamService
	attemptRepo *repository.AttemptRepository
	rdb         *redis.Client
	cfg         *config.Config
	log         zerolog.Logger
}

// NewGradingService creates a new GradingService.
func NewGradingService(
	examService *ExamService,
	attemptRepo *repository.AttemptRepository,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *GradingService {
	return &GradingService{
		examService: examService,
		attemptRepo: attemptRepo,
		rdb:         rdb,
		cfg:         cfg,
		log:         log.With().Str("component", "grading_service").Logger(),
	}
}

// Submit grades a user's answers for an exam set and returns the
// authoritative result with review rows and a leaderboard snapshot.
func (s *GradingService) Submit(ctx context.Context, userID int64, studentName string, setID int64, answers map[string]string) (*model.SubmissionResult, error) {
	set, err := s.examService.GetSet(ctx, setID)
	if err != nil {
		return nil, err
	}
	if !set.IsActive {
		return nil, ErrSetInactive
	}
	if err := s.examService.EnsureUnlocked(ctx, userID, set); err != nil {
		return nil, err
	}

	if err := s.guardDuplicate(ctx, userID, setID); err != nil {
		return nil, err
	}

	key, questions, err := s.examService.AnswerKeyFor(ctx, set)
	if err != nil {
		return nil, err
	}

	submittedAt := time.Now().UTC()
	result := s.grade(set, questions, key, answers, submittedAt)

	s.enqueueAttempt(ctx, userID, setID, result, answers, submittedAt)
	s.recordScore(ctx, setID, userID, studentName, result.Score)

	board, err := s.Leaderboard(ctx, setID)
	if err != nil {
		// The submission is already graded; a leaderboard read failure
		// should not fail the whole request.
		s.log.Warn().Err(err).Int64("set_id", setID).Msg("Leaderboard read failed")
	}
	result.Leaderboard = board

	return result, nil
}

// Leaderboard returns the top scores for a set, best first.
func (s *GradingService) Leaderboard(ctx context.Context, setID int64) ([]model.LeaderboardEntry, error) {
	rows, err := s.rdb.ZRevRangeWithScores(ctx,
		config.CacheKey.SetLeaderboardKey(setID),
		0, int64(s.cfg.LeaderboardSize-1),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard range: %w", err)
	}

	entries := make([]model.LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		member, _ := row.Member.(string)
		name := member
		if _, after, found := strings.Cut(member, ":"); found {
			name = after
		}
		entries = append(entries, model.LeaderboardEntry{
			Rank:        i + 1,
			StudentName: name,
			Score:       row.Score,
		})
	}
	return entries, nil
}

// guardDuplicate rejects a second submission for the same (user, set).
// Redis holds the fast-path marker; PostgreSQL remains the source of truth
// for markers lost to eviction.
func (s *GradingService) guardDuplicate(ctx context.Context, userID, setID int64) error {
	exists, err := s.attemptRepo.Exists(ctx, userID, setID)
	if err != nil {
		return fmt.Errorf("check existing attempt: %w", err)
	}
	if exists {
		// Self-heal the marker so the next duplicate is caught without a
		// DB round trip.
		_ = s.rdb.Set(ctx, config.CacheKey.UserAttemptKey(setID, userID), "1", 0)
		return ErrAlreadySubmitted
	}

	ok, err := s.rdb.SetNX(ctx, config.CacheKey.UserAttemptKey(setID, userID), "1", 0).Result()
	if err != nil {
		return fmt.Errorf("attempt marker: %w", err)
	}
	if !ok {
		return ErrAlreadySubmitted
	}
	return nil
}

func (s *GradingService) grade(set *model.ExamSet, questions []model.Question, key model.AnswerKey, answers map[string]string, submittedAt time.Time) *model.SubmissionResult {
	result := &model.SubmissionResult{
		ExamSetID:      set.ID,
		TotalQuestions: len(questions),
		SubmittedAt:    submittedAt,
		Review:         make([]model.ReviewItem, 0, len(questions)),
	}

	for _, q := range questions {
		qid := strconv.FormatInt(q.ID, 10)
		correct := strings.ToLower(key[qid])
		selected := strings.ToLower(strings.TrimSpace(answers[qid]))

		item := model.ReviewItem{
			QuestionID:     q.ID,
			QuestionHeader: q.QuestionHeader,
			QuestionText:   q.QuestionText,
			CorrectOption:  correct,
			Explanation:    q.Explanation,
		}

		if _, valid := q.Options[selected]; selected == "" || !valid {
			result.Unanswered++
			result.Review = append(result.Review, item)
			continue
		}

		item.SelectedOption = selected
		if selected == correct {
			result.CorrectAnswers++
			result.Score += questionMarks(q)
			item.IsCorrect = true
		} else {
			result.WrongAnswers++
			result.Score -= set.NegativeMarking
		}
		result.Review = append(result.Review, item)
	}

	return result
}

// questionMarks normalizes a question's weight: non-positive or missing
// marks count as 1.
func questionMarks(q model.Question) float64 {
	if q.Marks > 0 {
		return q.Marks
	}
	return 1
}

// enqueueAttempt hands the graded attempt to the persistence worker. A queue
// failure is logged and retried inline once; losing an attempt row is worse
// than a slow response.
func (s *GradingService) enqueueAttempt(ctx context.Context, userID, setID int64, result *model.SubmissionResult, answers map[string]string, submittedAt time.Time) {
	payload := AttemptPayload{
		UserID:         userID,
		SetID:          setID,
		Score:          result.Score,
		TotalQuestions: result.TotalQuestions,
		CorrectAnswers: result.CorrectAnswers,
		WrongAnswers:   result.WrongAnswers,
		Unanswered:     result.Unanswered,
		Answers:        answers,
		SubmittedAt:    submittedAt,
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Msg("Marshal attempt payload")
		return
	}

	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, raw).Err(); err != nil {
		s.log.Error().Err(err).Msg("Enqueue attempt failed, retrying once")
		if err := s.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, raw).Err(); err != nil {
			s.log.Error().Err(err).
				Int64("user_id", userID).
				Int64("set_id", setID).
				Msg("Attempt enqueue lost")
		}
	}
}

// recordScore updates the leaderboard ZSET and notifies live subscribers.
func (s *GradingService) recordScore(ctx context.Context, setID, userID int64, studentName string, score float64) {
	member := fmt.Sprintf("%d:%s", userID, studentName)
	if err := s.rdb.ZAdd(ctx, config.CacheKey.SetLeaderboardKey(setID), redis.Z{
		Score:  score,
		Member: member,
	}).Err(); err != nil {
		s.log.Warn().Err(err).Int64("set_id", setID).Msg("Leaderboard update failed")
		return
	}

	if err := s.rdb.Publish(ctx, config.CacheKey.SetLeaderboardChannel(setID), "updated").Err(); err != nil {
		s.log.Debug().Err(err).Int64("set_id", setID).Msg("Leaderboard publish failed")
	}
}
