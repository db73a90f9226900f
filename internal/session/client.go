package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ExamClient is the transport the session depends on. The production
// implementation lives in internal/examclient; tests supply fakes.
type ExamClient interface {
	// StartSet fetches the exam payload for one attempt. Returns
	// ErrSetNotFound, ErrSetLocked, or a transport error.
	StartSet(ctx context.Context, setID int64) (*Exam, error)
	// SubmitSet sends the answer map (decimal question id -> option key)
	// and returns the authoritative result. A *RejectedError means the
	// server refused the attempt outright and it must not be retried.
	SubmitSet(ctx context.Context, setID int64, answers map[string]string) (*Result, error)
}

var (
	ErrSetNotFound = errors.New("exam set not found")
	ErrSetLocked   = errors.New("exam set is locked for this account")
)

// RejectedError is a definitive server-side refusal of a submission,
// such as a duplicate attempt. Unlike transport failures it is not
// recoverable within the same session.
type RejectedError struct {
	Status  int
	Code    string
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("submission rejected (%d %s): %s", e.Status, e.Code, e.Message)
}

// Exam is the immutable payload one attempt runs against.
type Exam struct {
	ID              int64
	Name            string
	Branch          string
	Instructions    string
	DurationSeconds int
	GraceSeconds    int
	NegativeMarking float64
	Questions       []Question
}

// Result is the server-authoritative outcome of a submitted attempt.
type Result struct {
	Score          float64
	TotalQuestions int
	CorrectAnswers int
	WrongAnswers   int
	Unanswered     int
	SubmittedAt    time.Time
	Review         []ReviewItem
	Leaderboard    []LeaderboardRow
}

type ReviewItem struct {
	QuestionID     int64
	QuestionText   string
	SelectedOption string
	CorrectOption  string
	IsCorrect      bool
	Explanation    string
}

type LeaderboardRow struct {
	Rank        int
	StudentName string
	Score       float64
}
