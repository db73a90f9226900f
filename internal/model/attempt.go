package model

import "time"

// Attempt is one graded run-through of an exam set by one identity.
// At most one attempt exists per (user, set).
type Attempt struct {
	ID             int64             `json:"id"`
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

// SubmitRequest is the submit-attempt payload. Unanswered questions are
// simply absent from the map; the server treats missing as unanswered.
type SubmitRequest struct {
	Answers map[string]string `json:"answers" binding:"required"`
}

// ReviewItem is one per-question row of the authoritative grading response.
type ReviewItem struct {
	QuestionID     int64  `json:"question_id"`
	QuestionHeader string `json:"question_header,omitempty"`
	QuestionText   string `json:"question_text"`
	SelectedOption string `json:"selected_option,omitempty"`
	CorrectOption  string `json:"correct_option"`
	IsCorrect      bool   `json:"is_correct"`
	Explanation    string `json:"explanation,omitempty"`
}

// LeaderboardEntry is one row of the leaderboard snapshot taken at
// submission time.
type LeaderboardEntry struct {
	Rank        int     `json:"rank"`
	StudentName string  `json:"student_name"`
	Score       float64 `json:"score"`
}

// SubmissionResult is the server-authoritative grading response.
type SubmissionResult struct {
	ExamSetID      int64              `json:"exam_set_id"`
	Score          float64            `json:"score"`
	TotalQuestions int                `json:"total_questions"`
	CorrectAnswers int                `json:"correct_answers"`
	WrongAnswers   int                `json:"wrong_answers"`
	Unanswered     int                `json:"unanswered"`
	SubmittedAt    time.Time          `json:"submitted_at"`
	Review         []ReviewItem       `json:"review"`
	Leaderboard    []LeaderboardEntry `json:"leaderboard"`
}
