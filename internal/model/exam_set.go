package model

import (
	"time"
)

// ExamSet represents a named, fixed collection of MCQ questions with a
// duration and marking scheme, purchasable/unlockable per identity.
type ExamSet struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Branch          string    `json:"branch"`
	Instructions    string    `json:"instructions"`
	DurationSeconds int       `json:"duration_seconds"`
	GraceSeconds    int       `json:"grace_seconds"`
	NegativeMarking float64   `json:"negative_marking"`
	IsFree          bool      `json:"is_free"`
	Fee             float64   `json:"fee"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

// Question is a single MCQ belonging to an exam set. Options map a small
// fixed alphabet of keys ("a".."d") to option text; CorrectOption is never
// serialized into the student payload.
type Question struct {
	ID               int64             `json:"id"`
	SetID            int64             `json:"-"`
	OrderNum         int               `json:"order"`
	QuestionHeader   string            `json:"question_header,omitempty"`
	QuestionText     string            `json:"question_text"`
	QuestionImageURL string            `json:"question_image_url,omitempty"`
	Options          map[string]string `json:"options"`
	CorrectOption    string            `json:"-"`
	Explanation      string            `json:"-"`
	Marks            float64           `json:"marks"`
}

// SetPayload is the start-attempt response body sent to a student: the set
// metadata plus its questions with correct options stripped.
type SetPayload struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	Branch          string     `json:"branch"`
	Instructions    string     `json:"instructions"`
	DurationSeconds int        `json:"duration_seconds"`
	GraceSeconds    int        `json:"grace_seconds"`
	NegativeMarking float64    `json:"negative_marking"`
	Questions       []Question `json:"questions"`
}

// AnswerKey maps question id (as decimal string) to the correct option key.
// The string keying matches the Redis hash field type it is cached as.
type AnswerKey map[string]string
