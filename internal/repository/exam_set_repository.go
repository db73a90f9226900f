package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bridge4er/examhall/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExamSetRepository handles exam set and question data access.
type ExamSetRepository struct {
	pool *pgxpool.Pool
}

// NewExamSetRepository creates a new ExamSetRepository.
func NewExamSetRepository(pool *pgxpool.Pool) *ExamSetRepository {
	return &ExamSetRepository{pool: pool}
}

// GetByID retrieves an active exam set by id.
func (r *ExamSetRepository) GetByID(ctx context.Context, setID int64) (*model.ExamSet, error) {
	s := &model.ExamSet{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, branch, instructions, duration_seconds, grace_seconds,
		        negative_marking, is_free, fee, is_active, created_at
		 FROM exam_sets
		 WHERE id = $1`, setID,
	).Scan(&s.ID, &s.Name, &s.Branch, &s.Instructions, &s.DurationSeconds,
		&s.GraceSeconds, &s.NegativeMarking, &s.IsFree, &s.Fee, &s.IsActive, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListQuestions retrieves the ordered questions of an exam set, including
// correct options and explanations. Callers strip grading fields before
// sending anything to a student.
func (r *ExamSetRepository) ListQuestions(ctx context.Context, setID int64) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, set_id, order_num, question_header, question_text,
		        question_image_url, options, correct_option, explanation, marks
		 FROM questions
		 WHERE set_id = $1
		 ORDER BY order_num, id`, setID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var optionsRaw []byte
		if err := rows.Scan(&q.ID, &q.SetID, &q.OrderNum, &q.QuestionHeader, &q.QuestionText,
			&q.QuestionImageURL, &optionsRaw, &q.CorrectOption, &q.Explanation, &q.Marks); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(optionsRaw, &q.Options); err != nil {
			return nil, fmt.Errorf("decode options for question %d: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
