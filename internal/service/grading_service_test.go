package service

import (
	"testing"
	"time"

	"github.com/bridge4er/examhall/internal/model"
)

func gradingFixture() (*model.ExamSet, []model.Question, model.AnswerKey) {
	set := &model.ExamSet{ID: 1, Name: "Fixture Set", NegativeMarking: 0.25}
	opts := map[string]string{"a": "A", "b": "B", "c": "C", "d": "D"}
	questions := []model.Question{
		{ID: 10, QuestionText: "Q1", Options: opts, Marks: 2},
		{ID: 11, QuestionText: "Q2", Options: opts, Marks: 1},
		{ID: 12, QuestionText: "Q3", Options: opts},
	}
	key := model.AnswerKey{"10": "a", "11": "b", "12": "c"}
	return set, questions, key
}

func TestGradeScoresCorrectWrongUnanswered(t *testing.T) {
	svc := &GradingService{}
	set, questions, key := gradingFixture()

	result := svc.grade(set, questions, key, map[string]string{
		"10": "a", // correct, 2 marks
		"11": "d", // wrong, -0.25
	}, time.Now().UTC())

	if result.TotalQuestions != 3 {
		t.Errorf("total = %d, want 3", result.TotalQuestions)
	}
	if result.CorrectAnswers != 1 || result.WrongAnswers != 1 || result.Unanswered != 1 {
		t.Errorf("counts = %d/%d/%d, want 1/1/1",
			result.CorrectAnswers, result.WrongAnswers, result.Unanswered)
	}
	if result.Score != 1.75 {
		t.Errorf("score = %v, want 1.75", result.Score)
	}
	if len(result.Review) != 3 {
		t.Fatalf("review rows = %d, want 3", len(result.Review))
	}
	if !result.Review[0].IsCorrect || result.Review[1].IsCorrect {
		t.Errorf("review verdicts = %+v", result.Review)
	}
	if result.Review[2].SelectedOption != "" {
		t.Errorf("unanswered row carries a selection: %+v", result.Review[2])
	}
}

func TestGradeNormalizesAnswerCaseAndSpace(t *testing.T) {
	svc := &GradingService{}
	set, questions, key := gradingFixture()

	result := svc.grade(set, questions, key, map[string]string{
		"10": " A ",
	}, time.Now().UTC())

	if result.CorrectAnswers != 1 {
		t.Errorf("correct = %d, want 1 (answers normalize to lowercase)", result.CorrectAnswers)
	}
}

func TestGradeRejectsForeignOptionAsUnanswered(t *testing.T) {
	svc := &GradingService{}
	set, questions, key := gradingFixture()

	result := svc.grade(set, questions, key, map[string]string{
		"10": "z",
	}, time.Now().UTC())

	if result.WrongAnswers != 0 {
		t.Errorf("an option the question does not offer must not count as wrong")
	}
	if result.Unanswered != 3 {
		t.Errorf("unanswered = %d, want 3", result.Unanswered)
	}
	if result.Score != 0 {
		t.Errorf("score = %v, want 0", result.Score)
	}
}

func TestGradeDefaultsMarksToOne(t *testing.T) {
	svc := &GradingService{}
	set, questions, key := gradingFixture()

	result := svc.grade(set, questions, key, map[string]string{
		"12": "c", // marks unset on Q3
	}, time.Now().UTC())

	if result.Score != 1 {
		t.Errorf("score = %v, want 1", result.Score)
	}
}

func TestGradeIgnoresForeignQuestionIDs(t *testing.T) {
	svc := &GradingService{}
	set, questions, key := gradingFixture()

	result := svc.grade(set, questions, key, map[string]string{
		"999": "a",
	}, time.Now().UTC())

	if result.TotalQuestions != 3 || result.Unanswered != 3 {
		t.Errorf("result = %+v, foreign ids must not affect grading", result)
	}
}
