package session

import "testing"

func TestBuildReviewResolvesOptionText(t *testing.T) {
	rows := BuildReview(testCatalog(), []ReviewItem{
		{QuestionID: 1, SelectedOption: "b", CorrectOption: "a", IsCorrect: false, Explanation: "See chapter 2"},
		{QuestionID: 2, CorrectOption: "c", IsCorrect: false},
	})
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	r := rows[0]
	if r.QuestionText != "First question" {
		t.Errorf("question text = %q", r.QuestionText)
	}
	if r.SelectedText != "Option B" || r.CorrectText != "Option A" {
		t.Errorf("resolved texts = %q / %q", r.SelectedText, r.CorrectText)
	}
	if r.Explanation != "See chapter 2" {
		t.Errorf("explanation = %q", r.Explanation)
	}

	// Unanswered entry keeps an empty selection.
	if rows[1].SelectedOption != "" || rows[1].SelectedText != "" {
		t.Errorf("unanswered row = %+v", rows[1])
	}
}

func TestBuildReviewToleratesUnknownQuestion(t *testing.T) {
	rows := BuildReview(testCatalog(), []ReviewItem{
		{QuestionID: 404, QuestionText: "Orphaned question", SelectedOption: "b", CorrectOption: "a", IsCorrect: false},
	})
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	r := rows[0]
	if r.SelectedText != "b" || r.CorrectText != "a" {
		t.Errorf("unknown question should keep raw keys, got %q / %q", r.SelectedText, r.CorrectText)
	}
	if r.QuestionText != "Orphaned question" {
		t.Errorf("question text = %q", r.QuestionText)
	}
}

func TestBuildReviewUnknownOptionKeyFallsBack(t *testing.T) {
	rows := BuildReview(testCatalog(), []ReviewItem{
		{QuestionID: 1, SelectedOption: "z", CorrectOption: "a", IsCorrect: false},
	})
	if rows[0].SelectedText != "z" {
		t.Errorf("unknown option key should render raw, got %q", rows[0].SelectedText)
	}
}
