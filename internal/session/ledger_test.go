package session

import (
	"math/rand"
	"testing"
)

func testCatalog() *Catalog {
	opts := []Option{
		{Key: "a", Text: "Option A"},
		{Key: "b", Text: "Option B"},
		{Key: "c", Text: "Option C"},
		{Key: "d", Text: "Option D"},
	}
	return NewCatalog([]Question{
		{ID: 1, Text: "First question", Options: opts, Marks: 2},
		{ID: 2, Text: "Second question", Options: opts},
		{ID: 3, Text: "Third question", Options: opts, Marks: -1},
	})
}

func TestCatalogDefaultsMarks(t *testing.T) {
	c := testCatalog()
	if got := c.At(0).Marks; got != 2 {
		t.Errorf("expected marks 2, got %v", got)
	}
	if got := c.At(1).Marks; got != 1 {
		t.Errorf("expected absent marks to default to 1, got %v", got)
	}
	if got := c.At(2).Marks; got != 1 {
		t.Errorf("expected non-positive marks to default to 1, got %v", got)
	}
}

func TestCatalogLookup(t *testing.T) {
	c := testCatalog()
	q, ok := c.ByID(2)
	if !ok || q.Text != "Second question" {
		t.Fatalf("ByID(2) = %+v, %v", q, ok)
	}
	if _, ok := c.ByID(99); ok {
		t.Error("ByID(99) should not resolve")
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3", c.Len())
	}
}

func TestClassifyPrecedence(t *testing.T) {
	l := NewLedger(testCatalog())

	if got := l.Classify(1); got != Unseen {
		t.Errorf("fresh entry classified %v, want unseen", got)
	}

	l.MarkSkippedIfApplicable(1)
	if got := l.Classify(1); got != Skipped {
		t.Errorf("skipped entry classified %v, want skipped", got)
	}

	l.SelectOption(1, "b")
	if got := l.Classify(1); got != Answered {
		t.Errorf("answered entry classified %v, want answered", got)
	}

	l.ToggleFlag(1)
	if got := l.Classify(1); got != Flagged {
		t.Errorf("flagged entry classified %v, want flagged (flag wins over answer)", got)
	}
}

func TestSelectClearsSkip(t *testing.T) {
	l := NewLedger(testCatalog())
	l.MarkSkippedIfApplicable(2)
	l.SelectOption(2, "a")

	if got := l.Classify(2); got != Answered {
		t.Errorf("classified %v, want answered", got)
	}
	if l.entries[2].skipped {
		t.Error("selecting an option must clear skippedOnce")
	}
}

func TestFlagOnClearsSkip(t *testing.T) {
	l := NewLedger(testCatalog())
	l.MarkSkippedIfApplicable(2)

	l.ToggleFlag(2)
	if got := l.Classify(2); got != Flagged {
		t.Errorf("classified %v, want flagged", got)
	}

	// Unflagging must not resurrect the skip.
	l.ToggleFlag(2)
	if got := l.Classify(2); got != Unseen {
		t.Errorf("classified %v after unflag, want unseen", got)
	}
}

func TestFlagSurvivesAnswerClassification(t *testing.T) {
	l := NewLedger(testCatalog())
	l.MarkSkippedIfApplicable(3)
	l.ToggleFlag(3)
	l.SelectOption(3, "d")

	if got := l.Classify(3); got != Flagged {
		t.Errorf("classified %v, want flagged", got)
	}
	if sel, ok := l.Selected(3); !ok || sel != "d" {
		t.Errorf("Selected(3) = %q, %v", sel, ok)
	}
	if l.entries[3].skipped {
		t.Error("answer must clear skippedOnce even while flagged")
	}
}

func TestMarkSkippedOnlyWhenUntouched(t *testing.T) {
	l := NewLedger(testCatalog())

	l.SelectOption(1, "a")
	l.MarkSkippedIfApplicable(1)
	if got := l.Classify(1); got != Answered {
		t.Errorf("answered question marked skipped: %v", got)
	}

	l.ToggleFlag(2)
	l.MarkSkippedIfApplicable(2)
	if got := l.Classify(2); got != Flagged {
		t.Errorf("flagged question marked skipped: %v", got)
	}
}

func TestCountsPartition(t *testing.T) {
	l := NewLedger(testCatalog())

	// Overlap every bucket: answered+flagged, skipped, untouched.
	l.SelectOption(1, "a")
	l.ToggleFlag(1)
	l.MarkSkippedIfApplicable(2)

	c := l.Counts()
	if c.Total() != 3 {
		t.Fatalf("counts sum to %d, want 3: %+v", c.Total(), c)
	}
	want := Counts{Flagged: 1, Skipped: 1, Unseen: 1}
	if c != want {
		t.Errorf("Counts() = %+v, want %+v", c, want)
	}
}

func TestAnswersSubsetOfCatalog(t *testing.T) {
	cat := testCatalog()
	l := NewLedger(cat)
	l.SelectOption(1, "b")
	l.SelectOption(3, "c")

	answers := l.Answers()
	if len(answers) != 2 {
		t.Fatalf("Answers() has %d entries, want 2", len(answers))
	}
	for id := range answers {
		if !cat.Contains(id) {
			t.Errorf("answer map contains foreign id %d", id)
		}
	}
	if answers[1] != "b" || answers[3] != "c" {
		t.Errorf("Answers() = %v", answers)
	}
}

func TestCountsPartitionUnderRandomOperations(t *testing.T) {
	cat := testCatalog()
	keys := []string{"a", "b", "c", "d"}
	rng := rand.New(rand.NewSource(1))

	l := NewLedger(cat)
	for i := 0; i < 2000; i++ {
		id := cat.At(rng.Intn(cat.Len())).ID
		switch rng.Intn(4) {
		case 0:
			l.SelectOption(id, keys[rng.Intn(len(keys))])
		case 1:
			l.ToggleFlag(id)
		case 2:
			l.MarkVisited(id)
		case 3:
			l.MarkSkippedIfApplicable(id)
		}
		if got := l.Counts().Total(); got != cat.Len() {
			t.Fatalf("after %d ops counts sum to %d, want %d", i+1, got, cat.Len())
		}
	}
}

func TestUnknownQuestionPanics(t *testing.T) {
	l := NewLedger(testCatalog())
	defer func() {
		if recover() == nil {
			t.Error("Classify on unknown id should panic")
		}
	}()
	l.Classify(42)
}
