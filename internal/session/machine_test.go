package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeClient struct {
	mu       sync.Mutex
	exam     *Exam
	startErr error
	// submitErrs are consumed one per call; a nil entry (or exhaustion)
	// means the submission succeeds.
	submitErrs []error
	submits    []map[string]string
	gate       chan struct{}
	// startEntered is closed when StartSet begins; startGate blocks it
	// until closed. Both are optional.
	startEntered chan struct{}
	startGate    chan struct{}
}

func (f *fakeClient) StartSet(ctx context.Context, setID int64) (*Exam, error) {
	if f.startEntered != nil {
		close(f.startEntered)
		f.startEntered = nil
	}
	if f.startGate != nil {
		<-f.startGate
	}
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.exam, nil
}

func (f *fakeClient) SubmitSet(ctx context.Context, setID int64, answers map[string]string) (*Result, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	copied := make(map[string]string, len(answers))
	for k, v := range answers {
		copied[k] = v
	}
	f.submits = append(f.submits, copied)
	var err error
	if len(f.submitErrs) > 0 {
		err = f.submitErrs[0]
		f.submitErrs = f.submitErrs[1:]
	}
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &Result{
		TotalQuestions: len(f.exam.Questions),
		SubmittedAt:    time.Now(),
	}, nil
}

func (f *fakeClient) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submits)
}

func fakeExam() *Exam {
	opts := []Option{
		{Key: "a", Text: "Option A"},
		{Key: "b", Text: "Option B"},
		{Key: "c", Text: "Option C"},
		{Key: "d", Text: "Option D"},
	}
	return &Exam{
		ID:              7,
		Name:            "Practice Set",
		DurationSeconds: 60,
		GraceSeconds:    10,
		Questions: []Question{
			{ID: 1, Text: "First question", Options: opts},
			{ID: 2, Text: "Second question", Options: opts},
			{ID: 3, Text: "Third question", Options: opts},
		},
	}
}

func startSession(t *testing.T, client ExamClient, tick time.Duration) *Session {
	t.Helper()
	s := New(Config{
		Client:       client,
		SetID:        7,
		TickInterval: tick,
		RetryDelay:   10 * time.Millisecond,
		Logger:       zerolog.Nop(),
	})
	t.Cleanup(s.Close)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStartIsSingleUse(t *testing.T) {
	entered := make(chan struct{})
	gate := make(chan struct{})
	client := &fakeClient{exam: fakeExam(), startEntered: entered, startGate: gate}
	s := New(Config{Client: client, SetID: 7, TickInterval: time.Hour, Logger: zerolog.Nop()})
	defer s.Close()

	firstErr := make(chan error, 1)
	go func() { firstErr <- s.Start(context.Background()) }()
	<-entered

	// The first load is still in flight; a second Start must not slip
	// past the guard and arm a second countdown.
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("second Start succeeded while the first was loading")
	}

	close(gate)
	if err := <-firstErr; err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if s.Phase() != PhaseInProgress {
		t.Errorf("phase = %v, want in_progress", s.Phase())
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("Start succeeded on an already running session")
	}
}

func TestLoadFailureIsTerminal(t *testing.T) {
	client := &fakeClient{startErr: ErrSetLocked}
	s := New(Config{Client: client, SetID: 7, Logger: zerolog.Nop()})
	defer s.Close()

	if err := s.Start(context.Background()); !errors.Is(err, ErrSetLocked) {
		t.Fatalf("Start err = %v, want ErrSetLocked", err)
	}
	if s.Phase() != PhaseLoadFailed {
		t.Errorf("phase = %v, want load_failed", s.Phase())
	}
	if s.RequestSubmit() {
		t.Error("submit must be rejected after a failed load")
	}
}

func TestManualSubmitSendsAnsweredOnly(t *testing.T) {
	// Scenario: answer Q1 with "b", flag Q2, leave Q3 untouched.
	client := &fakeClient{exam: fakeExam()}
	s := startSession(t, client, time.Hour)

	s.SelectOption(1, "b")
	s.ToggleFlag(2)
	if !s.RequestSubmit() {
		t.Fatal("manual submit was not accepted")
	}

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session never completed")
	}

	if got := client.submitCount(); got != 1 {
		t.Fatalf("submit called %d times, want 1", got)
	}
	payload := client.submits[0]
	if len(payload) != 1 || payload["1"] != "b" {
		t.Errorf("payload = %v, want {1: b}", payload)
	}
	if s.Phase() != PhaseCompleted {
		t.Errorf("phase = %v, want completed", s.Phase())
	}
	if _, ok := s.Result(); !ok {
		t.Error("completed session has no result")
	}
}

func TestAutoSubmitFiresAtGraceBoundary(t *testing.T) {
	client := &fakeClient{exam: fakeExam()}
	client.exam.DurationSeconds = 2
	client.exam.GraceSeconds = 1
	s := startSession(t, client, time.Millisecond)

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timer-forced submission never completed")
	}

	if got := client.submitCount(); got != 1 {
		t.Fatalf("submit called %d times, want 1", got)
	}
	if len(client.submits[0]) != 0 {
		t.Errorf("payload = %v, want empty", client.submits[0])
	}
	if got := s.Remaining(); got != -1 {
		t.Errorf("remaining = %d at completion, want -1", got)
	}
	// No tick-driven mutation after completion.
	time.Sleep(20 * time.Millisecond)
	if got := s.Remaining(); got != -1 {
		t.Errorf("remaining moved to %d after completion", got)
	}
}

func TestNextMarksSkippedOnlyWhenUntouched(t *testing.T) {
	client := &fakeClient{exam: fakeExam()}
	s := startSession(t, client, time.Hour)

	s.SelectOption(1, "a")
	s.Next() // leaving answered Q1: no skip
	s.Next() // leaving untouched Q2: skip

	if got := s.Classify(1); got != Answered {
		t.Errorf("Q1 = %v, want answered", got)
	}
	if got := s.Classify(2); got != Skipped {
		t.Errorf("Q2 = %v, want skipped", got)
	}
	if got := s.Classify(3); got != Unseen {
		t.Errorf("Q3 = %v, want unseen", got)
	}
	if got := s.CurrentIndex(); got != 2 {
		t.Errorf("current index = %d, want 2", got)
	}
	// Next at the last question stays put but still records the skip.
	s.Next()
	if got := s.Classify(3); got != Skipped {
		t.Errorf("Q3 = %v after next at end, want skipped", got)
	}
	if got := s.CurrentIndex(); got != 2 {
		t.Errorf("current index = %d after next at end, want 2", got)
	}
}

func TestGoToClampsAndNeverSkips(t *testing.T) {
	client := &fakeClient{exam: fakeExam()}
	s := startSession(t, client, time.Hour)

	s.GoTo(99)
	if got := s.CurrentIndex(); got != 2 {
		t.Errorf("GoTo(99) landed on %d, want 2", got)
	}
	s.GoTo(-5)
	if got := s.CurrentIndex(); got != 0 {
		t.Errorf("GoTo(-5) landed on %d, want 0", got)
	}
	// Jumping away from untouched questions records no skips.
	for id := int64(1); id <= 3; id++ {
		if got := s.Classify(id); got == Skipped {
			t.Errorf("Q%d marked skipped by palette jump", id)
		}
	}
	if !s.ledger.Visited(3) {
		t.Error("GoTo target was not marked visited")
	}
}

func TestFlagAfterSkipRevertsCleanly(t *testing.T) {
	client := &fakeClient{exam: fakeExam()}
	s := startSession(t, client, time.Hour)

	s.Next() // Q1 skipped
	if got := s.Classify(1); got != Skipped {
		t.Fatalf("Q1 = %v, want skipped", got)
	}
	s.ToggleFlag(1)
	if got := s.Classify(1); got != Flagged {
		t.Errorf("Q1 = %v, want flagged", got)
	}
	s.ToggleFlag(1)
	if got := s.Classify(1); got != Unseen {
		t.Errorf("Q1 = %v after unflag, want unseen (skip must not return)", got)
	}
}

func TestSubmitFailureRollsBackWithoutDataLoss(t *testing.T) {
	client := &fakeClient{exam: fakeExam(), submitErrs: []error{errors.New("503 upstream")}}
	s := startSession(t, client, 5*time.Millisecond)

	s.SelectOption(1, "c")
	if !s.RequestSubmit() {
		t.Fatal("manual submit was not accepted")
	}

	waitFor(t, "rollback to in_progress", func() bool {
		return s.Phase() == PhaseInProgress && s.Notice() != ""
	})

	if got := s.Classify(1); got != Answered {
		t.Errorf("Q1 = %v after rollback, want answered", got)
	}
	before := s.Remaining()
	waitFor(t, "timer still running", func() bool { return s.Remaining() < before })

	// A retry goes through.
	if !s.RequestSubmit() {
		t.Fatal("retry submit was not accepted")
	}
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("retry never completed")
	}
	if got := client.submitCount(); got != 2 {
		t.Errorf("submit called %d times, want 2", got)
	}
}

func TestRejectedSubmissionClosesSubmits(t *testing.T) {
	client := &fakeClient{
		exam:       fakeExam(),
		submitErrs: []error{&RejectedError{Status: 409, Code: "ALREADY_SUBMITTED", Message: "You have already submitted this exam set"}},
	}
	s := startSession(t, client, time.Hour)

	if !s.RequestSubmit() {
		t.Fatal("submit was not accepted")
	}
	waitFor(t, "rejection notice", func() bool { return s.Notice() != "" })

	if s.Phase() != PhaseInProgress {
		t.Errorf("phase = %v, want in_progress", s.Phase())
	}
	if s.RequestSubmit() {
		t.Error("submit must stay closed after a server rejection")
	}
	if got := client.submitCount(); got != 1 {
		t.Errorf("submit called %d times, want 1", got)
	}
}

func TestConcurrentAutoSubmitIsDropped(t *testing.T) {
	client := &fakeClient{exam: fakeExam(), gate: make(chan struct{})}
	s := startSession(t, client, time.Hour)

	if !s.RequestSubmit() {
		t.Fatal("manual submit was not accepted")
	}
	// Timer-forced signal arrives while the manual submission is in
	// flight; the guard must drop it.
	if s.beginSubmit(true) {
		t.Error("auto submit accepted while another was in flight")
	}
	close(client.gate)

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session never completed")
	}
	if got := client.submitCount(); got != 1 {
		t.Errorf("submit called %d times, want 1", got)
	}
}

func TestFailedAutoSubmitRearms(t *testing.T) {
	client := &fakeClient{
		exam:       fakeExam(),
		submitErrs: []error{errors.New("connection reset")},
	}
	client.exam.DurationSeconds = 1
	client.exam.GraceSeconds = 0
	s := startSession(t, client, time.Millisecond)

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("re-armed auto submit never completed")
	}
	if got := client.submitCount(); got != 2 {
		t.Errorf("submit called %d times, want 2 (failure then retry)", got)
	}
}

func TestInputFrozenWhileSubmitting(t *testing.T) {
	client := &fakeClient{exam: fakeExam(), gate: make(chan struct{})}
	s := startSession(t, client, time.Hour)

	s.SelectOption(1, "a")
	if !s.RequestSubmit() {
		t.Fatal("submit was not accepted")
	}

	s.SelectOption(1, "d")
	s.ToggleFlag(2)
	s.Next()
	close(client.gate)

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session never completed")
	}
	if got := client.submits[0]["1"]; got != "a" {
		t.Errorf("payload answer = %q, want the pre-submit value %q", got, "a")
	}
	if got := s.Classify(2); got == Flagged {
		t.Error("flag applied while submitting")
	}
}

func TestCloseDiscardsInFlightResponse(t *testing.T) {
	client := &fakeClient{exam: fakeExam(), gate: make(chan struct{})}
	s := startSession(t, client, time.Hour)

	if !s.RequestSubmit() {
		t.Fatal("submit was not accepted")
	}
	s.Close()
	close(client.gate)

	time.Sleep(20 * time.Millisecond)
	if s.Phase() == PhaseCompleted {
		t.Error("closed session transitioned on a late response")
	}
	if _, ok := s.Result(); ok {
		t.Error("closed session stored a late result")
	}
}

func TestSnapshotCountsPartition(t *testing.T) {
	client := &fakeClient{exam: fakeExam()}
	s := startSession(t, client, time.Hour)

	s.SelectOption(1, "a")
	s.Next()
	s.Next()
	s.ToggleFlag(3)

	snap := s.Snapshot()
	if snap.Counts.Total() != 3 {
		t.Fatalf("counts sum to %d, want 3: %+v", snap.Counts.Total(), snap.Counts)
	}
	want := Counts{Answered: 1, Skipped: 1, Flagged: 1}
	if snap.Counts != want {
		t.Errorf("counts = %+v, want %+v", snap.Counts, want)
	}
	if snap.Clock != "1:00" {
		t.Errorf("clock = %q, want 1:00", snap.Clock)
	}
}
