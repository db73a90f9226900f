package session

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Phase int

const (
	PhaseLoading Phase = iota
	PhaseInProgress
	PhaseSubmitting
	PhaseCompleted
	PhaseLoadFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseInProgress:
		return "in_progress"
	case PhaseSubmitting:
		return "submitting"
	case PhaseCompleted:
		return "completed"
	case PhaseLoadFailed:
		return "load_failed"
	default:
		return "unknown"
	}
}

// Config carries the collaborators and tunables of one Session.
// TickInterval and RetryDelay exist so tests can compress time; both
// fall back to their production values when zero.
type Config struct {
	Client       ExamClient
	SetID        int64
	TickInterval time.Duration
	RetryDelay   time.Duration
	Logger       zerolog.Logger
	OnUpdate     func(Snapshot)
}

// Snapshot is the read model handed to the presentation layer after
// every state change.
type Snapshot struct {
	Phase        Phase
	CurrentIndex int
	Remaining    int
	Clock        string
	Overtime     bool
	Counts       Counts
	Notice       string
}

// Session drives one exam attempt: loading, navigation, ledger
// mutation, the countdown, and submission. A mutex serializes every
// transition, so timer ticks and user actions never interleave
// mid-mutation. Exactly one submission can be in flight at a time;
// whichever of a manual or timer-forced submit reaches the guard
// first wins and the other is dropped.
type Session struct {
	client     ExamClient
	setID      int64
	tick       time.Duration
	retryDelay time.Duration
	log        zerolog.Logger
	onUpdate   func(Snapshot)

	mu            sync.Mutex
	started       bool
	phase         Phase
	exam          *Exam
	catalog       *Catalog
	ledger        *Ledger
	timer         *Countdown
	retryTimer    *time.Timer
	current       int
	remaining     int
	notice        string
	result        *Result
	submitsClosed bool
	closed        bool

	done chan struct{}
}

func New(cfg Config) *Session {
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = time.Second
	}
	retry := cfg.RetryDelay
	if retry <= 0 {
		retry = 5 * time.Second
	}
	return &Session{
		client:     cfg.Client,
		setID:      cfg.SetID,
		tick:       tick,
		retryDelay: retry,
		log:        cfg.Logger,
		onUpdate:   cfg.OnUpdate,
		phase:      PhaseLoading,
		done:       make(chan struct{}),
	}
}

// Start loads the exam payload and, on success, begins the attempt:
// question 0 becomes the active visited question and the countdown
// starts. A failed load is terminal for this Session instance; the
// caller may construct a new one to retry.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return errors.New("session already started")
	}
	// Claimed before the fetch so a second Start fails fast instead of
	// racing this one for the Loading phase and arming a second timer.
	s.started = true
	s.mu.Unlock()

	exam, err := s.client.StartSet(ctx, s.setID)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.phase = PhaseLoadFailed
		s.notice = loadFailureNotice(err)
		s.mu.Unlock()
		s.log.Error().Err(err).Int64("set_id", s.setID).Msg("Exam load failed")
		s.fireUpdate()
		return err
	}

	s.exam = exam
	s.catalog = NewCatalog(exam.Questions)
	s.ledger = NewLedger(s.catalog)
	s.remaining = exam.DurationSeconds
	s.current = 0
	if s.catalog.Len() > 0 {
		s.ledger.MarkVisited(s.catalog.At(0).ID)
	}
	s.phase = PhaseInProgress
	s.timer = NewCountdown(exam.DurationSeconds, exam.GraceSeconds, s.tick, s.handleTick, s.handleExpire)
	s.timer.Start()
	s.mu.Unlock()

	s.log.Info().
		Int64("set_id", s.setID).
		Int("questions", len(exam.Questions)).
		Int("duration_seconds", exam.DurationSeconds).
		Msg("Exam session started")
	s.fireUpdate()
	return nil
}

func loadFailureNotice(err error) string {
	switch {
	case errors.Is(err, ErrSetNotFound):
		return "This exam set does not exist."
	case errors.Is(err, ErrSetLocked):
		return "This exam set is locked for your account."
	default:
		return "Could not load the exam. Check your connection and try again."
	}
}

func (s *Session) handleTick(remaining int) {
	s.mu.Lock()
	if s.closed || s.phase == PhaseCompleted {
		s.mu.Unlock()
		return
	}
	s.remaining = remaining
	s.mu.Unlock()
	s.fireUpdate()
}

func (s *Session) handleExpire() {
	s.beginSubmit(true)
}

// SelectOption records an answer for a question. Ignored outside
// InProgress and for option keys the question does not offer.
func (s *Session) SelectOption(questionID int64, optionKey string) {
	s.mu.Lock()
	if s.phase != PhaseInProgress {
		s.mu.Unlock()
		return
	}
	q, ok := s.catalog.ByID(questionID)
	if !ok || !hasOption(q, optionKey) {
		s.mu.Unlock()
		return
	}
	s.ledger.SelectOption(questionID, optionKey)
	s.mu.Unlock()
	s.fireUpdate()
}

func hasOption(q Question, key string) bool {
	for _, opt := range q.Options {
		if opt.Key == key {
			return true
		}
	}
	return false
}

func (s *Session) ToggleFlag(questionID int64) {
	s.mu.Lock()
	if s.phase != PhaseInProgress || !s.catalog.Contains(questionID) {
		s.mu.Unlock()
		return
	}
	s.ledger.ToggleFlag(questionID)
	s.mu.Unlock()
	s.fireUpdate()
}

// Next advances to the following question. The question being left is
// marked skipped when it is unanswered and unflagged; this is the only
// navigation that records a skip.
func (s *Session) Next() {
	s.mu.Lock()
	if s.phase != PhaseInProgress || s.catalog.Len() == 0 {
		s.mu.Unlock()
		return
	}
	s.ledger.MarkSkippedIfApplicable(s.catalog.At(s.current).ID)
	if s.current < s.catalog.Len()-1 {
		s.current++
		s.ledger.MarkVisited(s.catalog.At(s.current).ID)
	}
	s.mu.Unlock()
	s.fireUpdate()
}

func (s *Session) Previous() {
	s.GoTo(s.CurrentIndex() - 1)
}

// GoTo jumps to a question by index, clamping out-of-range values. It
// never marks the question being left as skipped.
func (s *Session) GoTo(index int) {
	s.mu.Lock()
	if s.phase != PhaseInProgress || s.catalog.Len() == 0 {
		s.mu.Unlock()
		return
	}
	if index < 0 {
		index = 0
	}
	if index > s.catalog.Len()-1 {
		index = s.catalog.Len() - 1
	}
	s.current = index
	s.ledger.MarkVisited(s.catalog.At(index).ID)
	s.mu.Unlock()
	s.fireUpdate()
}

// RequestSubmit starts a manual submission. It reports whether the
// request was accepted; false means the session is not in progress,
// a submission is already in flight, or submissions were closed by a
// server rejection.
func (s *Session) RequestSubmit() bool {
	return s.beginSubmit(false)
}

func (s *Session) beginSubmit(auto bool) bool {
	s.mu.Lock()
	if s.phase != PhaseInProgress || s.submitsClosed || s.closed {
		s.mu.Unlock()
		return false
	}
	s.phase = PhaseSubmitting
	s.notice = ""
	answers := s.ledger.Answers()
	s.mu.Unlock()

	s.fireUpdate()
	go s.performSubmit(answers, auto)
	return true
}

func (s *Session) performSubmit(answers map[int64]string, auto bool) {
	payload := make(map[string]string, len(answers))
	for id, key := range answers {
		payload[strconv.FormatInt(id, 10)] = key
	}

	result, err := s.client.SubmitSet(context.Background(), s.setID, payload)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	if err == nil {
		s.phase = PhaseCompleted
		s.result = result
		s.stopTimersLocked()
		close(s.done)
		s.mu.Unlock()
		s.log.Info().Int64("set_id", s.setID).Bool("auto", auto).Msg("Attempt submitted")
		s.fireUpdate()
		return
	}

	var rejected *RejectedError
	if errors.As(err, &rejected) {
		// Definitive refusal: the session survives for review of the
		// local ledger, but no further submissions are possible.
		s.phase = PhaseInProgress
		s.submitsClosed = true
		s.notice = rejected.Message
		s.stopTimersLocked()
		s.mu.Unlock()
		s.log.Warn().Err(err).Int64("set_id", s.setID).Msg("Submission rejected by server")
		s.fireUpdate()
		return
	}

	// Transient failure: nothing is lost. The ledger is intact and the
	// countdown kept running while the request was in flight.
	s.phase = PhaseInProgress
	s.notice = "Submission failed. Your answers are safe, please retry."
	pastGrace := s.exam != nil && s.remaining <= -s.exam.GraceSeconds
	if pastGrace {
		// The countdown already fired its one-shot signal, so the
		// forced submit re-arms itself on a fixed delay instead of
		// stranding the user past the grace window.
		s.retryTimer = time.AfterFunc(s.retryDelay, func() { s.beginSubmit(true) })
	}
	s.mu.Unlock()
	s.log.Warn().Err(err).Int64("set_id", s.setID).Bool("auto", auto).Msg("Submission failed")
	s.fireUpdate()
}

func (s *Session) stopTimersLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
}

// Close tears the session down: the countdown stops and any in-flight
// submission response is discarded on arrival. Safe to call twice.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopTimersLocked()
	s.mu.Unlock()
}

// Done is closed when the session reaches Completed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) fireUpdate() {
	if s.onUpdate == nil {
		return
	}
	s.onUpdate(s.Snapshot())
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Phase:        s.phase,
		CurrentIndex: s.current,
		Remaining:    s.remaining,
		Clock:        FormatClock(s.remaining),
		Overtime:     s.remaining < 0,
		Notice:       s.notice,
	}
	if s.ledger != nil {
		snap.Counts = s.ledger.Counts()
	}
	return snap
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) Exam() *Exam {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exam
}

func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// CurrentQuestion returns the active question; ok is false before the
// catalog is loaded or when it is empty.
func (s *Session) CurrentQuestion() (Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.catalog == nil || s.catalog.Len() == 0 {
		return Question{}, false
	}
	return s.catalog.At(s.current), true
}

func (s *Session) Classify(questionID int64) Classification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Classify(questionID)
}

func (s *Session) Selected(questionID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Selected(questionID)
}

func (s *Session) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledger == nil {
		return Counts{}
	}
	return s.ledger.Counts()
}

func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

func (s *Session) Clock() string {
	return FormatClock(s.Remaining())
}

func (s *Session) Notice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notice
}

// Result returns the authoritative outcome once the session completed.
func (s *Session) Result() (*Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.result != nil
}

// Review builds the reconciled review rows for a completed session.
func (s *Session) Review() []ReviewRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return nil
	}
	return BuildReview(s.catalog, s.result.Review)
}
