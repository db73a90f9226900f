package session

import "fmt"

// Classification is the display bucket of a question in the palette.
type Classification int

const (
	Unseen Classification = iota
	Answered
	Skipped
	Flagged
)

func (c Classification) String() string {
	switch c {
	case Answered:
		return "answered"
	case Skipped:
		return "skipped"
	case Flagged:
		return "flagged"
	default:
		return "unseen"
	}
}

type ledgerEntry struct {
	selected string
	flagged  bool
	visited  bool
	skipped  bool
}

// Counts is the palette summary. The four buckets always partition
// the catalog, so they sum to the question count.
type Counts struct {
	Answered int
	Flagged  int
	Skipped  int
	Unseen   int
}

func (c Counts) Total() int {
	return c.Answered + c.Flagged + c.Skipped + c.Unseen
}

// Ledger holds the per-question interaction state for one attempt. It
// is the single source of truth for selections, flags, visits and
// skips; all methods are synchronous and the owning Session serializes
// access. Every method panics on a question id that is not in the
// catalog, since that indicates catalog/ledger desynchronization.
type Ledger struct {
	order   []int64
	entries map[int64]*ledgerEntry
}

func NewLedger(catalog *Catalog) *Ledger {
	l := &Ledger{
		order:   make([]int64, 0, catalog.Len()),
		entries: make(map[int64]*ledgerEntry, catalog.Len()),
	}
	for i := 0; i < catalog.Len(); i++ {
		id := catalog.At(i).ID
		l.order = append(l.order, id)
		l.entries[id] = &ledgerEntry{}
	}
	return l
}

func (l *Ledger) get(id int64) *ledgerEntry {
	e, ok := l.entries[id]
	if !ok {
		panic(fmt.Sprintf("ledger: unknown question id %d", id))
	}
	return e
}

// SelectOption records the choice and clears any prior skip: an
// answered question is never displayed as skipped.
func (l *Ledger) SelectOption(id int64, optionKey string) {
	e := l.get(id)
	e.selected = optionKey
	e.skipped = false
}

// ToggleFlag flips the review-later marker and reports the new value.
// Flagging clears any prior skip.
func (l *Ledger) ToggleFlag(id int64) bool {
	e := l.get(id)
	e.flagged = !e.flagged
	if e.flagged {
		e.skipped = false
	}
	return e.flagged
}

func (l *Ledger) MarkVisited(id int64) {
	l.get(id).visited = true
}

// MarkSkippedIfApplicable records a skip only when the question is
// both unanswered and unflagged. Callers invoke it when the user
// advances past a question with "next", never on palette jumps or
// backwards navigation.
func (l *Ledger) MarkSkippedIfApplicable(id int64) {
	e := l.get(id)
	if e.selected == "" && !e.flagged {
		e.skipped = true
	}
}

// Classify applies the fixed precedence flagged > answered > skipped >
// unseen.
func (l *Ledger) Classify(id int64) Classification {
	e := l.get(id)
	switch {
	case e.flagged:
		return Flagged
	case e.selected != "":
		return Answered
	case e.skipped:
		return Skipped
	default:
		return Unseen
	}
}

func (l *Ledger) Selected(id int64) (string, bool) {
	e := l.get(id)
	return e.selected, e.selected != ""
}

func (l *Ledger) Visited(id int64) bool {
	return l.get(id).visited
}

func (l *Ledger) Counts() Counts {
	var c Counts
	for _, id := range l.order {
		switch l.Classify(id) {
		case Flagged:
			c.Flagged++
		case Answered:
			c.Answered++
		case Skipped:
			c.Skipped++
		default:
			c.Unseen++
		}
	}
	return c
}

// Answers reduces the ledger to the submission map. Unanswered
// questions are omitted; the server treats missing ids as unanswered.
func (l *Ledger) Answers() map[int64]string {
	answers := make(map[int64]string)
	for _, id := range l.order {
		if e := l.entries[id]; e.selected != "" {
			answers[id] = e.selected
		}
	}
	return answers
}
