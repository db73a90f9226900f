package session

// Option is one answer choice. Catalog questions keep options in
// display order (alphabetical by key).
type Option struct {
	Key  string
	Text string
}

// Question is immutable for the lifetime of a session.
type Question struct {
	ID       int64
	Header   string
	Text     string
	ImageURL string
	Options  []Option
	Marks    float64
}

// OptionText resolves an option key to its display text. The raw key
// is returned when it does not exist in the question, so stale or
// skewed review data degrades instead of breaking the display.
func (q Question) OptionText(key string) string {
	for _, opt := range q.Options {
		if opt.Key == key {
			return opt.Text
		}
	}
	return key
}

// Catalog is the fixed, ordered question list for one attempt with
// O(1) access by position and by id.
type Catalog struct {
	questions []Question
	byID      map[int64]int
}

func NewCatalog(questions []Question) *Catalog {
	c := &Catalog{
		questions: make([]Question, len(questions)),
		byID:      make(map[int64]int, len(questions)),
	}
	copy(c.questions, questions)
	for i := range c.questions {
		if c.questions[i].Marks <= 0 {
			c.questions[i].Marks = 1
		}
		c.byID[c.questions[i].ID] = i
	}
	return c
}

func (c *Catalog) Len() int {
	return len(c.questions)
}

func (c *Catalog) At(index int) Question {
	return c.questions[index]
}

func (c *Catalog) ByID(id int64) (Question, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Question{}, false
	}
	return c.questions[i], true
}

func (c *Catalog) Contains(id int64) bool {
	_, ok := c.byID[id]
	return ok
}
