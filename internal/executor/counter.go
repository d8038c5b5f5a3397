package executor

import "sync"

// Counter is an integer shared between workers. Every operation holds the
// same mutex, so no update is lost and no read observes a partial update.
// Negative values are allowed.
type Counter struct {
	mu    sync.Mutex
	value int64
}

// NewCounter creates a counter starting at value.
func NewCounter(value int64) *Counter {
	return &Counter{value: value}
}

// Inc adds one.
func (c *Counter) Inc() {
	c.Add(1)
}

// Add adds n.
func (c *Counter) Add(n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value += n
}

// Dec subtracts one.
func (c *Counter) Dec() {
	c.Sub(1)
}

// Sub subtracts n.
func (c *Counter) Sub(n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value -= n
}

// Value returns the current value.
func (c *Counter) Value() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Reset sets the value to to.
func (c *Counter) Reset(to int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = to
}

// Tally holds the pass and fail totals of one run. It is passed explicitly to
// the pool so independent runs in one process never share totals.
type Tally struct {
	Passed *Counter
	Failed *Counter
}

// NewTally creates a zeroed tally.
func NewTally() *Tally {
	return &Tally{
		Passed: NewCounter(0),
		Failed: NewCounter(0),
	}
}

// Total returns passed plus failed.
func (t *Tally) Total() int64 {
	return t.Passed.Value() + t.Failed.Value()
}
