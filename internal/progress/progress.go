// Package progress estimates how far a line-by-line pass has advanced.
package progress

import (
	"math"
	"sync/atomic"
)

// Func receives the percentage done, at most 100
type Func func(percent int)

// Tracker is fed every line a pass consumes
type Tracker interface {
	Update(line string)
	Percent() int
	Done()
}

// New returns an exact Counter when the number of lines is known, an
// EstimateCounter when only the byte size is, and a no-op tracker
// otherwise.
func New(lines int, size int64, fn Func) Tracker {
	switch {
	case lines >= 0:
		return NewCounter(lines, fn)
	case size > 0:
		return NewEstimateCounter(size, fn)
	default:
		return nopTracker{}
	}
}

// step notifies once per percent. onePercent is the number of lines
// worth one percent.
type step struct {
	fn         Func
	onePercent int
	current    int
	percent    atomic.Int32
}

func (s *step) advance(n int) {
	s.current += n
	for s.onePercent > 0 && s.current >= s.onePercent {
		s.current -= s.onePercent
		s.notify(int(s.percent.Load()) + 1)
	}
}

func (s *step) notify(p int) {
	if p > 100 {
		p = 100
	}
	if int32(p) == s.percent.Load() {
		return
	}
	s.percent.Store(int32(p))
	if s.fn != nil {
		s.fn(p)
	}
}

func (s *step) Percent() int { return int(s.percent.Load()) }
func (s *step) Done()        { s.notify(100) }

// Counter tracks a pass whose line count is known
type Counter struct {
	step
	lines int
	seen  int
}

// NewCounter returns a Counter for a pass over lines lines
func NewCounter(lines int, fn Func) *Counter {
	c := &Counter{lines: lines}
	c.fn = fn
	c.onePercent = max(1, int(math.Round(float64(lines)/100)))
	return c
}

// Update counts one line. Passes shorter than a hundred lines move by
// more than one percent per line.
func (c *Counter) Update(string) {
	c.seen++
	if c.lines > 0 && c.lines < 100 {
		c.notify(c.seen * 100 / c.lines)
		return
	}
	c.advance(1)
}

// sampleLines is how many lines are averaged before estimating
const sampleLines = 10

// EstimateCounter guesses the line count of a file from its byte size and
// the average length of its first lines.
type EstimateCounter struct {
	step
	size   int64
	sample []int
}

// NewEstimateCounter returns an EstimateCounter for a file of size bytes
func NewEstimateCounter(size int64, fn Func) *EstimateCounter {
	c := &EstimateCounter{size: size}
	c.fn = fn
	return c
}

func (c *EstimateCounter) Update(line string) {
	if c.onePercent > 0 {
		c.advance(1)
		return
	}

	c.sample = append(c.sample, len(line)+1)
	if len(c.sample) < sampleLines {
		return
	}
	c.estimate()
	c.advance(len(c.sample))
}

// Done estimates from a short sample before completing
func (c *EstimateCounter) Done() {
	if c.onePercent == 0 && len(c.sample) > 0 {
		c.estimate()
	}
	c.step.Done()
}

// Lines returns the estimated line count, -1 before the first estimate
func (c *EstimateCounter) Lines() int {
	if c.onePercent == 0 {
		return -1
	}
	return c.onePercent * 100
}

func (c *EstimateCounter) estimate() {
	total := 0
	for _, n := range c.sample {
		total += n
	}
	avg := float64(total) / float64(len(c.sample))
	lines := float64(c.size) / avg
	c.onePercent = max(1, int(math.Round(lines/100)))
}

type nopTracker struct{}

func (nopTracker) Update(string) {}
func (nopTracker) Percent() int { return 0 }
func (nopTracker) Done()         {}
