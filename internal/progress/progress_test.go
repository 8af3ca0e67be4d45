package progress

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type recorder struct {
	got []int
}

func (r *recorder) fn(p int) { r.got = append(r.got, p) }

func TestCounter(t *testing.T) {
	t.Run("one percent per line step", func(t *testing.T) {
		var r recorder
		c := NewCounter(1000, r.fn)
		for i := 0; i < 25; i++ {
			c.Update("x")
		}
		if diff := cmp.Diff([]int{1, 2}, r.got); diff != "" {
			t.Errorf("notifications mismatch (-want +got):\n%s", diff)
		}
		if c.Percent() != 2 {
			t.Errorf("Percent() = %d, want 2", c.Percent())
		}
	})

	t.Run("short pass", func(t *testing.T) {
		var r recorder
		c := NewCounter(4, r.fn)
		for i := 0; i < 4; i++ {
			c.Update("x")
		}
		if diff := cmp.Diff([]int{25, 50, 75, 100}, r.got); diff != "" {
			t.Errorf("notifications mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("capped at one hundred", func(t *testing.T) {
		var r recorder
		c := NewCounter(200, r.fn)
		for i := 0; i < 500; i++ {
			c.Update("x")
		}
		c.Done()
		if last := r.got[len(r.got)-1]; last != 100 {
			t.Errorf("last notification = %d, want 100", last)
		}
		if len(r.got) != 100 {
			t.Errorf("got %d notifications, want 100", len(r.got))
		}
	})
}

func TestEstimateCounter(t *testing.T) {
	line := strings.Repeat("a", 9)
	var r recorder
	// 1000 lines of 10 bytes each
	c := NewEstimateCounter(10000, r.fn)

	for i := 0; i < sampleLines-1; i++ {
		c.Update(line)
	}
	if len(r.got) != 0 || c.Lines() != -1 {
		t.Fatalf("estimated before the sample was complete: %v, %d", r.got, c.Lines())
	}

	c.Update(line)
	if got := c.Lines(); got != 1000 {
		t.Errorf("Lines() = %d, want 1000", got)
	}
	if diff := cmp.Diff([]int{1}, r.got); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}

	for i := 0; i < 990; i++ {
		c.Update(line)
	}
	if c.Percent() != 100 {
		t.Errorf("Percent() = %d, want 100", c.Percent())
	}
}

func TestEstimateCounterShortFile(t *testing.T) {
	var r recorder
	c := NewEstimateCounter(20, r.fn)
	c.Update("abcd")
	c.Update("efgh")
	c.Done()
	if diff := cmp.Diff([]int{100}, r.got); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestNew(t *testing.T) {
	if _, ok := New(10, 100, nil).(*Counter); !ok {
		t.Error("known line count should give a Counter")
	}
	if _, ok := New(-1, 100, nil).(*EstimateCounter); !ok {
		t.Error("known size should give an EstimateCounter")
	}
	tr := New(-1, -1, nil)
	tr.Update("x")
	tr.Done()
	if tr.Percent() != 0 {
		t.Errorf("Percent() = %d, want 0", tr.Percent())
	}
}
