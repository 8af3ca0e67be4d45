package formula

import (
	"strconv"
	"strings"

	"github.com/swift-fca/swift/internal/fcaerr"
)

// ParseSequence expands a comma list of names, indices and ranges such as
// `0-4,9,class`. maxIndex closes open ranges; -1 rejects them.
func ParseSequence(input string, maxIndex int) ([]string, error) {
	var out []string
	col := 1
	for _, item := range strings.Split(input, ",") {
		trimmed := strings.TrimSpace(item)
		itemCol := col + strings.Index(item, trimmed)
		col += len(item) + 1
		if trimmed == "" {
			return nil, fcaerr.NewSequenceError(itemCol, input, "empty item")
		}

		start, end, open, isRange, err := parseBounds(trimmed, itemCol, input)
		if err != nil {
			return nil, err
		}
		if !isRange {
			out = append(out, trimmed)
			continue
		}
		if open {
			if maxIndex < 0 {
				return nil, fcaerr.NewSequenceError(itemCol, input, "open range needs a known attribute count")
			}
			end = maxIndex
		}
		for i := start; i <= end; i++ {
			out = append(out, strconv.Itoa(i))
		}
	}
	return out, nil
}

// Intervals is a parsed list of skipped lines. Closed intervals skip a
// span of lines, an open interval stops processing.
type Intervals struct {
	Closed [][2]int
	Open   []int
}

// ParseIntervals parses a list of skipped lines such as `2,5-7,10-`
func ParseIntervals(input string) (Intervals, error) {
	var iv Intervals
	if strings.TrimSpace(input) == "" {
		return iv, nil
	}

	col := 1
	for _, item := range strings.Split(input, ",") {
		trimmed := strings.TrimSpace(item)
		itemCol := col + strings.Index(item, trimmed)
		col += len(item) + 1
		if trimmed == "" {
			return Intervals{}, fcaerr.NewSequenceError(itemCol, input, "empty item")
		}

		start, end, open, isRange, err := parseBounds(trimmed, itemCol, input)
		if err != nil {
			return Intervals{}, err
		}
		switch {
		case !isRange:
			n, err := strconv.Atoi(trimmed)
			if err != nil || n < 0 {
				return Intervals{}, fcaerr.NewSequenceError(itemCol, input, "line numbers must be non-negative integers")
			}
			iv.Closed = append(iv.Closed, [2]int{n, n})
		case open:
			iv.Open = append(iv.Open, start)
		default:
			iv.Closed = append(iv.Closed, [2]int{start, end})
		}
	}
	return iv, nil
}

// Empty reports whether nothing is skipped
func (iv Intervals) Empty() bool {
	return len(iv.Closed) == 0 && len(iv.Open) == 0
}

// Skip reports whether line i lies inside a closed interval
func (iv Intervals) Skip(i int) bool {
	for _, c := range iv.Closed {
		if i >= c[0] && i <= c[1] {
			return true
		}
	}
	return false
}

// Stop reports whether line i reached an open interval
func (iv Intervals) Stop(i int) bool {
	for _, start := range iv.Open {
		if i >= start {
			return true
		}
	}
	return false
}

// parseBounds splits `a-b`, `a-` and `-b`. Items without a dash are not
// ranges and are returned untouched.
func parseBounds(item string, col int, input string) (start, end int, open, isRange bool, err error) {
	dash := strings.IndexByte(item, '-')
	if dash < 0 {
		return 0, 0, false, false, nil
	}

	left := strings.TrimSpace(item[:dash])
	right := strings.TrimSpace(item[dash+1:])
	if left != "" {
		if start, err = strconv.Atoi(left); err != nil || start < 0 {
			return 0, 0, false, false, fcaerr.NewSequenceError(col, input, "range start must be a non-negative integer")
		}
	}
	if right == "" {
		if left == "" {
			return 0, 0, false, false, fcaerr.NewSequenceError(col, input, "range without bounds")
		}
		return start, 0, true, true, nil
	}
	if end, err = strconv.Atoi(right); err != nil {
		return 0, 0, false, false, fcaerr.NewSequenceError(col+dash+1, input, "range end must be an integer")
	}
	if end < start {
		return 0, 0, false, false, fcaerr.NewSequenceError(col, input, "range end before start")
	}
	return start, end, false, true, nil
}
