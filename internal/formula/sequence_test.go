package formula

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/swift-fca/swift/internal/fcaerr"
)

func TestParseSequence(t *testing.T) {
	got, err := ParseSequence("0-4,9, 12-14,class", -1)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"0", "1", "2", "3", "4", "9", "12", "13", "14", "class"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseSequence() mismatch (-want +got):\n%s", diff)
	}

	got, err = ParseSequence("3-", 5)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"3", "4", "5"}, got); diff != "" {
		t.Errorf("open range mismatch: %s", diff)
	}
}

func TestParseSequenceErrors(t *testing.T) {
	for _, input := range []string{"1,,2", "5-2", "a-3", "3-", "-"} {
		if _, err := ParseSequence(input, -1); fcaerr.CodeOf(err) != fcaerr.CodeSequence {
			t.Errorf("ParseSequence(%q) error = %v, want sequence error", input, err)
		}
	}
}

func TestIntervalsSkipLines(t *testing.T) {
	iv, err := ParseIntervals("2,5-7,10-")
	if err != nil {
		t.Fatal(err)
	}

	var processed []int
	for i := 0; i < 20; i++ {
		if iv.Stop(i) {
			break
		}
		if iv.Skip(i) {
			continue
		}
		processed = append(processed, i)
	}
	if diff := cmp.Diff([]int{0, 1, 3, 4, 8, 9}, processed); diff != "" {
		t.Errorf("processed lines mismatch (-want +got):\n%s", diff)
	}
}

func TestParseIntervals(t *testing.T) {
	iv, err := ParseIntervals("")
	if err != nil || !iv.Empty() {
		t.Errorf("empty list: %+v, %v", iv, err)
	}

	iv, err = ParseIntervals("-3")
	if err != nil {
		t.Fatal(err)
	}
	if !iv.Skip(0) || !iv.Skip(3) || iv.Skip(4) {
		t.Errorf("leading range: %+v", iv)
	}

	for _, input := range []string{"x", "3-1", "1,", "2-a"} {
		if _, err := ParseIntervals(input); fcaerr.CodeOf(err) != fcaerr.CodeSequence {
			t.Errorf("ParseIntervals(%q) error = %v", input, err)
		}
	}
}
