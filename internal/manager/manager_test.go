package manager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/swift-fca/swift/internal/config"
	"github.com/swift-fca/swift/internal/fcaerr"
	"github.com/swift-fca/swift/internal/format"
)

func newJob(t *testing.T, name, content, target string) Job {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, name)
	if err := os.WriteFile(src, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	job := JobFromConfig(config.GetDefaults())
	job.Source.Path = src
	job.Target.Path = filepath.Join(dir, target)
	return job
}

func convert(t *testing.T, job Job) (string, *Result) {
	t.Helper()
	c, err := NewConverter(job, WithLogger(zap.NewNop()))
	if err != nil {
		t.Fatalf("NewConverter() error = %v", err)
	}
	result, err := c.Convert(context.Background())
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	out, err := os.ReadFile(job.Target.Path)
	if err != nil {
		t.Fatal(err)
	}
	return string(out), result
}

func TestConvertCXTToDAT(t *testing.T) {
	job := newJob(t, "in.cxt", "B\n\n3\n2\n\no1\no2\no3\na1\na2\nX.\n.X\nXX\n", "out.dat")

	out, result := convert(t, job)
	if out != "0\n1\n0 1\n" {
		t.Errorf("output = %q", out)
	}
	if result.State != StateDone || result.Written != 3 {
		t.Errorf("result = %+v", result)
	}
}

func TestConvertCXTRoundTripThroughDAT(t *testing.T) {
	input := "B\nctx\n3\n2\no1\no2\no3\na1\na2\nX.\n.X\nXX\n"
	job := newJob(t, "in.cxt", input, "mid.dat")
	convert(t, job)

	back := JobFromConfig(config.GetDefaults())
	back.Source.Path = job.Target.Path
	back.Target.Path = filepath.Join(filepath.Dir(job.Target.Path), "out.cxt")
	back.Target.RelationName = "ctx"
	back.Target.Objects = []string{"o1", "o2", "o3"}
	out, _ := convert(t, back)

	want := "B\nctx\n3\n2\no1\no2\no3\n0\n1\nX.\n.X\nXX\n"
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestConvertCSVToARFFWithFormula(t *testing.T) {
	job := newJob(t, "in.csv", "age,sex\n30,man\n60,woman\n", "out.arff")
	job.Source.Attributes = "age=AGE[n,x<50];sex=MAN[e,'man']"

	out, _ := convert(t, job)
	want := "@relation in\n\n" +
		"@attribute AGE numeric\n" +
		"@attribute MAN { 0,1 }\n\n" +
		"@data\n1,1\n0,0\n"
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestConvertCSVPassThrough(t *testing.T) {
	input := "a;b\n1;x\n2;y\n"
	job := newJob(t, "in.csv", input, "out.csv")
	job.Source.Separator = ";"
	job.Target.Separator = ";"

	out, result := convert(t, job)
	if out != input {
		t.Errorf("output = %q, want %q", out, input)
	}
	if result.Processed != 2 {
		t.Errorf("Processed = %d, want 2", result.Processed)
	}
}

func TestConvertARFFNominalToCXTUnpacks(t *testing.T) {
	input := "@relation r\n@attribute color {red,green}\n@data\nred\ngreen\nred\n"
	job := newJob(t, "in.arff", input, "out.cxt")

	out, _ := convert(t, job)
	want := "B\nr\n3\n2\n0\n1\n2\ncolor_red\ncolor_green\nX.\n.X\nX.\n"
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestConvertDATToDataWithTargetClasses(t *testing.T) {
	job := newJob(t, "in.dat", "0\n1\n", "out.data")
	job.Target.Classes = []string{"x", "y"}

	out, _ := convert(t, job)
	if out != "1,0,x\n0,1,y\n" {
		t.Errorf("data = %q", out)
	}
	names, err := os.ReadFile(format.NamesPath(job.Target.Path))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("x,y.\n0: 1,0.\n1: 0,1.\n", string(names)); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestConvertMissingNamesCreatesNoTarget(t *testing.T) {
	job := newJob(t, "in.data", "1,a\n", "out.csv")

	c, err := NewConverter(job)
	if err != nil {
		t.Fatalf("NewConverter() error = %v", err)
	}
	_, err = c.Convert(context.Background())
	var namesErr *fcaerr.NamesFileError
	if !errors.As(err, &namesErr) {
		t.Fatalf("Convert() error = %v, want names file error", err)
	}
	if _, err := os.Stat(job.Target.Path); !os.IsNotExist(err) {
		t.Error("target was created")
	}
	if c.State() != StateFailed {
		t.Errorf("State() = %v, want %v", c.State(), StateFailed)
	}
}

func TestConvertSkippedLines(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&sb, "%d\n", i)
	}
	job := newJob(t, "in.csv", sb.String(), "out.csv")
	job.Source.AttrsFirstLine = false
	job.Target.AttrsFirstLine = false
	job.Source.SkippedLines = "2,5-7,10-"

	out, result := convert(t, job)
	if out != "0\n1\n3\n4\n8\n9\n" {
		t.Errorf("output = %q", out)
	}
	if result.Skipped != 4 || result.Written != 6 {
		t.Errorf("skipped = %d, written = %d", result.Skipped, result.Written)
	}
}

func TestConvertSkipErrors(t *testing.T) {
	t.Run("recorded", func(t *testing.T) {
		job := newJob(t, "in.csv", "a\n1\n2\n0\n", "out.cxt")
		job.Source.SkipErrors = true

		out, result := convert(t, job)
		want := "B\nin\n2\n1\n0\n1\na\nX\n.\n"
		if diff := cmp.Diff(want, out); diff != "" {
			t.Errorf("output mismatch (-want +got):\n%s", diff)
		}
		if len(result.Errors) != 1 || result.Failed != 1 {
			t.Fatalf("errors = %v", result.Errors)
		}
		if r := result.Errors[0]; r.Line != 3 || r.Code != fcaerr.CodeBival {
			t.Errorf("record = %+v", r)
		}
	})

	t.Run("fatal", func(t *testing.T) {
		job := newJob(t, "in.csv", "a\n1\n2\n0\n", "out.cxt")

		c, _ := NewConverter(job)
		_, err := c.Convert(context.Background())
		if got := fcaerr.CodeOf(err); got != fcaerr.CodeBival {
			t.Errorf("CodeOf(%v) = %v, want %v", err, got, fcaerr.CodeBival)
		}
	})

	t.Run("line error while converting", func(t *testing.T) {
		job := newJob(t, "in.csv", "a,b\n1,2\n3\n4,5\n", "out.csv")
		job.Source.SkipErrors = true

		out, result := convert(t, job)
		if out != "a,b\n1,2\n4,5\n" {
			t.Errorf("output = %q", out)
		}
		if len(result.Errors) != 1 || result.Errors[0].Phase != phaseConvert {
			t.Errorf("errors = %v", result.Errors)
		}
	})
}

func TestConvertStop(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 2000; i++ {
		fmt.Fprintf(&sb, "%d,row%d\n", i, i)
	}
	job := newJob(t, "in.csv", sb.String(), "out.csv")
	job.Source.AttrsFirstLine = false

	var (
		c        *Converter
		finished *Result
	)
	c, err := NewConverter(job,
		WithProgress(func(int) { c.Stop() }),
		WithFinished(func(r *Result, _ error) { finished = r }))
	if err != nil {
		t.Fatalf("NewConverter() error = %v", err)
	}

	result, err := c.Convert(context.Background())
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if !result.Cancelled || c.State() != StateCancelled {
		t.Errorf("result = %+v, state = %v", result, c.State())
	}
	if result.Written == 0 || result.Written >= 2000 {
		t.Errorf("Written = %d", result.Written)
	}
	if finished != result {
		t.Error("finished callback did not receive the result")
	}
}

func TestConvertStopLeavesNoNamesFile(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 2000; i++ {
		sb.WriteString("0 1\n")
	}
	job := newJob(t, "in.dat", sb.String(), "out.data")
	job.Target.Classes = []string{"x", "y"}

	var c *Converter
	c, err := NewConverter(job, WithProgress(func(int) {
		if c.State() == StateConverting {
			c.Stop()
		}
	}))
	if err != nil {
		t.Fatalf("NewConverter() error = %v", err)
	}

	result, err := c.Convert(context.Background())
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if !result.Cancelled {
		t.Fatalf("result = %+v, want cancelled", result)
	}
	if _, err := os.Stat(format.NamesPath(job.Target.Path)); !os.IsNotExist(err) {
		t.Errorf("names file written for a cancelled conversion: %v", err)
	}
}

func TestConvertCancelledContext(t *testing.T) {
	job := newJob(t, "in.csv", "a\n1\n2\n", "out.csv")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, _ := NewConverter(job)
	result, err := c.Convert(ctx)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if !result.Cancelled || result.Written != 0 {
		t.Errorf("result = %+v", result)
	}
}

func TestConvertProgressReachesHundred(t *testing.T) {
	job := newJob(t, "in.cxt", "B\n\n3\n2\n\no1\no2\no3\na1\na2\nX.\n.X\nXX\n", "out.dat")

	var got []int
	c, _ := NewConverter(job, WithProgress(func(p int) { got = append(got, p) }))
	if _, err := c.Convert(context.Background()); err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if len(got) == 0 || got[len(got)-1] != 100 {
		t.Errorf("progress = %v", got)
	}
	if c.Stats().Percent != 100 {
		t.Errorf("Percent = %d", c.Stats().Percent)
	}
}

func TestConvertStreams(t *testing.T) {
	job := JobFromConfig(config.GetDefaults())
	job.Source.Format = "cxt"
	job.Target.Format = "dat"
	job.Input = strings.NewReader("B\n\n1\n2\no\na\nb\n.X\n")
	var out bytes.Buffer
	job.Output = &out

	c, err := NewConverter(job)
	if err != nil {
		t.Fatalf("NewConverter() error = %v", err)
	}
	if _, err := c.Convert(context.Background()); err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if out.String() != "1\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Job)
	}{
		{"same file", func(j *Job) { j.Target.Path = j.Source.Path }},
		{"objects for csv", func(j *Job) { j.Target.Objects = []string{"o"} }},
		{"data without classes", func(j *Job) { j.Target.Path = strings.TrimSuffix(j.Target.Path, ".csv") + ".data" }},
		{"data to stdout", func(j *Job) { j.Target.Path = "-"; j.Target.Format = "data"; j.Source.Classes = "a" }},
		{"unknown extension", func(j *Job) { j.Target.Path = strings.TrimSuffix(j.Target.Path, ".csv") + ".xls" }},
		{"stdin without format", func(j *Job) { j.Source.Path = "-" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := newJob(t, "in.csv", "a\n1\n", "out.csv")
			tt.modify(&job)
			_, err := NewConverter(job)
			if got := fcaerr.CodeOf(err); got != fcaerr.CodeArgument {
				t.Errorf("CodeOf(%v) = %v, want %v", err, got, fcaerr.CodeArgument)
			}
		})
	}
}

func TestBrowser(t *testing.T) {
	job := newJob(t, "in.csv", "a,b\n1,x\n2,y\n3,z\n4,w\n5,v\n", "unused.csv")
	job.Source.Attributes = "b;a"

	b, err := NewBrowser(job)
	if err != nil {
		t.Fatalf("NewBrowser() error = %v", err)
	}
	defer b.Close()
	ctx := context.Background()
	if err := b.ReadInfo(ctx); err != nil {
		t.Fatalf("ReadInfo() error = %v", err)
	}
	if diff := cmp.Diff([]string{"b", "a"}, b.Header()); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}

	var pages [][][]string
	for _, n := range []int{2, 2, 0, 3} {
		rows, err := b.Next(ctx, n)
		if err != nil {
			t.Fatalf("Next(%d) error = %v", n, err)
		}
		pages = append(pages, rows)
	}
	want := [][][]string{
		{{"x", "1"}, {"y", "2"}},
		{{"z", "3"}, {"w", "4"}},
		{{"v", "5"}},
		nil,
	}
	if diff := cmp.Diff(want, pages); diff != "" {
		t.Errorf("pages mismatch (-want +got):\n%s", diff)
	}
}

func TestExporter(t *testing.T) {
	job := newJob(t, "in.csv", "name,age\nbob,45\nann,31\nbob,?\n", "unused.csv")
	job.Source.Attributes = "name;age[n]"

	e, err := NewExporter(job)
	if err != nil {
		t.Fatalf("NewExporter() error = %v", err)
	}
	var out bytes.Buffer
	if err := e.Export(context.Background(), &out); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	want := `Relation name: in
Objects count: 3
Attributes count: 2
====================

name: name
index: 0
type: generic
    bob: 2/3 = 66.67%
    ann: 1/3 = 33.33%

name: age
index: 1
type: numeric
max: 45
min: 31
    45: 1/3 = 33.33%
    31: 1/3 = 33.33%
    ?: 1/3 = 33.33% (none value)
`
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}
