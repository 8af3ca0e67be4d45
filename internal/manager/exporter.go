package manager

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Exporter writes a statistics report of a source
type Exporter struct {
	*pipeline
}

// NewExporter creates an exporter for the source of job
func NewExporter(job Job, opts ...Option) (*Exporter, error) {
	e := &Exporter{pipeline: newPipeline(job, opts)}
	if err := e.detectSource(); err != nil {
		return nil, err
	}
	return e, nil
}

// ReadInfo reads the header and always gathers full statistics
func (e *Exporter) ReadInfo(ctx context.Context) error {
	return e.readInfo(ctx, true)
}

// Export writes the report to w and releases the source
func (e *Exporter) Export(ctx context.Context, w io.Writer) error {
	if e.State() == StateCreated {
		if err := e.ReadInfo(ctx); err != nil {
			return err
		}
	}
	defer e.Close()

	if _, err := io.WriteString(w, e.Report()); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	e.setState(StateDone)
	return nil
}

// Report renders relation, counts and per attribute statistics
func (e *Exporter) Report() string {
	src := e.src
	none := e.sourceOptions().NoneValue

	var sb strings.Builder
	fmt.Fprintf(&sb, "Relation name: %s\n", src.RelationName())
	fmt.Fprintf(&sb, "Objects count: %d\n", max(src.ObjectCount(), 0))
	fmt.Fprintf(&sb, "Attributes count: %d\n", len(src.Attributes()))
	sb.WriteString(strings.Repeat("=", 20))
	sb.WriteByte('\n')

	for _, a := range src.Attributes() {
		sb.WriteByte('\n')
		sb.WriteString("name: " + a.Name + "\n")
		sb.WriteString("index: " + strconv.Itoa(a.Index) + "\n")
		sb.WriteString("type: " + a.Kind.String() + "\n")
		for _, line := range a.Report(none) {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}

	if errs := e.Errors(); len(errs) > 0 {
		fmt.Fprintf(&sb, "\nDropped lines: %d\n", len(errs))
		for _, r := range errs {
			sb.WriteString(r.String())
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
