package manager

import (
	"context"

	"github.com/swift-fca/swift/internal/fcaerr"
)

// Browser pages through the tokenized, unscaled rows of a source
type Browser struct {
	*pipeline
	cur *cursor
}

// NewBrowser creates a browser for the source of job
func NewBrowser(job Job, opts ...Option) (*Browser, error) {
	b := &Browser{pipeline: newPipeline(job, opts)}
	if err := b.detectSource(); err != nil {
		return nil, err
	}
	return b, nil
}

// ReadInfo parses the source header and merges the formula
func (b *Browser) ReadInfo(ctx context.Context) error {
	return b.readInfo(ctx, false)
}

// Header returns the names of the resolved attributes
func (b *Browser) Header() []string {
	if b.src == nil {
		return nil
	}
	attrs := b.src.Attributes()
	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = a.Name
	}
	return names
}

// Next returns up to count rows, every remaining row when count <= 0.
// Each call continues where the previous one stopped; an empty result
// means the source is exhausted.
func (b *Browser) Next(ctx context.Context, count int) ([][]string, error) {
	if b.State() == StateCreated {
		if err := b.ReadInfo(ctx); err != nil {
			return nil, err
		}
	}
	if b.closed {
		return nil, nil
	}
	if b.cur == nil {
		cur, err := b.rewind()
		if err != nil {
			return nil, b.fail(err)
		}
		b.cur = cur
	}

	tracker := b.newTracker(b.src.ObjectCount())
	var rows [][]string
	for count <= 0 || len(rows) < count {
		line, ok, err := b.next(ctx, b.cur, tracker)
		if err != nil {
			if isCancel(err) {
				return rows, fcaerr.ErrCancelled
			}
			return rows, b.fail(err)
		}
		if !ok {
			break
		}
		values, err := b.src.PrepareLine(line, b.cur.lineNo, false, false)
		if err != nil {
			if err := b.lineError(err, b.cur.lineNo, line, phaseBrowse); err != nil {
				return rows, err
			}
			continue
		}
		if values != nil {
			rows = append(rows, values)
		}
	}
	return rows, nil
}
