package manager

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/swift-fca/swift/internal/fcaerr"
	"github.com/swift-fca/swift/internal/format"
	"github.com/swift-fca/swift/internal/progress"
)

// Converter streams a source file into a target file of another format
type Converter struct {
	*pipeline
	target format.Data
}

// NewConverter creates a converter for job
func NewConverter(job Job, opts ...Option) (*Converter, error) {
	c := &Converter{pipeline: newPipeline(job, opts)}
	if err := c.detectSource(); err != nil {
		return nil, err
	}
	f, err := format.Detect(targetPath(job), job.Target.Format)
	if err != nil {
		return nil, err
	}
	c.tgtFormat = f
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func targetPath(job Job) string {
	if job.Output != nil && job.Target.Path == "" {
		return "-"
	}
	return job.Target.Path
}

func isFile(path string) bool {
	return path != "" && path != "-"
}

// validate rejects argument combinations no conversion can satisfy
func (c *Converter) validate() error {
	j := c.job
	if j.Input == nil && j.Output == nil && isFile(j.Source.Path) && isFile(j.Target.Path) {
		src, err1 := filepath.Abs(j.Source.Path)
		dst, err2 := filepath.Abs(j.Target.Path)
		if err1 == nil && err2 == nil && src == dst {
			return fcaerr.NewArgError("source and target are the same file: %s", j.Source.Path)
		}
	}

	if len(j.Target.Objects) > 0 && c.tgtFormat != format.CXT {
		return fcaerr.NewArgError("objects can only be named for %s targets, not %s", format.CXT, c.tgtFormat)
	}

	if c.tgtFormat == format.DATA {
		if !isFile(j.Target.Path) {
			return fcaerr.NewArgError("a %s target needs a file path for its names file", format.DATA)
		}
		if c.srcFormat != format.DATA && c.srcFormat != format.DTL &&
			strings.TrimSpace(j.Source.Classes) == "" && len(j.Target.Classes) == 0 {
			return fcaerr.NewArgError("a %s target needs classes when converting from %s", format.DATA, c.srcFormat)
		}
	}
	return nil
}

func (c *Converter) targetOptions() format.Options {
	opts := c.commonOptions()
	t := c.job.Target
	if t.Separator != "" {
		opts.Separator = t.Separator
	}
	if n := c.job.Source.NoneValue; n != "" {
		opts.NoneValue = n
	}
	opts.AttrsFirstLine = t.AttrsFirstLine
	opts.Objects = t.Objects
	opts.RelationName = t.RelationName
	opts.Classes = t.Classes
	return opts
}

// ReadInfo parses the source header, merges the formula and gathers the
// statistics the target needs.
func (c *Converter) ReadInfo(ctx context.Context) error {
	c.logger.Info("Reading source",
		zap.String("source", c.job.Source.Path),
		zap.String("format", string(c.srcFormat)),
		zap.String("target_format", string(c.tgtFormat)))
	return c.readInfo(ctx, false)
}

// Convert writes every data line to the target. ReadInfo runs first when
// it was not called. A stopped conversion returns a cancelled result
// and leaves the partial target in place.
func (c *Converter) Convert(ctx context.Context) (*Result, error) {
	result, err := c.convert(ctx)
	if c.o.finished != nil {
		c.o.finished(result, err)
	}
	return result, err
}

func (c *Converter) convert(ctx context.Context) (*Result, error) {
	if c.State() == StateCreated {
		if err := c.ReadInfo(ctx); err != nil {
			return c.result(0), err
		}
	}
	start := time.Now()

	var err error
	if c.job.Output != nil {
		c.target, err = format.Create(c.tgtFormat, c.job.Output, c.job.Target.Path, c.targetOptions())
	} else {
		c.target, err = format.CreateFile(c.tgtFormat, c.job.Target.Path, c.targetOptions())
	}
	if err != nil {
		return c.result(0), c.fail(err)
	}

	c.setState(StateConverting)
	if err := c.target.WriteHeader(c.src); err != nil {
		c.target.Close()
		return c.result(0), c.fail(err)
	}

	tracker := c.newTracker(c.src.ObjectCount())
	cur, err := c.rewind()
	if err != nil {
		c.target.Close()
		return c.result(0), c.fail(err)
	}

	err = c.writeLines(ctx, cur, tracker)
	if err == nil {
		err = c.target.Finish()
	}
	if cerr := c.target.Close(); err == nil {
		err = cerr
	}
	c.mu.Lock()
	c.stats.Skipped = cur.skipped
	c.mu.Unlock()

	if err != nil {
		if isCancel(err) {
			c.fail(err)
			result := c.result(time.Since(start))
			result.Cancelled = true
			return result, nil
		}
		return c.result(time.Since(start)), c.fail(err)
	}

	tracker.Done()
	c.setState(StateDone)
	c.Close()

	result := c.result(time.Since(start))
	c.logger.Info("Conversion finished",
		zap.Int("processed", result.Processed),
		zap.Int("written", result.Written),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func (c *Converter) writeLines(ctx context.Context, cur *cursor, tracker progress.Tracker) error {
	for {
		line, ok, err := c.next(ctx, cur, tracker)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		c.mu.Lock()
		c.stats.Processed++
		c.mu.Unlock()

		values, err := c.src.PrepareLine(line, cur.lineNo, true, false)
		if err == nil && values != nil {
			err = c.target.WriteLine(values)
			if err == nil {
				c.mu.Lock()
				c.stats.Written++
				c.mu.Unlock()
			}
		}
		if err != nil {
			if err := c.lineError(err, cur.lineNo, line, phaseConvert); err != nil {
				return err
			}
		}
	}
}

func (c *Converter) result(d time.Duration) *Result {
	stats := c.Stats()
	return &Result{
		State:     stats.State,
		Processed: stats.Processed,
		Written:   stats.Written,
		Skipped:   stats.Skipped,
		Failed:    stats.Failed,
		Cancelled: stats.State == StateCancelled,
		Duration:  d,
		Errors:    c.Errors(),
	}
}
