package manager

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/swift-fca/swift/internal/attribute"
	"github.com/swift-fca/swift/internal/fcaerr"
	"github.com/swift-fca/swift/internal/format"
	"github.com/swift-fca/swift/internal/formula"
	"github.com/swift-fca/swift/internal/progress"
)

const (
	phaseScan    = "scan"
	phaseConvert = "convert"
	phaseBrowse  = "browse"
)

// scanTable tells whether converting between two formats needs the
// statistics of a full pass before the first line is written.
var scanTable = map[format.Format]map[format.Format]bool{
	format.CSV:  {format.ARFF: true, format.CXT: true, format.DATA: true},
	format.ARFF: {format.CXT: true},
	format.CXT:  {},
	format.DAT:  {format.CSV: true, format.ARFF: true, format.CXT: true, format.DAT: true, format.DTL: true, format.DATA: true},
	format.DTL:  {format.CSV: true, format.ARFF: true, format.CXT: true, format.DAT: true, format.DTL: true, format.DATA: true},
	format.DATA: {format.ARFF: true, format.CXT: true},
}

// pipeline owns the source side that converting, browsing and exporting
// share: detection, header, formula, skipped lines, the statistics pass
// and the error policy.
type pipeline struct {
	job    Job
	o      options
	logger *zap.Logger

	srcFormat format.Format
	tgtFormat format.Format
	src       format.Data
	skip      formula.Intervals
	closed    bool

	stopped atomic.Bool
	state   atomic.Int32
	tracker atomic.Pointer[progress.Tracker]

	mu      sync.Mutex
	stats   Stats
	errs    []fcaerr.ErrorRecord
	dropped map[int]bool
}

func newPipeline(job Job, opts []Option) *pipeline {
	o := buildOptions(opts)
	p := &pipeline{
		job:     job,
		o:       o,
		logger:  o.logger,
		dropped: make(map[int]bool),
	}
	p.stats.StartTime = time.Now()
	return p
}

// cursor walks the data lines of the source
type cursor struct {
	index   int
	lineNo  int
	skipped int
	eof     bool
}

// Stop asks the running phase to end after the current line
func (p *pipeline) Stop() { p.stopped.Store(true) }

// State returns the phase reached so far
func (p *pipeline) State() State { return State(p.state.Load()) }

func (p *pipeline) setState(s State) {
	p.state.Store(int32(s))
	p.mu.Lock()
	p.stats.State = s
	p.mu.Unlock()
}

// Errors returns the lines dropped while skipping errors
func (p *pipeline) Errors() []fcaerr.ErrorRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]fcaerr.ErrorRecord, len(p.errs))
	copy(out, p.errs)
	return out
}

// Stats returns a snapshot of the counters
func (p *pipeline) Stats() Stats {
	p.mu.Lock()
	stats := p.stats
	p.mu.Unlock()
	if t := p.tracker.Load(); t != nil {
		stats.Percent = (*t).Percent()
	}
	return stats
}

// Source returns the open source, nil before ReadInfo
func (p *pipeline) Source() format.Data { return p.src }

func (p *pipeline) newTracker(lines int) progress.Tracker {
	size := int64(-1)
	if p.src != nil {
		size = p.src.Source().Size()
	}
	t := progress.New(lines, size, p.o.progress)
	p.tracker.Store(&t)
	return t
}

func (p *pipeline) detectSource() error {
	path := p.job.Source.Path
	if p.job.Input != nil && path == "" {
		path = "-"
	}
	f, err := format.Detect(path, p.job.Source.Format)
	if err != nil {
		return err
	}
	p.srcFormat = f
	return nil
}

func (p *pipeline) sourceOptions() format.Options {
	opts := p.commonOptions()
	if s := p.job.Source.Separator; s != "" {
		opts.Separator = s
	}
	if n := p.job.Source.NoneValue; n != "" {
		opts.NoneValue = n
	}
	opts.AttrsFirstLine = p.job.Source.AttrsFirstLine
	return opts
}

func (p *pipeline) commonOptions() format.Options {
	opts := format.DefaultOptions()
	if s := p.job.Options.ClassSeparator; s != "" {
		opts.ClassSeparator = s
	}
	if c := p.job.CXT.Cross; c != "" {
		opts.Cross = c
	}
	if d := p.job.CXT.Dot; d != "" {
		opts.Dot = d
	}
	if p.job.Bival != (attribute.Bival{}) {
		opts.Bival = p.job.Bival
	}
	return opts
}

// readHeader opens the source, parses its header and resolves the formula
func (p *pipeline) readHeader(ctx context.Context) error {
	var (
		src *format.Source
		err error
	)
	if p.job.Input != nil {
		name := p.job.Source.Path
		if name == "" || name == "-" {
			name = "<stdin>"
		}
		src = format.NewSource(p.job.Input, name)
	} else if src, err = format.OpenSource(p.job.Source.Path); err != nil {
		return err
	}

	data, err := format.Open(p.srcFormat, src, p.sourceOptions())
	if err != nil {
		src.Close()
		return err
	}
	p.src = data

	tracker := p.newTracker(-1)
	hooks := format.Hooks{Stop: p.stopped.Load, Line: tracker.Update}
	if err := data.ReadHeader(ctx, hooks); err != nil {
		return err
	}
	if err := data.ResolveAttributes(p.job.Source.Attributes, p.job.Source.Classes); err != nil {
		return err
	}
	if p.skip, err = formula.ParseIntervals(p.job.Source.SkippedLines); err != nil {
		return err
	}

	if p.tgtFormat.Bivalent() && p.job.Source.Attributes == "" {
		p.markUnpack()
	}

	p.setState(StateHeaderRead)
	p.logger.Debug("Header read",
		zap.String("format", string(p.srcFormat)),
		zap.String("relation", data.RelationName()),
		zap.Int("attributes", len(data.Attributes())),
		zap.Int("data_start", data.DataStart()))
	return nil
}

// markUnpack unpacks nominal attributes whose values are not already the
// bivalent pair, so that a bivalent target receives one column per value.
func (p *pipeline) markUnpack() {
	for _, a := range p.src.Attributes() {
		if a.IsClass || a.Kind != attribute.Nominal {
			continue
		}
		if a.Bival(p.commonOptions().Bival).IsPair(a.Values()) {
			continue
		}
		a.Unpack = true
	}
}

func (p *pipeline) hasUnpack() bool {
	for _, a := range p.src.Attributes() {
		if a.Unpack {
			return true
		}
	}
	return false
}

// needsScan decides whether statistics must be gathered before converting
func (p *pipeline) needsScan() bool {
	if !p.skip.Empty() || p.hasUnpack() {
		return true
	}
	if p.src.StatsKnown() {
		return p.job.Source.Attributes != "" && p.hasUnbacked()
	}
	if p.tgtFormat == "" {
		return false
	}
	return scanTable[p.srcFormat][p.tgtFormat]
}

// hasUnbacked reports typed formula attributes without statistics
func (p *pipeline) hasUnbacked() bool {
	for _, a := range p.src.Attributes() {
		if a.Kind == attribute.Generic || a.HasScale() {
			continue
		}
		_, _, seeded := a.Bounds()
		if len(a.Values()) == 0 && a.NoneCount() == 0 && seeded == 0 {
			return true
		}
	}
	return false
}

// readInfo reads the header and runs the statistics pass when needed
func (p *pipeline) readInfo(ctx context.Context, forceScan bool) error {
	if err := p.readHeader(ctx); err != nil {
		return p.fail(err)
	}
	if p.needsScan() || (forceScan && !p.src.StatsKnown()) {
		if err := p.scan(ctx); err != nil {
			return p.fail(err)
		}
	}
	return nil
}

// scan updates the statistics of every attribute and counts the objects
func (p *pipeline) scan(ctx context.Context) error {
	if p.src.StatsKnown() {
		for _, a := range p.src.Attributes() {
			a.ResetStats()
		}
	}

	// The object count in a bivalent target's header excludes rows the
	// target would reject.
	checkBival := p.tgtFormat.Bivalent() && !p.hasUnpack()

	tracker := p.newTracker(-1)
	cur, err := p.rewind()
	if err != nil {
		return err
	}
	count := 0
	for {
		line, ok, err := p.next(ctx, cur, tracker)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		values, err := p.src.PrepareLine(line, cur.lineNo, false, true)
		if err == nil && values != nil && checkBival {
			err = p.checkBivalent(line, cur.lineNo)
		}
		if err != nil {
			if err := p.lineError(err, cur.lineNo, line, phaseScan); err != nil {
				return err
			}
			continue
		}
		if values != nil {
			count++
		}
	}
	tracker.Done()

	p.src.SetObjectCount(count)
	if p.hasUnpack() {
		p.src.UnpackAttributes()
	}
	p.setState(StateStatsScanned)
	p.logger.Debug("Statistics scanned", zap.Int("objects", count), zap.Int("skipped", cur.skipped))
	return nil
}

// checkBivalent scales line and rejects values that are not tokens
func (p *pipeline) checkBivalent(line string, lineNo int) error {
	values, err := p.src.PrepareLine(line, lineNo, true, false)
	if err != nil || values == nil {
		return err
	}
	tokens := p.commonOptions().Bival
	for i, a := range p.src.Attributes() {
		if a.IsClass {
			continue
		}
		if _, err := a.Bival(tokens).Parse(values[i]); err != nil {
			return &fcaerr.AttrError{
				Line: lineNo, Text: line, Attr: i + 1, Name: a.Name,
				Format: string(p.tgtFormat), Err: err,
			}
		}
	}
	return nil
}

// rewind positions a new cursor on the first data line
func (p *pipeline) rewind() (*cursor, error) {
	src := p.src.Source()
	if err := src.Rewind(); err != nil {
		return nil, err
	}
	cur := &cursor{}
	for cur.lineNo < p.src.DataStart() {
		if _, err := src.ReadLine(); err != nil {
			if errors.Is(err, io.EOF) {
				cur.eof = true
				return cur, nil
			}
			return nil, err
		}
		cur.lineNo++
	}
	return cur, nil
}

// next returns the next data line that is not skipped. It checks the stop
// flag and the context once per line.
func (p *pipeline) next(ctx context.Context, cur *cursor, tracker progress.Tracker) (string, bool, error) {
	src := p.src.Source()
	for !cur.eof {
		if p.stopped.Load() {
			return "", false, fcaerr.ErrCancelled
		}
		if err := ctx.Err(); err != nil {
			return "", false, err
		}

		line, err := src.ReadLine()
		if errors.Is(err, io.EOF) {
			cur.eof = true
			break
		}
		if err != nil {
			return "", false, err
		}
		i := cur.index
		cur.index++
		cur.lineNo++
		tracker.Update(line)

		if p.skip.Stop(i) {
			cur.eof = true
			break
		}
		if p.skip.Skip(i) {
			cur.skipped++
			continue
		}
		if p.isDropped(cur.lineNo) {
			continue
		}
		return line, true, nil
	}
	return "", false, nil
}

func (p *pipeline) isDropped(lineNo int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped[lineNo]
}

// lineError records err and returns nil when errors are skipped and err
// concerns only this line.
func (p *pipeline) lineError(err error, lineNo int, line, phase string) error {
	if !p.job.Source.SkipErrors || !fcaerr.IsLineLevel(err) {
		return err
	}
	record := fcaerr.NewErrorRecord(err, lineNo, line).WithPhase(phase)

	p.mu.Lock()
	p.errs = append(p.errs, record)
	p.dropped[lineNo] = true
	p.stats.Failed++
	p.mu.Unlock()

	p.logger.Warn("Dropped line", zap.String("phase", phase), zap.Int("line", lineNo), zap.Error(err))
	return nil
}

func (p *pipeline) fail(err error) error {
	if isCancel(err) {
		p.setState(StateCancelled)
		p.logger.Info("Operation cancelled", zap.String("state", p.State().String()))
	} else {
		p.setState(StateFailed)
	}
	p.Close()
	return err
}

// Close releases the source
func (p *pipeline) Close() error {
	if p.src == nil || p.closed {
		return nil
	}
	p.closed = true
	return p.src.Close()
}

func isCancel(err error) bool {
	return errors.Is(err, fcaerr.ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
