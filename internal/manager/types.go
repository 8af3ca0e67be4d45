package manager

import (
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/swift-fca/swift/internal/attribute"
	"github.com/swift-fca/swift/internal/config"
	"github.com/swift-fca/swift/internal/fcaerr"
	"github.com/swift-fca/swift/internal/progress"
)

// State is the phase an operation has reached
type State int32

const (
	StateCreated State = iota
	StateHeaderRead
	StateStatsScanned
	StateConverting
	StateDone
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateHeaderRead:
		return "header_read"
	case StateStatsScanned:
		return "stats_scanned"
	case StateConverting:
		return "converting"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

// MarshalText renders the state name in JSON
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Job is everything one operation needs to know
type Job struct {
	Source  config.SourceConfig  `json:"source"`
	Target  config.TargetConfig  `json:"target"`
	Options config.OptionsConfig `json:"options"`
	Bival   attribute.Bival      `json:"bival"`
	CXT     config.CXTConfig     `json:"cxt"`

	// Input is read instead of Source.Path when set
	Input io.Reader `json:"-"`
	// Output is written instead of Target.Path when set; Target.Path
	// still locates sidecar files.
	Output io.Writer `json:"-"`
}

// JobFromConfig copies the conversion sections of a profile
func JobFromConfig(cfg *config.Config) Job {
	return Job{
		Source:  cfg.Source,
		Target:  cfg.Target,
		Options: cfg.Options,
		Bival:   cfg.Bival,
		CXT:     cfg.CXT,
	}
}

// Result summarizes a finished conversion
type Result struct {
	State     State                `json:"state"`
	Processed int                  `json:"processed"`
	Written   int                  `json:"written"`
	Skipped   int                  `json:"skipped"`
	Failed    int                  `json:"failed"`
	Cancelled bool                 `json:"cancelled"`
	Duration  time.Duration        `json:"duration"`
	Errors    []fcaerr.ErrorRecord `json:"errors,omitempty"`
}

// Stats is a snapshot of a running operation
type Stats struct {
	State     State     `json:"state"`
	Percent   int       `json:"percent"`
	Processed int       `json:"processed"`
	Written   int       `json:"written"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	StartTime time.Time `json:"start_time"`
}

// Option configures an operation
type Option func(*options)

type options struct {
	logger   *zap.Logger
	progress progress.Func
	finished func(*Result, error)
}

// WithLogger sets the logger, zap.NewNop() by default
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithProgress registers a callback receiving the percentage done
func WithProgress(fn func(percent int)) Option {
	return func(o *options) { o.progress = fn }
}

// WithFinished registers a callback run once Convert returns
func WithFinished(fn func(*Result, error)) Option {
	return func(o *options) { o.finished = fn }
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
