package logger

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/swift-fca/swift/internal/config"
)

// Logger is a zap logger scoped with swift's context fields
type Logger struct {
	*zap.Logger
}

// Config selects level, encoding and destinations
type Config struct {
	Level  string
	Format string // json or console
	// FilePath adds a JSON file destination when set
	FilePath string
	// Output defaults to standard error, leaving standard output to
	// converted data and reports.
	Output io.Writer
}

// FromConfig builds a logger from the logging section of a profile
func FromConfig(cfg config.LoggingConfig, out io.Writer) (*Logger, error) {
	c := Config{Level: cfg.Level, Format: cfg.Format, Output: out}
	if cfg.File.Enabled {
		c.FilePath = cfg.File.Path
	}
	return New(c)
}

// New tees a console or JSON core on Output with an optional file core
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	cores := []zapcore.Core{zapcore.NewCore(newEncoder(cfg.Format), zapcore.AddSync(out), level)}

	if cfg.FilePath != "" {
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(newEncoder("json"), zapcore.AddSync(f), level))
	}

	return &Logger{Logger: zap.New(
		zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)}, nil
}

func newEncoder(format string) zapcore.Encoder {
	if format == "console" {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewJSONEncoder(ec)
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

func (l *Logger) with(key, value string) *Logger {
	return &Logger{Logger: l.Logger.With(zap.String(key, value))}
}

// WithRequestID scopes the logger to one HTTP request
func (l *Logger) WithRequestID(requestID string) *Logger { return l.with("request_id", requestID) }

// WithComponent scopes the logger to a package
func (l *Logger) WithComponent(component string) *Logger { return l.with("component", component) }

// WithJob scopes the logger to one conversion job
func (l *Logger) WithJob(jobID string) *Logger { return l.with("job_id", jobID) }
