package config

import (
	"time"

	"github.com/swift-fca/swift/internal/attribute"
)

// Config represents a conversion profile
type Config struct {
	Source    SourceConfig    `yaml:"source" mapstructure:"source" json:"source"`
	Target    TargetConfig    `yaml:"target" mapstructure:"target" json:"target"`
	Options   OptionsConfig   `yaml:"options" mapstructure:"options" json:"options"`
	Bival     attribute.Bival `yaml:"bival" mapstructure:"bival" json:"bival"`
	CXT       CXTConfig       `yaml:"cxt" mapstructure:"cxt" json:"cxt"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging" json:"-"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server" json:"-"`
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket" json:"-"`
}

// SourceConfig describes the file being read
type SourceConfig struct {
	Path           string `yaml:"path" mapstructure:"path" json:"path"`
	Format         string `yaml:"format" mapstructure:"format" json:"format,omitempty"`
	Separator      string `yaml:"separator" mapstructure:"separator" json:"separator,omitempty"`
	Attributes     string `yaml:"attributes" mapstructure:"attributes" json:"attributes,omitempty"` // formula
	AttrsFirstLine bool   `yaml:"attrs_first_line" mapstructure:"attrs_first_line" json:"attrs_first_line"`
	NoneValue      string `yaml:"none_value" mapstructure:"none_value" json:"none_value,omitempty"`
	Classes        string `yaml:"classes" mapstructure:"classes" json:"classes,omitempty"`
	SkippedLines   string `yaml:"skipped_lines" mapstructure:"skipped_lines" json:"skipped_lines,omitempty"`
	SkipErrors     bool   `yaml:"skip_errors" mapstructure:"skip_errors" json:"skip_errors"`
}

// TargetConfig describes the file being written
type TargetConfig struct {
	Path           string   `yaml:"path" mapstructure:"path" json:"path"`
	Format         string   `yaml:"format" mapstructure:"format" json:"format,omitempty"`
	Separator      string   `yaml:"separator" mapstructure:"separator" json:"separator,omitempty"`
	Objects        []string `yaml:"objects" mapstructure:"objects" json:"objects,omitempty"` // cxt only
	RelationName   string   `yaml:"relation_name" mapstructure:"relation_name" json:"relation_name,omitempty"`
	Classes        []string `yaml:"classes" mapstructure:"classes" json:"classes,omitempty"`
	AttrsFirstLine bool     `yaml:"attrs_first_line" mapstructure:"attrs_first_line" json:"attrs_first_line"`
}

// OptionsConfig holds settings shared by sources and targets
type OptionsConfig struct {
	ClassSeparator string `yaml:"class_separator" mapstructure:"class_separator" json:"class_separator,omitempty"`
	BrowseCount    int    `yaml:"browse_count" mapstructure:"browse_count" json:"browse_count"` // 0 browses everything
}

// CXTConfig holds the cell symbols of Burmeister contexts
type CXTConfig struct {
	Cross string `yaml:"cross" mapstructure:"cross" json:"cross,omitempty"`
	Dot   string `yaml:"dot" mapstructure:"dot" json:"dot,omitempty"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// ServerConfig contains the daemon's HTTP settings
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	MaxJobs      int           `yaml:"max_jobs" mapstructure:"max_jobs"`
	// ProgressRate limits job_progress events per job and second
	ProgressRate float64 `yaml:"progress_rate" mapstructure:"progress_rate"`
	// RequestsPerMin limits API requests per client IP, 0 disables
	RequestsPerMin int `yaml:"requests_per_min" mapstructure:"requests_per_min"`
	// AllowedDirs confines the paths API jobs may read and write, empty
	// allows any path
	AllowedDirs []string `yaml:"allowed_dirs" mapstructure:"allowed_dirs"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	Path            string        `yaml:"path" mapstructure:"path"`
	MaxConnections  int           `yaml:"max_connections" mapstructure:"max_connections"`
	ReadBufferSize  int           `yaml:"read_buffer_size" mapstructure:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size" mapstructure:"write_buffer_size"`
	PingInterval    time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`
	PongTimeout     time.Duration `yaml:"pong_timeout" mapstructure:"pong_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	MaxMessageSize  int64         `yaml:"max_message_size" mapstructure:"max_message_size"`
	AllowedOrigins  []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Source: SourceConfig{
			Separator:      ",",
			AttrsFirstLine: true,
			NoneValue:      "?",
		},
		Target: TargetConfig{
			Separator:      ",",
			AttrsFirstLine: true,
		},
		Options: OptionsConfig{
			ClassSeparator: "|",
			BrowseCount:    20,
		},
		Bival: attribute.DefaultBival,
		CXT: CXTConfig{
			Cross: "X",
			Dot:   ".",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Server: ServerConfig{
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxJobs:        8,
			ProgressRate:   4,
			RequestsPerMin: 600,
		},
		WebSocket: WebSocketConfig{
			Enabled:         true,
			Path:            "/ws",
			MaxConnections:  100,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingInterval:    54 * time.Second,
			PongTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Second,
			MaxMessageSize:  512,
			AllowedOrigins:  []string{"*"},
		},
	}
	cfg.Logging.File.Path = "logs/swift.log"
	return cfg
}
