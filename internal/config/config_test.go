package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "swift.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadProfile(t *testing.T) {
	path := writeProfile(t, `
source:
  path: in.csv
  attributes: "age=old[n,x>40]"
  skip_errors: true
target:
  path: out.cxt
  objects: [a, b]
bival:
  "true": "yes"
  "false": "no"
logging:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := GetDefaults()
	want.Source.Path = "in.csv"
	want.Source.Attributes = "age=old[n,x>40]"
	want.Source.SkipErrors = true
	want.Target.Path = "out.cxt"
	want.Target.Objects = []string{"a", "b"}
	want.Bival.True = "yes"
	want.Bival.False = "no"
	want.Logging.Level = "debug"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadDefaultsWithoutProfile(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)
	t.Setenv("HOME", dir)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(GetDefaults(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadEnvironment(t *testing.T) {
	path := writeProfile(t, "source:\n  path: in.csv\n")
	t.Setenv("SWIFT_SOURCE_SEPARATOR", ";")
	t.Setenv("SWIFT_SERVER_PORT", "9090")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source.Separator != ";" {
		t.Errorf("Source.Separator = %q, want %q", cfg.Source.Separator, ";")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeProfile(t, "source:\n  pth: in.csv\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"level", func(c *Config) { c.Logging.Level = "trace" }, "invalid log level"},
		{"format", func(c *Config) { c.Logging.Format = "xml" }, "invalid log format"},
		{"empty token", func(c *Config) { c.Bival.True = "" }, "must not be empty"},
		{"same tokens", func(c *Config) { c.Bival.False = c.Bival.True }, "must differ"},
		{"class separator", func(c *Config) { c.Options.ClassSeparator = "||" }, "invalid class separator"},
		{"cxt symbols", func(c *Config) { c.CXT.Dot = "" }, "invalid cxt symbols"},
		{"same cxt symbols", func(c *Config) { c.CXT.Dot = c.CXT.Cross }, "cxt symbols must differ"},
		{"browse count", func(c *Config) { c.Options.BrowseCount = -1 }, "invalid browse count"},
		{"max jobs", func(c *Config) { c.Server.MaxJobs = 0 }, "invalid max jobs"},
		{"requests per minute", func(c *Config) { c.Server.RequestsPerMin = -1 }, "invalid requests per minute"},
		{"allowed dirs", func(c *Config) { c.Server.AllowedDirs = []string{"/srv", " "} }, "invalid allowed directory"},
	}

	if err := Validate(GetDefaults()); err != nil {
		t.Fatalf("defaults are invalid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaults()
			tt.modify(cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestWatch(t *testing.T) {
	path := writeProfile(t, "logging:\n  level: info\n")
	if _, err := Load(path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	reloaded := make(chan *Config, 4)
	if err := Watch(zap.NewNop(), func(c *Config) { reloaded <- c }); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	// Give the watcher time to register before the write.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(5 * time.Second)
	for {
		select {
		case c := <-reloaded:
			if c.Logging.Level == "debug" {
				return
			}
		case <-timeout:
			t.Fatal("configuration was not reloaded")
		}
	}
}
