package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	mu     sync.Mutex
	loaded *viper.Viper
)

// Load loads a profile from file and environment variables. An empty
// configPath searches swift.yaml in the usual places; a missing profile
// leaves the defaults in place.
func Load(configPath string) (*Config, error) {
	config := GetDefaults()

	v := viper.New()
	v.SetConfigName("swift")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("$HOME/.swift/")

	v.SetEnvPrefix("SWIFT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range settingKeys(reflect.TypeOf(Config{}), "") {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.UnmarshalExact(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	mu.Lock()
	loaded = v
	mu.Unlock()
	return config, nil
}

// settingKeys lists the dotted mapstructure key of every leaf setting
func settingKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := strings.Split(f.Tag.Get("mapstructure"), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		key := prefix + name
		if f.Type.Kind() == reflect.Struct && f.Type.String() != "time.Time" {
			keys = append(keys, settingKeys(f.Type, key+".")...)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	if config.Bival.True == "" || config.Bival.False == "" {
		return fmt.Errorf("bivalent tokens must not be empty")
	}
	if config.Bival.True == config.Bival.False {
		return fmt.Errorf("bivalent tokens must differ: %q", config.Bival.True)
	}

	if utf8.RuneCountInString(config.Options.ClassSeparator) != 1 {
		return fmt.Errorf("invalid class separator: %q (must be a single character)", config.Options.ClassSeparator)
	}
	if utf8.RuneCountInString(config.CXT.Cross) != 1 || utf8.RuneCountInString(config.CXT.Dot) != 1 {
		return fmt.Errorf("invalid cxt symbols: %q, %q (must be single characters)", config.CXT.Cross, config.CXT.Dot)
	}
	if config.CXT.Cross == config.CXT.Dot {
		return fmt.Errorf("cxt symbols must differ: %q", config.CXT.Cross)
	}

	if config.Options.BrowseCount < 0 {
		return fmt.Errorf("invalid browse count: %d", config.Options.BrowseCount)
	}

	if config.Server.MaxJobs <= 0 {
		return fmt.Errorf("invalid max jobs: %d", config.Server.MaxJobs)
	}

	if config.Server.RequestsPerMin < 0 {
		return fmt.Errorf("invalid requests per minute: %d", config.Server.RequestsPerMin)
	}
	for _, dir := range config.Server.AllowedDirs {
		if strings.TrimSpace(dir) == "" {
			return errors.New("invalid allowed directory: empty path")
		}
	}

	return nil
}

// Validate checks a configuration assembled outside of Load
func Validate(config *Config) error {
	return validateConfig(config)
}

// Watch reloads the profile read by the last Load whenever its file
// changes. Invalid profiles are logged and ignored.
func Watch(log *zap.Logger, callback func(*Config)) error {
	mu.Lock()
	v := loaded
	mu.Unlock()
	if v == nil || v.ConfigFileUsed() == "" {
		return fmt.Errorf("no configuration file to watch")
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		newConfig := GetDefaults()
		if err := v.UnmarshalExact(newConfig); err != nil {
			log.Warn("Ignoring unreadable configuration", zap.String("file", e.Name), zap.Error(err))
			return
		}

		if err := validateConfig(newConfig); err != nil {
			log.Warn("Ignoring invalid configuration", zap.String("file", e.Name), zap.Error(err))
			return
		}

		log.Info("Configuration reloaded", zap.String("file", e.Name))
		callback(newConfig)
	})
	v.WatchConfig()

	return nil
}
