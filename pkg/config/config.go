// Package config loads the photoloader daemon configuration from file,
// environment and defaults.
//
// Configuration sources, highest precedence first:
//  1. Environment variables (PHOTOLOADER_*)
//  2. Configuration file (YAML)
//  3. Default values
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/photoloader/internal/bytesize"
)

// Config is the daemon configuration.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics controls the Prometheus metrics endpoint.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// HTTP configures the daemon's HTTP surface (health, stats, metrics).
	HTTP HTTPConfig `mapstructure:"http" yaml:"http"`

	// Cache holds the photo cache budgets and admission tunables.
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Preload holds the background preloading tunables.
	Preload PreloadConfig `mapstructure:"preload" yaml:"preload"`

	// PhotoDir is the directory served by the built-in directory photo
	// source.
	PhotoDir string `mapstructure:"photo_dir" yaml:"photo_dir"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN or ERROR.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format is the output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is where logs go: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig controls Prometheus metrics collection.
type MetricsConfig struct {
	// Enabled turns metrics collection on. Off by default.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// HTTPConfig configures the daemon HTTP listener.
type HTTPConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `mapstructure:"addr" validate:"required" yaml:"addr"`

	// ReadTimeout and WriteTimeout bound request handling.
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// CacheConfig holds the photo cache tunables. Budgets accept human-readable
// sizes ("2MB", "1Mi"). The configured budgets apply on high-memory hosts
// and are halved on low-memory ones.
type CacheConfig struct {
	// HolderBudget is the raw-bytes cache budget.
	HolderBudget bytesize.ByteSize `mapstructure:"holder_budget" yaml:"holder_budget"`

	// DecodedBudget is the decoded-image cache budget.
	DecodedBudget bytesize.ByteSize `mapstructure:"decoded_budget" yaml:"decoded_budget"`

	// CapacityDivisor caps single decoded images at
	// decoded_budget/divisor.
	CapacityDivisor int `mapstructure:"capacity_divisor" validate:"omitempty,gte=1" yaml:"capacity_divisor"`

	// RedZoneFraction is the holder occupancy fraction above which
	// preloading stops. Must be in (0, 1].
	RedZoneFraction float64 `mapstructure:"red_zone_fraction" validate:"omitempty,gt=0,lte=1" yaml:"red_zone_fraction"`
}

// PreloadConfig holds background preloading tunables.
type PreloadConfig struct {
	// BatchSize is the number of photos fetched per preload cycle.
	BatchSize int `mapstructure:"batch_size" validate:"omitempty,gte=1" yaml:"batch_size"`

	// Delay is the pause between preload cycles.
	Delay time.Duration `mapstructure:"delay" yaml:"delay"`
}

// Load loads configuration from file, environment, and defaults.
// An empty configPath falls back to defaults plus environment overrides.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found && configPath != "" {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// setupViper configures environment variables and the config file location.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("PHOTOLOADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultConfigDir())
	}
}

// readConfigFile reads the config file if it exists. A missing file is not
// an error; it just means defaults apply.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// decodeHooks returns the mapstructure hooks for the custom config types.
func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
}

// byteSizeDecodeHook decodes strings and numbers into bytesize.ByteSize.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch from.Kind() {
		case reflect.String:
			return bytesize.Parse(data.(string))
		case reflect.Int, reflect.Int64:
			return bytesize.ByteSize(reflect.ValueOf(data).Int()), nil
		case reflect.Uint, reflect.Uint64:
			return bytesize.ByteSize(reflect.ValueOf(data).Uint()), nil
		default:
			return data, nil
		}
	}
}

// Validate checks the configuration against its struct tags.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// SaveConfig writes the configuration as YAML to path, creating parent
// directories as needed.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "photoloader")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "photoloader")
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}
