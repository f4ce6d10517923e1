// Package dnaconfig loads and validates the ingestion pipeline's static
// configuration: server/queue/worker tuning, storage location, logging,
// and metrics.
package dnaconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/inchrosil/dnapipe/internal/bytesize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for dnaserver and the offline tools.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (DNAPIPE_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Queue   QueueConfig   `mapstructure:"queue" yaml:"queue"`
	Workers WorkersConfig `mapstructure:"workers" yaml:"workers"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Profiling controls optional Pyroscope continuous profiling. It is a
	// diagnostic hint only; the pipeline's behaviour never depends on it.
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ServerConfig configures the TCP ingress listener (C7).
type ServerConfig struct {
	// Port is the TCP port to bind. Default: 9090.
	Port int `mapstructure:"port" validate:"required,min=1,max=65535" yaml:"port"`

	// RecvChunk is the number of bytes read per socket read call.
	RecvChunk bytesize.ByteSize `mapstructure:"recv_chunk" validate:"required" yaml:"recv_chunk"`

	// MaxClients is the soft cap on concurrent connections. Connections
	// beyond the cap are accepted and immediately closed (see §9).
	MaxClients int `mapstructure:"max_clients" validate:"required,gt=0" yaml:"max_clients"`

	// MaxSeqLen is the maximum accepted sequence length in nucleotides.
	// Must be at least 2^30 per the specification's floor.
	MaxSeqLen int64 `mapstructure:"max_seq_len" validate:"required,min=1073741824" yaml:"max_seq_len"`

	// ShutdownTimeout bounds how long graceful shutdown waits for
	// in-flight connections to drain before forcing them closed.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// QueueConfig configures the bounded work queue (C5).
type QueueConfig struct {
	// Capacity is the maximum number of buffered sequence records.
	Capacity int `mapstructure:"capacity" validate:"required,gt=0" yaml:"capacity"`
}

// WorkersConfig configures the worker pool (C6).
type WorkersConfig struct {
	// Count is the number of validate/checksum/encode/persist workers.
	Count int `mapstructure:"count" validate:"required,gt=0" yaml:"count"`
}

// StorageConfig configures where persisted containers are written.
type StorageConfig struct {
	// OutDir is the directory server-persisted `.ich` files are written
	// to. Overridable by the INCHROSIL_OUT_DIR environment variable,
	// which takes precedence over this field when set (see Load).
	OutDir string `mapstructure:"out_dir" validate:"required" yaml:"out_dir"`
}

// LoggingConfig controls logging behaviour.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig configures the optional Prometheus metrics HTTP surface.
// When Enabled is false, no metrics server is started (zero overhead).
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: path to config file (empty string uses default location)
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := GetDefaultConfig()
	if found {
		if err := v.Unmarshal(cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	} else {
		// Still let environment variables override defaults even without
		// a config file on disk.
		if err := v.Unmarshal(cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	ApplyDefaults(cfg)

	if outDir := os.Getenv("INCHROSIL_OUT_DIR"); outDir != "" {
		cfg.Storage.OutDir = outDir
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Watch reloads the configuration whenever the underlying YAML file
// changes on disk, via viper's fsnotify-backed file watcher. onChange
// is invoked with the freshly validated Config after each reload;
// reload failures are logged to onError rather than panicking the
// watch loop. The returned stop function is idempotent.
func Watch(configPath string, onChange func(*Config), onError func(error)) (stop func(), err error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		// Nothing on disk to watch; reload will kick in once a file
		// appears at the default location and the server is restarted.
		return func() {}, nil
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := Load(configPath)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload config: %w", err))
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()

	return func() {}, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variable and config file
// search settings.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("DNAPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{
		"server.port", "server.recv_chunk", "server.max_clients", "server.max_seq_len", "server.shutdown_timeout",
		"queue.capacity", "workers.count", "storage.out_dir",
		"logging.level", "logging.format", "logging.output",
		"metrics.enabled", "metrics.port", "profiling.enabled", "profiling.endpoint",
	} {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. Returns
// (fileFound, error).
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns the combined mapstructure decode hook for
// ByteSize and time.Duration fields.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize so
// config files can use human-readable sizes like "64Ki" or plain numbers.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings to time.Duration so config files can
// use human-readable durations like "30s".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory, honoring
// XDG_CONFIG_HOME with a fallback to ~/.config, then ".".
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dnapipe")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dnapipe")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

var structValidator = validator.New()

// Validate checks a Config against its struct tags.
func Validate(cfg *Config) error {
	return structValidator.Struct(cfg)
}
