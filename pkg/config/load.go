package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds daemon configuration.
type Config struct {
	DefaultCapacity      uint32        `yaml:"default_capacity"`
	MaxChannels          int           `yaml:"max_channels"`
	MaxRecordsPerRequest int           `yaml:"max_records_per_request"`
	Port                 string        `yaml:"port"`
	LogLevel             string        `yaml:"log_level"`
	ArchiveDir           string        `yaml:"archive_dir"`
	ArchiveMaxMemoryMB   int64         `yaml:"archive_max_memory_mb"`
	DumpInterval         time.Duration `yaml:"dump_interval"`
	DumpFile             string        `yaml:"dump_file"`
	RuntimeInterval      time.Duration `yaml:"runtime_interval"`
	RecordHTTP           bool          `yaml:"record_http"`
}

// Default returns the built-in configuration. The archive is disabled.
func Default() Config {
	return Config{
		DefaultCapacity:      DefaultCapacity,
		MaxChannels:          DefaultMaxChannels,
		MaxRecordsPerRequest: DefaultMaxRecordsPerRequest,
		Port:                 DefaultPort,
		LogLevel:             DefaultLogLevel,
		ArchiveMaxMemoryMB:   DefaultMaxMemoryMB,
		DumpInterval:         DefaultDumpInterval,
		RuntimeInterval:      DefaultRuntimeInterval,
	}
}

// Load starts from Default, applies the YAML file at path if path is
// non-empty, then METRICRING_* environment variables, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, set func(int64)) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return
		}
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid value for %s%s: %q", EnvPrefix, key, v))
			return
		}
		set(parsed)
	}
	boolean := func(key string, dst *bool) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid value for %s%s: %q", EnvPrefix, key, v))
			return
		}
		*dst = parsed
	}
	duration := func(key string, dst *time.Duration) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid value for %s%s: %q", EnvPrefix, key, v))
			return
		}
		*dst = parsed
	}

	integer("DEFAULT_CAPACITY", func(v int64) {
		if v < 0 || v > int64(^uint32(0)) {
			errs = append(errs, fmt.Errorf("%sDEFAULT_CAPACITY out of range: %d", EnvPrefix, v))
			return
		}
		c.DefaultCapacity = uint32(v)
	})
	integer("MAX_CHANNELS", func(v int64) { c.MaxChannels = int(v) })
	integer("MAX_RECORDS_PER_REQUEST", func(v int64) { c.MaxRecordsPerRequest = int(v) })
	integer("ARCHIVE_MAX_MEMORY_MB", func(v int64) { c.ArchiveMaxMemoryMB = v })
	str("PORT", &c.Port)
	str("LOG_LEVEL", &c.LogLevel)
	str("ARCHIVE_DIR", &c.ArchiveDir)
	str("DUMP_FILE", &c.DumpFile)
	duration("DUMP_INTERVAL", &c.DumpInterval)
	duration("RUNTIME_INTERVAL", &c.RuntimeInterval)
	boolean("RECORD_HTTP", &c.RecordHTTP)

	return errors.Join(errs...)
}

// Validate checks ranges and the log level name
func (c Config) Validate() error {
	var errs []error
	if c.DefaultCapacity == 0 {
		errs = append(errs, errors.New("default_capacity must be at least 1"))
	}
	if c.MaxChannels < 0 {
		errs = append(errs, errors.New("max_channels cannot be negative"))
	}
	if c.MaxRecordsPerRequest <= 0 {
		errs = append(errs, errors.New("max_records_per_request must be positive"))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("port cannot be empty"))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.ArchiveDir != "" && c.DumpInterval <= 0 {
		errs = append(errs, errors.New("dump_interval must be positive when archive_dir is set"))
	}
	if c.ArchiveMaxMemoryMB < 0 {
		errs = append(errs, errors.New("archive_max_memory_mb cannot be negative"))
	}
	if c.RuntimeInterval < 0 {
		errs = append(errs, errors.New("runtime_interval cannot be negative"))
	}
	return errors.Join(errs...)
}

// Level returns the parsed log level. Call after Validate.
func (c Config) Level() zapcore.Level {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}
