package config

import (
	"errors"
	"fmt"
	"time"

	"fortio.org/safecast"
	"github.com/dustin/go-humanize"
)

// Config is the top-level configuration of the scrutinizer binary.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Runner        RunnerConfig        `mapstructure:"runner"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Advisories    AdvisoriesConfig    `mapstructure:"advisories"`
}

// RunnerConfig holds orchestration knobs.
type RunnerConfig struct {
	Workers            int           `mapstructure:"workers"`
	FailFast           bool          `mapstructure:"fail_fast"`
	DefaultTimeout     time.Duration `mapstructure:"default_timeout"`
	DefaultIdleTimeout time.Duration `mapstructure:"default_idle_timeout"`
}

// CacheConfig selects and tunes the result cache.
type CacheConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Backend       string `mapstructure:"backend"`
	Directory     string `mapstructure:"directory"`
	MemoryEntries int    `mapstructure:"memory_entries"`
	MaxEntrySize  string `mapstructure:"max_entry_size"`

	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3Bucket    string `mapstructure:"s3_bucket"`
	S3Region    string `mapstructure:"s3_region"`
	S3Prefix    string `mapstructure:"s3_prefix"`
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`
	S3UseSSL    bool   `mapstructure:"s3_use_ssl"`
}

// LoggingConfig holds log level and format.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ObservabilityConfig holds telemetry export settings.
type ObservabilityConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	MetricsFile  string `mapstructure:"metrics_file"`
}

// AdvisoriesConfig tunes the security advisory lookups.
type AdvisoriesConfig struct {
	Endpoint    string        `mapstructure:"endpoint"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
}

// Cache backends.
const (
	BackendFilesystem = "filesystem"
	BackendS3         = "s3"
	BackendMemory     = "memory"
)

// Sentinel errors for configuration validation.
var (
	// ErrInvalidWorkers indicates the workers value is negative.
	ErrInvalidWorkers = errors.New("runner.workers must be non-negative")
	// ErrInvalidTimeout indicates a negative default timeout.
	ErrInvalidTimeout = errors.New("runner timeouts must be non-negative")
	// ErrInvalidBackend indicates an unknown cache backend.
	ErrInvalidBackend = errors.New("cache.backend must be filesystem, s3 or memory")
	// ErrInvalidMemoryEntries indicates a negative memory layer size.
	ErrInvalidMemoryEntries = errors.New("cache.memory_entries must be non-negative")
	// ErrInvalidMaxEntrySize indicates an unparsable size string.
	ErrInvalidMaxEntrySize = errors.New("cache.max_entry_size must be a size such as 8MB")
	// ErrInvalidLogFormat indicates an unknown log format.
	ErrInvalidLogFormat = errors.New("logging.format must be text or json")
	// ErrInvalidMaxAttempts indicates a non-positive attempt count.
	ErrInvalidMaxAttempts = errors.New("advisories.max_attempts must be positive")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if c.Runner.Workers < 0 {
		return ErrInvalidWorkers
	}

	if c.Runner.DefaultTimeout < 0 || c.Runner.DefaultIdleTimeout < 0 {
		return ErrInvalidTimeout
	}

	cacheErr := c.validateCache()
	if cacheErr != nil {
		return cacheErr
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return ErrInvalidLogFormat
	}

	if c.Advisories.MaxAttempts < 0 {
		return ErrInvalidMaxAttempts
	}

	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case "", BackendFilesystem, BackendS3, BackendMemory:
	default:
		return ErrInvalidBackend
	}

	if c.Cache.MemoryEntries < 0 {
		return ErrInvalidMemoryEntries
	}

	_, err := c.Cache.MaxEntryBytes()

	return err
}

// MaxEntryBytes parses MaxEntrySize. An empty size means unlimited (0).
func (c CacheConfig) MaxEntryBytes() (int, error) {
	if c.MaxEntrySize == "" {
		return 0, nil
	}

	n, err := humanize.ParseBytes(c.MaxEntrySize)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidMaxEntrySize, err)
	}

	size, err := safecast.Conv[int](n)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidMaxEntrySize, err)
	}

	return size, nil
}
