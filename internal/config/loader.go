package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// configName is the settings file name without extension.
const configName = ".scrutinizer-settings"

// configType is the settings file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for scrutinizer settings.
const envPrefix = "SCRUTINIZER"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// dotEnvFile is loaded into the environment before settings are read.
const dotEnvFile = ".env"

// Defaults.
const (
	DefaultWorkers        = 0
	DefaultTimeout        = 10 * time.Minute
	DefaultCacheBackend   = BackendFilesystem
	DefaultMemoryEntries  = 1024
	DefaultMaxEntrySize   = "8MB"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultAdvisoryURL    = "https://api.osv.dev/v1/querybatch"
	DefaultAdvisoryTries  = 4
	DefaultAdvisoryDelay  = 500 * time.Millisecond
	defaultCacheDirectory = "scrutinizer"
)

// LoadConfig loads settings from the .env file, the settings file, env vars
// and defaults. If configPath is non-empty, it is used as the explicit
// settings file path. Otherwise the file is searched in CWD and $HOME.
// Missing .env and settings files are not errors.
func LoadConfig(configPath string) (*Config, error) {
	envErr := godotenv.Load(dotEnvFile)
	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", dotEnvFile, envErr)
	}

	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("runner.workers", DefaultWorkers)
	viperCfg.SetDefault("runner.fail_fast", false)
	viperCfg.SetDefault("runner.default_timeout", DefaultTimeout)
	viperCfg.SetDefault("runner.default_idle_timeout", time.Duration(0))

	viperCfg.SetDefault("cache.enabled", true)
	viperCfg.SetDefault("cache.backend", DefaultCacheBackend)
	viperCfg.SetDefault("cache.directory", defaultCacheDir())
	viperCfg.SetDefault("cache.memory_entries", DefaultMemoryEntries)
	viperCfg.SetDefault("cache.max_entry_size", DefaultMaxEntrySize)
	viperCfg.SetDefault("cache.s3_endpoint", "")
	viperCfg.SetDefault("cache.s3_bucket", "")
	viperCfg.SetDefault("cache.s3_region", "")
	viperCfg.SetDefault("cache.s3_prefix", "")
	viperCfg.SetDefault("cache.s3_access_key", "")
	viperCfg.SetDefault("cache.s3_secret_key", "")
	viperCfg.SetDefault("cache.s3_use_ssl", true)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("observability.otlp_endpoint", "")
	viperCfg.SetDefault("observability.otlp_insecure", false)
	viperCfg.SetDefault("observability.metrics_file", "")

	viperCfg.SetDefault("advisories.endpoint", DefaultAdvisoryURL)
	viperCfg.SetDefault("advisories.max_attempts", DefaultAdvisoryTries)
	viperCfg.SetDefault("advisories.base_delay", DefaultAdvisoryDelay)
}

// defaultCacheDir honours XDG_CACHE_HOME and falls back to the temp dir when
// no cache home can be determined.
func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}

	return filepath.Join(base, defaultCacheDirectory)
}
