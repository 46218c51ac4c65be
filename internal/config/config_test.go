package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/scrutinizer/internal/config"
)

func validConfig() config.Config {
	return config.Config{
		Runner: config.RunnerConfig{
			Workers:        4,
			DefaultTimeout: time.Minute,
		},
		Cache: config.CacheConfig{
			Enabled:       true,
			Backend:       config.BackendFilesystem,
			MemoryEntries: 16,
			MaxEntrySize:  "1MB",
		},
		Logging:    config.LoggingConfig{Level: "info", Format: "json"},
		Advisories: config.AdvisoriesConfig{MaxAttempts: 2},
	}
}

func TestValidate_ValidConfig_NoError(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidate_ZeroConfig_NoError(t *testing.T) {
	t.Parallel()

	cfg := config.Config{}
	require.NoError(t, cfg.Validate())
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   error
	}{
		{"workers", func(c *config.Config) { c.Runner.Workers = -1 }, config.ErrInvalidWorkers},
		{"timeout", func(c *config.Config) { c.Runner.DefaultTimeout = -time.Second }, config.ErrInvalidTimeout},
		{"idle timeout", func(c *config.Config) { c.Runner.DefaultIdleTimeout = -time.Second }, config.ErrInvalidTimeout},
		{"backend", func(c *config.Config) { c.Cache.Backend = "redis" }, config.ErrInvalidBackend},
		{"memory entries", func(c *config.Config) { c.Cache.MemoryEntries = -1 }, config.ErrInvalidMemoryEntries},
		{"max entry size", func(c *config.Config) { c.Cache.MaxEntrySize = "lots" }, config.ErrInvalidMaxEntrySize},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, config.ErrInvalidLogFormat},
		{"attempts", func(c *config.Config) { c.Advisories.MaxAttempts = -3 }, config.ErrInvalidMaxAttempts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(&cfg)

			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestMaxEntryBytes(t *testing.T) {
	t.Parallel()

	n, err := config.CacheConfig{MaxEntrySize: "8MB"}.MaxEntryBytes()
	require.NoError(t, err)
	assert.Equal(t, 8_000_000, n)

	n, err = config.CacheConfig{MaxEntrySize: "2 KiB"}.MaxEntryBytes()
	require.NoError(t, err)
	assert.Equal(t, 2048, n)

	n, err = config.CacheConfig{}.MaxEntryBytes()
	require.NoError(t, err)
	assert.Zero(t, n)
}
