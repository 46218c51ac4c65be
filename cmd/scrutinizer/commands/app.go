// Package commands implements the scrutinizer subcommands.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/scrutinizer/internal/config"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/analyzers/advisories"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/analyzers/analyze"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/analyzers/customcommands"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/analyzers/gostructure"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/analyzers/jshint"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/analyzers/linemetrics"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/cache"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/observability"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/process"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/version"
)

const (
	settingsFlag  = "settings"
	settingsUsage = "application settings file (default: .scrutinizer-settings.yaml in CWD or $HOME)"
	ciEnvVar      = "CI"
	headersEnvVar = "OTEL_EXPORTER_OTLP_HEADERS"
)

// AddSettingsFlag registers the persistent --settings flag on root.
func AddSettingsFlag(root *cobra.Command) {
	root.PersistentFlags().String(settingsFlag, "", settingsUsage)
}

func settingsPath(cmd *cobra.Command) string {
	path, err := cmd.Flags().GetString(settingsFlag)
	if err != nil {
		return ""
	}

	return path
}

// session bundles the settings and telemetry of one command invocation.
type session struct {
	settings  *config.Config
	providers observability.Providers
	metrics   *observability.RunMetrics
}

// openSession loads settings and starts telemetry. Logs go to stderr.
func openSession(cmd *cobra.Command, stderr io.Writer) (*session, error) {
	settings, err := config.LoadConfig(settingsPath(cmd))
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	obsCfg, err := observabilityConfig(settings)
	if err != nil {
		return nil, err
	}

	providers, err := observability.InitWithWriter(obsCfg, stderr)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	metrics, err := observability.NewRunMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("init run metrics: %w", err)
	}

	return &session{settings: settings, providers: providers, metrics: metrics}, nil
}

func (s *session) logger() *slog.Logger { return s.providers.Logger }

func (s *session) close(ctx context.Context) {
	if err := s.providers.Shutdown(context.WithoutCancel(ctx)); err != nil {
		s.logger().Warn("observability: shutdown failed", "error", err)
	}
}

func observabilityConfig(settings *config.Config) (observability.Config, error) {
	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version.Version
	cfg.OTLPEndpoint = settings.Observability.OTLPEndpoint
	cfg.OTLPInsecure = settings.Observability.OTLPInsecure
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv(headersEnvVar))
	cfg.MetricsFile = settings.Observability.MetricsFile
	cfg.LogJSON = settings.Logging.Format == observability.FormatJSON

	if os.Getenv(ciEnvVar) != "" {
		cfg.Mode = observability.ModeCI
		cfg.Environment = string(observability.ModeCI)
	}

	level, err := observability.ParseLevel(settings.Logging.Level)
	if err != nil {
		return cfg, fmt.Errorf("logging.level: %w", err)
	}

	cfg.LogLevel = level

	return cfg, nil
}

// NewRegistry returns every built-in analyzer in run order.
func NewRegistry(settings *config.Config) (*analyze.Registry, error) {
	registry, err := analyze.NewRegistry(
		customcommands.New(),
		linemetrics.New(),
		gostructure.New(),
		jshint.New(),
		advisories.New(advisories.Options{
			Endpoint:    settings.Advisories.Endpoint,
			MaxAttempts: settings.Advisories.MaxAttempts,
			BaseDelay:   settings.Advisories.BaseDelay,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("register analyzers: %w", err)
	}

	return registry, nil
}

// NewCache builds the result cache selected by settings. A disabled cache is
// a [cache.Null]. The returned layer is non-nil when an LRU front is in use.
func NewCache(settings config.CacheConfig) (cache.Cache, *cache.Layered, error) {
	if !settings.Enabled {
		return cache.Null{}, nil, nil
	}

	var backend cache.Backend

	switch settings.Backend {
	case config.BackendMemory:
		return cache.New(cache.NewMemory()), nil, nil
	case config.BackendS3:
		s3, err := cache.NewS3(cache.S3Options{
			Endpoint:  settings.S3Endpoint,
			Region:    settings.S3Region,
			Bucket:    settings.S3Bucket,
			Prefix:    settings.S3Prefix,
			AccessKey: settings.S3AccessKey,
			SecretKey: settings.S3SecretKey,
			UseSSL:    settings.S3UseSSL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("s3 cache: %w", err)
		}

		backend = s3
	default:
		backend = cache.NewFilesystem(settings.Directory)
	}

	if settings.MemoryEntries == 0 {
		return cache.New(backend), nil, nil
	}

	maxEntry, err := settings.MaxEntryBytes()
	if err != nil {
		return nil, nil, err
	}

	layered, err := cache.NewLayered(backend, settings.MemoryEntries, maxEntry)
	if err != nil {
		return nil, nil, fmt.Errorf("memory cache layer: %w", err)
	}

	return cache.New(layered), layered, nil
}

// newExecutor returns the process executor reporting to the session.
func (s *session) newExecutor() *process.Local {
	return &process.Local{
		Logger:   s.logger(),
		Tracer:   s.providers.Tracer,
		Observer: s.metrics,
		Defaults: process.Options{
			Timeout:     s.settings.Runner.DefaultTimeout,
			IdleTimeout: s.settings.Runner.DefaultIdleTimeout,
		},
	}
}
