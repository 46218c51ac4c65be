// Package observability wires OpenTelemetry tracing and metrics together
// with structured logging for scrutinizer runs.
package observability

import (
	"fmt"
	"log/slog"
	"strings"
)

// AppMode identifies how the binary was launched.
type AppMode string

const (
	// ModeCLI is a one-shot command line run.
	ModeCLI AppMode = "cli"
	// ModeCI is a run inside a CI job.
	ModeCI AppMode = "ci"
)

const (
	defaultServiceName        = "scrutinizer"
	defaultShutdownTimeoutSec = 5
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds all observability configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// Environment is the deployment environment, e.g. "ci" or "dev".
	Environment string
	Mode        AppMode

	// OTLPEndpoint is the OTLP gRPC collector address. Empty disables export.
	OTLPEndpoint string
	OTLPHeaders  map[string]string
	OTLPInsecure bool
	// SampleRatio is the trace sampling ratio; zero samples everything.
	SampleRatio float64

	// MetricsFile receives the Prometheus text exposition of the run's
	// metrics on shutdown. Empty disables it.
	MetricsFile string

	LogLevel slog.Level
	LogJSON  bool

	ShutdownTimeoutSec int
}

// DefaultConfig returns a Config for zero-config startup.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		Mode:               ModeCLI,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level

	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("parse log level %q: %w", s, err)
	}

	return level, nil
}
