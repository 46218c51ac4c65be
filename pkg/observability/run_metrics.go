package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricAnalyzerRuns     = "scrutinizer.analyzer.runs.total"
	metricAnalyzerDuration = "scrutinizer.analyzer.duration.seconds"
	metricToolInvocations  = "scrutinizer.tool.invocations.total"
	metricCacheHits        = "scrutinizer.cache.hits.total"
	metricCacheMisses      = "scrutinizer.cache.misses.total"

	attrAnalyzer = "analyzer"
	attrStatus   = "status"
	attrTool     = "tool"
)

// durationBuckets span quick built-in analyzers up to the 30 minute tool
// timeout ceiling.
var durationBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800}

// RunMetrics records analyzer, tool and cache activity of a run. All
// methods are safe on a nil receiver.
type RunMetrics struct {
	analyzerRuns     metric.Int64Counter
	analyzerDuration metric.Float64Histogram
	toolInvocations  metric.Int64Counter
	cacheHits        metric.Int64Counter
	cacheMisses      metric.Int64Counter
}

// NewRunMetrics creates the instruments on mt.
func NewRunMetrics(mt metric.Meter) (*RunMetrics, error) {
	runs, err := mt.Int64Counter(metricAnalyzerRuns,
		metric.WithDescription("Analyzer runs by final state"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricAnalyzerRuns, err)
	}

	duration, err := mt.Float64Histogram(metricAnalyzerDuration,
		metric.WithDescription("Analyzer wall time in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricAnalyzerDuration, err)
	}

	tools, err := mt.Int64Counter(metricToolInvocations,
		metric.WithDescription("External tool invocations by outcome"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricToolInvocations, err)
	}

	hits, err := mt.Int64Counter(metricCacheHits,
		metric.WithDescription("Result cache hits by analyzer"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheHits, err)
	}

	misses, err := mt.Int64Counter(metricCacheMisses,
		metric.WithDescription("Result cache misses by analyzer"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheMisses, err)
	}

	return &RunMetrics{
		analyzerRuns:     runs,
		analyzerDuration: duration,
		toolInvocations:  tools,
		cacheHits:        hits,
		cacheMisses:      misses,
	}, nil
}

// AnalyzerFinished records one analyzer run.
func (rm *RunMetrics) AnalyzerFinished(ctx context.Context, analyzer, state string, elapsed time.Duration) {
	if rm == nil {
		return
	}

	rm.analyzerRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrAnalyzer, analyzer),
		attribute.String(attrStatus, state),
	))
	rm.analyzerDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String(attrAnalyzer, analyzer)))
}

// ToolInvoked records one external process run.
func (rm *RunMetrics) ToolInvoked(ctx context.Context, tool, status string) {
	if rm == nil {
		return
	}

	rm.toolInvocations.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrTool, tool),
		attribute.String(attrStatus, status),
	))
}

// CacheHit records a cache hit.
func (rm *RunMetrics) CacheHit(ctx context.Context, analyzer string) {
	if rm == nil {
		return
	}

	rm.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String(attrAnalyzer, analyzer)))
}

// CacheMiss records a cache miss.
func (rm *RunMetrics) CacheMiss(ctx context.Context, analyzer string) {
	if rm == nil {
		return
	}

	rm.cacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String(attrAnalyzer, analyzer)))
}
