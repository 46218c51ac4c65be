package observability

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// allowedPrefixes are the span attribute keys exported. Everything else,
// e.g. raw command lines with credentials, is dropped.
var allowedPrefixes = []string{
	"scrutinizer.",
	"analyzer",
	"exec.tool",
	"exec.pty",
	"exec.exit_code",
	"exec.status",
	"project.",
	"error",
}

// attributeFilter strips disallowed attributes before spans reach the
// delegate processor.
type attributeFilter struct {
	delegate sdktrace.SpanProcessor
}

// NewAttributeFilter returns a SpanProcessor forwarding to delegate with only
// allow-listed attributes.
func NewAttributeFilter(delegate sdktrace.SpanProcessor) sdktrace.SpanProcessor {
	return &attributeFilter{delegate: delegate}
}

// OnStart implements sdktrace.SpanProcessor.
func (f *attributeFilter) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	f.delegate.OnStart(parent, s)
}

// OnEnd implements sdktrace.SpanProcessor.
func (f *attributeFilter) OnEnd(s sdktrace.ReadOnlySpan) {
	f.delegate.OnEnd(&filteredSpan{ReadOnlySpan: s})
}

// Shutdown implements sdktrace.SpanProcessor.
func (f *attributeFilter) Shutdown(ctx context.Context) error {
	if err := f.delegate.Shutdown(ctx); err != nil {
		return fmt.Errorf("attribute filter shutdown: %w", err)
	}

	return nil
}

// ForceFlush implements sdktrace.SpanProcessor.
func (f *attributeFilter) ForceFlush(ctx context.Context) error {
	if err := f.delegate.ForceFlush(ctx); err != nil {
		return fmt.Errorf("attribute filter flush: %w", err)
	}

	return nil
}

// AttributeAllowed reports whether key survives the filter.
func AttributeAllowed(key string) bool {
	for _, prefix := range allowedPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}

	return false
}

type filteredSpan struct {
	sdktrace.ReadOnlySpan
}

// Attributes returns only the allowed attributes.
func (s *filteredSpan) Attributes() []attribute.KeyValue {
	orig := s.ReadOnlySpan.Attributes()
	filtered := make([]attribute.KeyValue, 0, len(orig))

	for _, kv := range orig {
		if AttributeAllowed(string(kv.Key)) {
			filtered = append(filtered, kv)
		}
	}

	return filtered
}
