package scrutinizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sumatoshi-tech/scrutinizer/pkg/analyzers/analyze"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/cache"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/config"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/model"
)

// Severity tells whether a failure aborts the run.
type Severity int

// Severities.
const (
	Recoverable Severity = iota
	Fatal
)

// String implements fmt.Stringer.
func (s Severity) String() string {
	if s == Fatal {
		return "fatal"
	}

	return "recoverable"
}

// Classify decides whether err aborts the run. Configuration and cache
// errors, cancellation and misuse of the project model are fatal; tool
// failures and everything else are recorded and the run continues.
func Classify(err error) Severity {
	switch {
	case err == nil:
		return Recoverable
	case errors.Is(err, config.ErrValidation),
		errors.Is(err, config.ErrPath),
		errors.Is(err, cache.ErrIO),
		errors.Is(err, context.Canceled),
		errors.Is(err, model.ErrConfigAlreadySet):
		return Fatal
	default:
		return Recoverable
	}
}

// State is the outcome of one analyzer in a run.
type State string

// Analyzer states.
const (
	StateSkipped   State = "skipped"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// RunFailure is a recorded, non-fatal failure.
type RunFailure struct {
	Analyzer string
	Path     string
	Err      error
}

// Error implements the error interface.
func (f RunFailure) Error() string {
	if f.Path != "" {
		return fmt.Sprintf("%s (%s): %v", f.Analyzer, f.Path, f.Err)
	}

	return fmt.Sprintf("%s: %v", f.Analyzer, f.Err)
}

// Unwrap returns the underlying error.
func (f RunFailure) Unwrap() error { return f.Err }

func newRunFailure(analyzer string, err error) RunFailure {
	failure := RunFailure{Analyzer: analyzer, Err: err}

	var fileErr *analyze.FileError
	if errors.As(err, &fileErr) {
		failure.Path = fileErr.Path
	}

	return failure
}

// AnalyzerRun describes what happened to one analyzer.
type AnalyzerRun struct {
	Name     string
	State    State
	Duration time.Duration
	Failure  *RunFailure
}

// Report summarises a run.
type Report struct {
	Analyzers []AnalyzerRun
	// AfterCommandFailures holds failed after_commands; they never abort a run.
	AfterCommandFailures []RunFailure
	Duration             time.Duration
}

// Failures returns every recorded failure in run order.
func (r *Report) Failures() []RunFailure {
	var out []RunFailure

	for _, a := range r.Analyzers {
		if a.Failure != nil {
			out = append(out, *a.Failure)
		}
	}

	return append(out, r.AfterCommandFailures...)
}

// HasFailures reports whether any analyzer or after-command failed.
func (r *Report) HasFailures() bool {
	return len(r.Failures()) > 0
}

// Count returns how many analyzers ended in state.
func (r *Report) Count(state State) int {
	n := 0

	for _, a := range r.Analyzers {
		if a.State == state {
			n++
		}
	}

	return n
}
