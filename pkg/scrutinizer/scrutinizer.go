// Package scrutinizer runs the registered analyzers over a project: it
// resolves the configuration, scans the project directory, runs the
// before/after commands and drives every enabled analyzer in registration
// order while classifying their failures.
package scrutinizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/scrutinizer/pkg/analyzers/analyze"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/cache"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/config"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/model"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/process"
)

const tracerName = "scrutinizer"

// ErrBeforeCommand is returned when a before-command fails; no analyzer runs.
var ErrBeforeCommand = errors.New("before command failed")

// Recorder receives run metrics. observability.RunMetrics implements it.
type Recorder interface {
	cache.Observer
	AnalyzerFinished(ctx context.Context, analyzer string, state string, elapsed time.Duration)
}

// Options configure a Scrutinizer. Zero values fall back to defaults.
type Options struct {
	Logger     *slog.Logger
	Executor   process.Executor
	Filesystem analyze.Filesystem
	Cache      cache.Cache
	Tracer     trace.Tracer
	Recorder   Recorder
	// Workers bounds concurrent file traversal inside an analyzer.
	Workers int
	// FailFast turns every analyzer failure into a fatal one.
	FailFast bool
	// CommandTimeout bounds each before/after command.
	CommandTimeout time.Duration
}

// Scrutinizer orchestrates one or more runs.
type Scrutinizer struct {
	registry *analyze.Registry
	opts     Options
}

// New returns a Scrutinizer running the analyzers of registry.
func New(registry *analyze.Registry, opts Options) *Scrutinizer {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Executor == nil {
		opts.Executor = process.NewLocal(opts.Logger)
	}

	if opts.Filesystem == nil {
		opts.Filesystem = analyze.OSFilesystem{}
	}

	if opts.Cache == nil {
		opts.Cache = cache.Null{}
	}

	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}

	return &Scrutinizer{registry: registry, opts: opts}
}

// Schema returns the configuration schema of all registered analyzers.
func (s *Scrutinizer) Schema() (*config.Schema, error) {
	return s.registry.Schema()
}

// Resolve validates raw against the schema.
func (s *Scrutinizer) Resolve(raw map[string]any) (*config.Tree, error) {
	schema, err := s.Schema()
	if err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}

	tree, err := schema.Resolve(raw)
	if err != nil {
		return nil, fmt.Errorf("resolve configuration: %w", err)
	}

	return tree, nil
}

// Scrutinize analyzes the project in dir. A non-nil error means the run was
// aborted; recoverable analyzer failures are only recorded in the report.
func (s *Scrutinizer) Scrutinize(ctx context.Context, dir string, raw map[string]any) (*model.Project, *Report, error) {
	started := time.Now()

	ctx, span := s.opts.Tracer.Start(ctx, "scrutinizer.run", trace.WithAttributes(attribute.String("project.dir", dir)))
	defer span.End()

	project, report, err := s.run(ctx, dir, raw)
	if report != nil {
		report.Duration = time.Since(started)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return project, report, err
}

func (s *Scrutinizer) run(ctx context.Context, dir string, raw map[string]any) (*model.Project, *Report, error) {
	tree, err := s.Resolve(raw)
	if err != nil {
		return nil, nil, err
	}

	project, err := ScanProject(ctx, dir, tree.Filter())
	if err != nil {
		return nil, nil, err
	}

	if err := project.SetConfig(tree); err != nil {
		return nil, nil, err
	}

	s.opts.Logger.InfoContext(ctx, "scrutinizer: project scanned",
		"dir", project.Directory(), "files", len(project.Files()))

	if err := s.runCommands(ctx, project.Directory(), tree.BeforeCommands(), nil); err != nil {
		return project, nil, err
	}

	report := &Report{}

	for _, a := range s.registry.Analyzers() {
		if err := ctx.Err(); err != nil {
			return project, report, fmt.Errorf("run cancelled before %s: %w", a.Name(), err)
		}

		entry, err := s.runAnalyzer(ctx, project, tree, a)
		report.Analyzers = append(report.Analyzers, entry)

		if err != nil {
			return project, report, err
		}
	}

	_ = s.runCommands(ctx, project.Directory(), tree.AfterCommands(), report)

	s.opts.Logger.InfoContext(ctx, "scrutinizer: run finished",
		"completed", report.Count(StateCompleted),
		"failed", report.Count(StateFailed),
		"skipped", report.Count(StateSkipped))

	return project, report, nil
}

// runAnalyzer runs a single analyzer. The returned error is set only when
// the failure is fatal.
func (s *Scrutinizer) runAnalyzer(ctx context.Context, p *model.Project, tree *config.Tree, a analyze.Analyzer) (AnalyzerRun, error) {
	name := a.Name()
	entry := AnalyzerRun{Name: name, State: StateSkipped}

	if !tree.Enabled(name) {
		s.opts.Logger.DebugContext(ctx, "scrutinizer: analyzer disabled", "analyzer", name)

		return entry, nil
	}

	analyze.Inject(a, analyze.Deps{
		Logger:   s.opts.Logger,
		Executor: s.opts.Executor,
		FS:       s.opts.Filesystem,
		Cache:    cache.NewScoped(s.opts.Cache, name, tree.Fingerprint(name), s.observer()),
		Workers:  s.opts.Workers,
	})

	ctx, span := s.opts.Tracer.Start(ctx, "scrutinizer.analyzer."+name,
		trace.WithAttributes(attribute.String("analyzer", name)))
	defer span.End()

	s.opts.Logger.InfoContext(ctx, "scrutinizer: analyzer started", "analyzer", name)

	started := time.Now()
	err := a.Scrutinize(ctx, p)
	entry.Duration = time.Since(started)

	entry.State = StateCompleted
	if err != nil {
		entry.State = StateFailed
		failure := newRunFailure(name, err)
		entry.Failure = &failure

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if s.opts.Recorder != nil {
		s.opts.Recorder.AnalyzerFinished(ctx, name, string(entry.State), entry.Duration)
	}

	if err == nil {
		s.opts.Logger.InfoContext(ctx, "scrutinizer: analyzer completed",
			"analyzer", name, "duration", entry.Duration)

		return entry, nil
	}

	if s.opts.FailFast || Classify(err) == Fatal {
		return entry, fmt.Errorf("analyzer %s: %w", name, err)
	}

	s.opts.Logger.ErrorContext(ctx, "scrutinizer: analyzer failed",
		"analyzer", name, "path", entry.Failure.Path, "error", err)

	return entry, nil
}

func (s *Scrutinizer) observer() cache.Observer {
	if s.opts.Recorder == nil {
		return nil
	}

	return s.opts.Recorder
}

// runCommands runs shell commands in dir. With a nil report the first
// failure is returned; otherwise failures are recorded and the rest still run.
func (s *Scrutinizer) runCommands(ctx context.Context, dir string, commands []string, report *Report) error {
	label := "before_commands"
	if report != nil {
		label = "after_commands"
	}

	for _, line := range commands {
		res, err := s.opts.Executor.Execute(ctx, process.Shell(line), process.Options{
			Dir:     dir,
			Timeout: s.opts.CommandTimeout,
		})
		if err == nil {
			err = res.Check()
		}

		if err == nil {
			s.opts.Logger.InfoContext(ctx, "scrutinizer: command finished", "phase", label, "command", line)

			continue
		}

		if report == nil {
			return fmt.Errorf("%w: %q: %w", ErrBeforeCommand, line, err)
		}

		s.opts.Logger.WarnContext(ctx, "scrutinizer: command failed", "phase", label, "command", line, "error", err)
		report.AfterCommandFailures = append(report.AfterCommandFailures, RunFailure{Analyzer: label, Err: err})
	}

	return nil
}
