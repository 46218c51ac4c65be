package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/scrutinizer/pkg/config"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/model"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/scrutinizer"
)

// Process exit codes.
const (
	ExitOK       = 0
	ExitFatal    = 1
	ExitFailures = 2
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ErrAnalyzerFailures is reported when the run completed with recorded
// analyzer failures.
var ErrAnalyzerFailures = errors.New("run completed with analyzer failures")

// ErrUnknownFormat is returned for an unsupported --format value.
var ErrUnknownFormat = errors.New("unknown output format")

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code int
	Err  error
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}

	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ExitError) Unwrap() error { return e.Err }

// RunCommand holds the flags of the run subcommand.
type RunCommand struct {
	configPath string
	format     string
	patches    bool
	noColor    bool
	workers    int
	failFast   bool
}

// NewRunCommand creates the run subcommand.
func NewRunCommand() *cobra.Command {
	rc := &RunCommand{format: FormatText}

	cmd := &cobra.Command{
		Use:   "run [path]",
		Short: "Analyze a project directory",
		Long: `Analyze a project directory with every analyzer enabled in its configuration
document (.scrutinizer.yml, .scrutinizer.yaml, .scrutinizer.json or .scrutinizer.toml).

Exit codes: 0 success, 1 fatal error, 2 completed with analyzer failures.`,
		Args: cobra.MaximumNArgs(1),
		RunE: rc.run,
	}

	cmd.Flags().StringVarP(&rc.configPath, "config", "c", "", "Configuration document (default: looked up in the project root)")
	cmd.Flags().StringVar(&rc.format, "format", FormatText, "Output format: text, json")
	cmd.Flags().BoolVar(&rc.patches, "patches", false, "Print unified diffs of proposed fixes")
	cmd.Flags().BoolVar(&rc.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().IntVar(&rc.workers, "workers", -1, "Concurrent file workers (-1 = runner.workers setting)")
	cmd.Flags().BoolVar(&rc.failFast, "fail-fast", false, "Abort on the first analyzer failure")

	return cmd
}

func (rc *RunCommand) run(cmd *cobra.Command, args []string) error {
	if rc.format != FormatText && rc.format != FormatJSON {
		return &ExitError{Code: ExitFatal, Err: fmt.Errorf("%w: %s", ErrUnknownFormat, rc.format)}
	}

	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	raw, err := rc.loadDocument(dir)
	if err != nil {
		return &ExitError{Code: ExitFatal, Err: err}
	}

	sess, err := openSession(cmd, cmd.ErrOrStderr())
	if err != nil {
		return &ExitError{Code: ExitFatal, Err: err}
	}
	defer sess.close(cmd.Context())

	return rc.execute(cmd.Context(), sess, dir, raw, cmd.OutOrStdout())
}

func (rc *RunCommand) loadDocument(dir string) (map[string]any, error) {
	path := rc.configPath
	if path == "" {
		found, ok := config.FindDocument(dir)
		if !ok {
			return map[string]any{}, nil
		}

		path = found
	}

	doc, err := config.LoadDocument(path)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	return doc, nil
}

func (rc *RunCommand) execute(ctx context.Context, sess *session, dir string, raw map[string]any, out io.Writer) error {
	registry, err := NewRegistry(sess.settings)
	if err != nil {
		return &ExitError{Code: ExitFatal, Err: err}
	}

	resultCache, layer, err := NewCache(sess.settings.Cache)
	if err != nil {
		return &ExitError{Code: ExitFatal, Err: err}
	}

	workers := sess.settings.Runner.Workers
	if rc.workers >= 0 {
		workers = rc.workers
	}

	scr := scrutinizer.New(registry, scrutinizer.Options{
		Logger:         sess.logger(),
		Executor:       sess.newExecutor(),
		Cache:          resultCache,
		Tracer:         sess.providers.Tracer,
		Recorder:       sess.metrics,
		Workers:        workers,
		FailFast:       rc.failFast || sess.settings.Runner.FailFast,
		CommandTimeout: sess.settings.Runner.DefaultTimeout,
	})

	project, report, err := scr.Scrutinize(ctx, dir, raw)

	if layer != nil {
		hits, misses := layer.Stats()
		sess.logger().DebugContext(ctx, "cache: memory layer", "hits", hits, "misses", misses)
	}

	if err != nil {
		return &ExitError{Code: ExitFatal, Err: err}
	}

	if renderErr := rc.render(out, project, report); renderErr != nil {
		return &ExitError{Code: ExitFatal, Err: renderErr}
	}

	if report.HasFailures() {
		return &ExitError{Code: ExitFailures, Err: ErrAnalyzerFailures}
	}

	return nil
}

func (rc *RunCommand) render(out io.Writer, project *model.Project, report *scrutinizer.Report) error {
	if rc.format == FormatJSON {
		return RenderJSON(out, project, report)
	}

	return RenderText(out, project, report, TextOptions{NoColor: rc.noColor, Patches: rc.patches})
}
