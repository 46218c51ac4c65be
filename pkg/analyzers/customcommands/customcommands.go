// Package customcommands runs user-defined shell commands against single
// files or the whole project and ingests their output.
package customcommands

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"slices"

	"github.com/Sumatoshi-tech/scrutinizer/pkg/analyzers/analyze"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/cache"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/config"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/ingest"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/model"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/process"
)

// Name is the configuration key of the analyzer.
const Name = "custom_commands"

// Analyzer runs configured commands.
type Analyzer struct {
	analyze.Collaborators
}

// New returns a custom commands analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Name implements analyze.Analyzer.
func (a *Analyzer) Name() string { return Name }

// DefaultExtensions implements analyze.FileAnalyzer.
func (a *Analyzer) DefaultExtensions() []string { return nil }

// BuildConfig implements analyze.Analyzer.
func (a *Analyzer) BuildConfig(b *config.Builder) {
	b.Global().List("commands", "Commands to run.", commandFields).Validate(validateCommands)
	b.Global().Bool("fail_on_error", "Fail the analyzer when a file command fails instead of skipping the file.")

	b.PerFile().StringList("skip_commands", "Names of file commands not run for matching files.")
}

func (a *Analyzer) commands(p *model.Project, scope string) ([]command, error) {
	all, err := parseCommands(p.GlobalConfig(Name + ".commands"))
	if err != nil {
		return nil, err
	}

	return slices.DeleteFunc(all, func(c command) bool { return c.Scope != scope }), nil
}

// Scrutinize implements analyze.Analyzer. Project commands run first, then
// file commands for every selected file.
func (a *Analyzer) Scrutinize(ctx context.Context, p *model.Project) error {
	projectCommands, err := a.commands(p, ScopeProject)
	if err != nil {
		return err
	}

	for _, c := range projectCommands {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := a.runProject(ctx, p, c); err != nil {
			return fmt.Errorf("project command %s: %w", c.Name, err)
		}
	}

	fileCommands, err := a.commands(p, ScopeFile)
	if err != nil || len(fileCommands) == 0 {
		return err
	}

	return analyze.TraverseFiles(ctx, p, a, a.Workers())
}

func (a *Analyzer) runProject(ctx context.Context, p *model.Project, c command) error {
	res, err := a.iterate(ctx, c, p.Directory(), map[string]string{})
	if err != nil {
		return err
	}

	if dropped := ingest.ApplyProject(p, Name, res); dropped > 0 {
		a.Logger().WarnContext(ctx, "custom_commands: comments for files outside the project dropped",
			"command", c.Name, "count", dropped)
	}

	return nil
}

// AnalyzeFile implements analyze.FileAnalyzer.
func (a *Analyzer) AnalyzeFile(ctx context.Context, p *model.Project, f *model.File) error {
	commands, err := a.commands(p, ScopeFile)
	if err != nil {
		return err
	}

	skip, err := config.Value[[]string](p.FileConfig(f, Name+".skip_commands"))
	if err != nil {
		return err
	}

	failOnError, err := config.Value[bool](p.GlobalConfig(Name + ".fail_on_error"))
	if err != nil {
		return err
	}

	for _, c := range commands {
		if slices.Contains(skip, c.Name) {
			continue
		}

		err := a.runFile(ctx, p, f, c)
		if err == nil {
			continue
		}

		if failOnError || ctx.Err() != nil {
			return fmt.Errorf("file command %s: %w", c.Name, err)
		}

		a.Logger().WarnContext(ctx, "custom_commands: file skipped",
			"command", c.Name, "path", f.Path(), "error", err)
	}

	return nil
}

type stringSource string

func (s stringSource) Content() string { return string(s) }

func (a *Analyzer) runFile(ctx context.Context, p *model.Project, f *model.File, c command) error {
	// Fixers continue from the fixes of earlier analyzers.
	var src cache.Source = f
	if c.fixer() && f.HasFixedFile() {
		src = stringSource(f.FixedFile().Content())
	}

	spec, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cache key: %w", err)
	}

	// The file path is part of the command line, so it is part of the key.
	key := string(spec) + "\x00" + f.Path()

	return cache.WithCache(ctx, a.Cache(), src, key,
		func() ([]byte, error) {
			res, runErr := a.generateFile(ctx, p, f, c, src.Content())
			if runErr != nil {
				return nil, runErr
			}

			return ingest.Encode(res)
		},
		func(data []byte) error {
			res, decodeErr := ingest.Decode(data)
			if decodeErr != nil {
				return decodeErr
			}

			for i := range res.Comments {
				res.Comments[i].Path = ""
			}

			return ingest.Apply(f, Name, res)
		})
}

func (a *Analyzer) generateFile(ctx context.Context, p *model.Project, f *model.File, c command, input string) (ingest.Result, error) {
	vars := map[string]string{
		"pathname": filepath.Join(p.Directory(), filepath.FromSlash(f.Path())),
	}

	if !c.fixer() {
		return a.iterate(ctx, c, p.Directory(), vars)
	}

	fs := a.Filesystem()

	dir, err := fs.MkdirTemp("scrutinizer-fix-*")
	if err != nil {
		return ingest.Result{}, err
	}

	defer func() { _ = fs.RemoveAll(dir) }()

	fixedPath := filepath.Join(dir, path.Base(f.Path()))
	if err := fs.WriteFile(fixedPath, []byte(input)); err != nil {
		return ingest.Result{}, err
	}

	vars["fixed_pathname"] = fixedPath

	res, err := a.iterate(ctx, c, p.Directory(), vars)
	if err != nil {
		return ingest.Result{}, err
	}

	fixed, err := fs.ReadFile(fixedPath)
	if err != nil {
		return ingest.Result{}, err
	}

	if content := string(fixed); content != input && res.FixedContent == nil {
		res.FixedContent = &content
	}

	return res, nil
}

// iterate runs c the configured number of times. Only the last run's output
// counts; a multi-pass run whose output carries findings is rejected.
func (a *Analyzer) iterate(ctx context.Context, c command, dir string, vars map[string]string) (ingest.Result, error) {
	line := process.Expand(c.Line, vars)

	var last ingest.Result

	for i := range c.Iterations {
		res, err := a.Executor().Execute(ctx, process.Shell(line), c.options(dir))
		if err != nil {
			return ingest.Result{}, err
		}

		if err := res.Check(c.SuccessExitCodes...); err != nil {
			return ingest.Result{}, err
		}

		raw := []byte(res.Stdout)

		if c.OutputFile != "" {
			raw, err = a.Filesystem().ReadFile(filepath.Join(dir, c.OutputFile))
			if err != nil {
				return ingest.Result{}, err
			}
		}

		last, err = ingest.DecodeOutput(c.OutputFormat, raw)
		if err != nil {
			return ingest.Result{}, err
		}

		if err := ingest.CheckIterations(c.Iterations, last); err != nil {
			return ingest.Result{}, err
		}

		a.Logger().DebugContext(ctx, "custom_commands: run finished",
			"command", c.Name, "iteration", i+1, "exit_code", res.ExitCode)
	}

	return last, nil
}
