// Package jshint runs JSHint on JavaScript files and records its findings.
package jshint

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/Sumatoshi-tech/scrutinizer/pkg/analyzers/analyze"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/cache"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/config"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/ingest"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/model"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/process"
)

// Name is the configuration key of the analyzer.
const Name = "js_hint"

const (
	defaultCommand = "jshint --reporter=checkstyle %pathname%"
	defaultTimeout = 300
	maxTimeout     = 1800

	// rcFile is the configuration file JSHint discovers next to the input.
	rcFile = ".jshintrc"
)

// JSHint exits with 2 when it found problems.
var allowedExitCodes = []int{0, 2}

// Analyzer runs JSHint.
type Analyzer struct {
	analyze.Collaborators
}

// New returns a JSHint analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Name implements analyze.Analyzer.
func (a *Analyzer) Name() string { return Name }

// DefaultExtensions implements analyze.FileAnalyzer.
func (a *Analyzer) DefaultExtensions() []string { return []string{"js"} }

// BuildConfig implements analyze.Analyzer.
func (a *Analyzer) BuildConfig(b *config.Builder) {
	b.Global().String("command", "Command line; %pathname% is replaced by the file to check.").
		Default(defaultCommand).
		Validate(config.RequireToken("%pathname%"))
	b.Global().Int("timeout", "Seconds a single run may take.").
		Default(defaultTimeout).Min(1).Max(maxTimeout)

	b.PerFile().Bool("use_native_config", "Use the project's own .jshintrc files instead of options.")
	b.PerFile().Any("options", "JSHint options written to a temporary .jshintrc.").Default(map[string]any{})
}

// Scrutinize implements analyze.Analyzer.
func (a *Analyzer) Scrutinize(ctx context.Context, p *model.Project) error {
	return analyze.TraverseFiles(ctx, p, a, a.Workers())
}

type fileSettings struct {
	Native  bool           `json:"native"`
	Options map[string]any `json:"options"`
}

func (a *Analyzer) settings(p *model.Project, f *model.File) (fileSettings, error) {
	native, err := config.Value[bool](p.FileConfig(f, Name+".use_native_config"))
	if err != nil {
		return fileSettings{}, err
	}

	options, err := config.Value[map[string]any](p.FileConfig(f, Name+".options"))
	if err != nil {
		return fileSettings{}, err
	}

	if options == nil {
		options = map[string]any{}
	}

	return fileSettings{Native: native, Options: options}, nil
}

// AnalyzeFile implements analyze.FileAnalyzer.
func (a *Analyzer) AnalyzeFile(ctx context.Context, p *model.Project, f *model.File) error {
	settings, err := a.settings(p, f)
	if err != nil {
		return err
	}

	key, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode cache key: %w", err)
	}

	// Native configuration depends on where the file lives.
	cacheKey := string(key)
	if settings.Native {
		cacheKey += ":" + f.Path()
	}

	return cache.WithCache(ctx, a.Cache(), f, cacheKey,
		func() ([]byte, error) {
			res, runErr := a.run(ctx, p, f, settings)
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

			return ingest.Apply(f, Name, res)
		})
}

func (a *Analyzer) run(ctx context.Context, p *model.Project, f *model.File, settings fileSettings) (ingest.Result, error) {
	command, err := config.Value[string](p.GlobalConfig(Name + ".command"))
	if err != nil {
		return ingest.Result{}, err
	}

	timeout, err := config.Value[int](p.GlobalConfig(Name + ".timeout"))
	if err != nil {
		return ingest.Result{}, err
	}

	opts := process.Options{Timeout: time.Duration(timeout) * time.Second}

	target := filepath.Join(p.Directory(), filepath.FromSlash(f.Path()))

	if !settings.Native {
		fs := a.Filesystem()

		dir, mkErr := fs.MkdirTemp("scrutinizer-jshint-*")
		if mkErr != nil {
			return ingest.Result{}, mkErr
		}

		defer func() { _ = fs.RemoveAll(dir) }()

		rc, encErr := json.Marshal(settings.Options)
		if encErr != nil {
			return ingest.Result{}, fmt.Errorf("encode %s: %w", rcFile, encErr)
		}

		if err := fs.WriteFile(filepath.Join(dir, rcFile), rc); err != nil {
			return ingest.Result{}, err
		}

		target = filepath.Join(dir, path.Base(f.Path()))
		if err := fs.WriteFile(target, []byte(f.Content())); err != nil {
			return ingest.Result{}, err
		}

		opts.Dir = dir
	} else {
		opts.Dir = p.Directory()
	}

	res, err := a.Executor().Execute(ctx, process.Shell(process.Expand(command, map[string]string{"pathname": target})), opts)
	if err != nil {
		return ingest.Result{}, err
	}

	if err := res.Check(allowedExitCodes...); err != nil {
		return ingest.Result{}, err
	}

	out, err := ingest.DecodeOutput(ingest.FormatCheckstyle, []byte(res.Stdout))
	if err != nil {
		return ingest.Result{}, err
	}

	a.Logger().DebugContext(ctx, "js_hint: checked", "path", f.Path(), "comments", len(out.Comments))

	return out, nil
}
