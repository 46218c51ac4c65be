// Package analyze defines the analyzer plugin contract, the optional
// collaborator capabilities, and the file traversal engine shared by all
// file-based analyzers.
package analyze

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Sumatoshi-tech/scrutinizer/pkg/cache"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/config"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/model"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/process"
)

// KeyExtensions is the global setting every file-based analyzer gets
// automatically.
const KeyExtensions = "extensions"

// Analyzer is the contract every analyzer implements.
type Analyzer interface {
	Name() string
	// BuildConfig declares the analyzer's global and per-file settings.
	BuildConfig(b *config.Builder)
	// Scrutinize analyzes the project and records results on it.
	Scrutinize(ctx context.Context, p *model.Project) error
}

// FileAnalyzer is an analyzer that works one file at a time. Its Scrutinize
// is usually a call to TraverseFiles.
type FileAnalyzer interface {
	Analyzer

	DefaultExtensions() []string
	AnalyzeFile(ctx context.Context, p *model.Project, f *model.File) error
}

// LoggerAware analyzers accept a logger.
type LoggerAware interface {
	SetLogger(logger *slog.Logger)
}

// ExecutorAware analyzers run external tools through an injected executor.
type ExecutorAware interface {
	SetExecutor(exec process.Executor)
}

// FilesystemAware analyzers manage temporary files through an injected
// filesystem.
type FilesystemAware interface {
	SetFilesystem(fs Filesystem)
}

// CacheAware analyzers cache expensive results. The cache they receive is
// already scoped to the analyzer and its configuration.
type CacheAware interface {
	SetCache(c cache.Cache)
}

// WorkerAware analyzers traverse files concurrently with the configured
// number of workers.
type WorkerAware interface {
	SetWorkers(n int)
}

// Collaborators implements every capability setter. Analyzers embed it and
// read their collaborators through the accessors, which fall back to working
// defaults when nothing was injected.
type Collaborators struct {
	logger   *slog.Logger
	executor process.Executor
	fs       Filesystem
	cache    cache.Cache
	workers  int
}

// SetLogger implements LoggerAware.
func (c *Collaborators) SetLogger(logger *slog.Logger) { c.logger = logger }

// SetExecutor implements ExecutorAware.
func (c *Collaborators) SetExecutor(exec process.Executor) { c.executor = exec }

// SetFilesystem implements FilesystemAware.
func (c *Collaborators) SetFilesystem(fs Filesystem) { c.fs = fs }

// SetCache implements CacheAware.
func (c *Collaborators) SetCache(ch cache.Cache) { c.cache = ch }

// SetWorkers implements WorkerAware.
func (c *Collaborators) SetWorkers(n int) { c.workers = n }

// Workers returns the traversal worker count; values below two mean
// sequential traversal.
func (c *Collaborators) Workers() int { return c.workers }

// Logger returns the injected logger or slog.Default().
func (c *Collaborators) Logger() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}

	return c.logger
}

// Executor returns the injected executor or a local one.
func (c *Collaborators) Executor() process.Executor {
	if c.executor == nil {
		return process.NewLocal(c.logger)
	}

	return c.executor
}

// Filesystem returns the injected filesystem or the host filesystem.
func (c *Collaborators) Filesystem() Filesystem {
	if c.fs == nil {
		return OSFilesystem{}
	}

	return c.fs
}

// Cache returns the injected cache or a cache that never hits.
func (c *Collaborators) Cache() cache.Cache {
	if c.cache == nil {
		return cache.Null{}
	}

	return c.cache
}

// Deps are the collaborators offered to analyzers.
type Deps struct {
	Logger   *slog.Logger
	Executor process.Executor
	FS       Filesystem
	Cache    cache.Cache
	Workers  int
}

// Inject hands each collaborator in d to a, as far as a declares the
// capability. Nil collaborators are not injected.
func Inject(a Analyzer, d Deps) {
	if la, ok := a.(LoggerAware); ok && d.Logger != nil {
		la.SetLogger(d.Logger.With("analyzer", a.Name()))
	}

	if ea, ok := a.(ExecutorAware); ok && d.Executor != nil {
		ea.SetExecutor(d.Executor)
	}

	if fa, ok := a.(FilesystemAware); ok && d.FS != nil {
		fa.SetFilesystem(d.FS)
	}

	if ca, ok := a.(CacheAware); ok && d.Cache != nil {
		ca.SetCache(d.Cache)
	}

	if wa, ok := a.(WorkerAware); ok {
		wa.SetWorkers(d.Workers)
	}
}

// BuildSchema collects a's configuration schema. File-based analyzers get an
// "extensions" global setting defaulting to their DefaultExtensions.
func BuildSchema(a Analyzer) (*config.AnalyzerSchema, error) {
	b := config.NewBuilder(a.Name())

	if fa, ok := a.(FileAnalyzer); ok {
		exts := fa.DefaultExtensions()
		if exts == nil {
			exts = []string{}
		}

		b.Global().StringList(KeyExtensions, "File extensions this analyzer looks at; empty means all files.").
			Default(exts)
	}

	a.BuildConfig(b)

	schema, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build schema of %s: %w", a.Name(), err)
	}

	return schema, nil
}
