package analyze

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/scrutinizer/pkg/config"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/model"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/pathfilter"
)

// FileError attributes a failure to the file being analyzed.
type FileError struct {
	Analyzer string
	Path     string
	Err      error
}

// Error implements the error interface.
func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Analyzer, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *FileError) Unwrap() error { return e.Err }

// SelectFiles returns the project files a should analyze, in project order:
// files with a configured extension, not excluded by the analyzer's filter,
// and not disabled by a matching path_configs entry.
func SelectFiles(p *model.Project, a FileAnalyzer) ([]*model.File, error) {
	exts, err := config.Value[[]string](p.GlobalConfig(a.Name() + "." + KeyExtensions))
	if err != nil {
		return nil, fmt.Errorf("select files for %s: %w", a.Name(), err)
	}

	var filter pathfilter.Filter
	if tree := p.Config(); tree != nil {
		filter = tree.AnalyzerFilter(a.Name())
	}

	var selected []*model.File

	for _, f := range p.Files() {
		if !hasExtension(f, exts) || pathfilter.IsFiltered(f.Path(), filter) {
			continue
		}

		if enabled, _ := p.PathConfig(f, a.Name()+"."+config.KeyEnabled, true).(bool); !enabled {
			continue
		}

		selected = append(selected, f)
	}

	return selected, nil
}

func hasExtension(f *model.File, exts []string) bool {
	if len(exts) == 0 {
		return true
	}

	ext := f.Extension()

	return slices.ContainsFunc(exts, func(e string) bool {
		return strings.TrimPrefix(e, ".") == ext
	})
}

// TraverseFiles runs a.AnalyzeFile for every selected file. With workers
// above one, files are analyzed concurrently. Errors returned by AnalyzeFile
// stop the traversal and are returned as a *FileError; analyzers that prefer
// to skip a bad file log the problem and return nil. The context is checked
// before each file.
func TraverseFiles(ctx context.Context, p *model.Project, a FileAnalyzer, workers int) error {
	files, err := SelectFiles(p, a)
	if err != nil {
		return err
	}

	if workers <= 1 || len(files) <= 1 {
		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return err
			}

			if err := a.AnalyzeFile(ctx, p, f); err != nil {
				return &FileError{Analyzer: a.Name(), Path: f.Path(), Err: err}
			}
		}

		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(workers, len(files)))

	for _, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			if err := a.AnalyzeFile(gctx, p, f); err != nil {
				return &FileError{Analyzer: a.Name(), Path: f.Path(), Err: err}
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	// A cancelled parent leaves unstarted files skipped without an error.
	return ctx.Err()
}
