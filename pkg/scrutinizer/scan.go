package scrutinizer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Sumatoshi-tech/scrutinizer/pkg/model"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/pathfilter"
)

// vcsDirs are never part of a project.
var vcsDirs = map[string]bool{".git": true, ".hg": true, ".svn": true}

// ScanProject builds a project from the files below dir. Files rejected by
// filter never become part of the project. Unreadable entries are skipped.
func ScanProject(ctx context.Context, dir string, filter pathfilter.Filter) (*model.Project, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve project directory: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat project directory: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	p := model.NewProject(root)

	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		skip, err := shouldSkip(path, entry, walkErr)
		if skip || err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path of %s: %w", path, err)
		}

		rel = filepath.ToSlash(rel)
		if pathfilter.IsFiltered(rel, filter) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrNotExist) {
				return nil
			}

			return fmt.Errorf("read %s: %w", rel, err)
		}

		return p.AddFile(model.NewFile(rel, string(content)))
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	return p, nil
}

// ErrNotDirectory is returned when the project path is not a directory.
var ErrNotDirectory = errors.New("project path is not a directory")

func shouldSkip(path string, entry fs.DirEntry, walkErr error) (bool, error) {
	if walkErr != nil {
		if errors.Is(walkErr, fs.ErrPermission) || errors.Is(walkErr, fs.ErrNotExist) {
			if entry != nil && entry.IsDir() {
				return true, filepath.SkipDir
			}

			return true, nil
		}

		return false, walkErr
	}

	if entry == nil {
		return true, nil
	}

	if entry.IsDir() {
		if vcsDirs[entry.Name()] {
			return true, filepath.SkipDir
		}

		return true, nil
	}

	// Symlinks are followed only when they point at a regular file.
	if entry.Type()&fs.ModeSymlink != 0 {
		target, err := os.Stat(path)

		return err != nil || !target.Mode().IsRegular(), nil
	}

	return !entry.Type().IsRegular(), nil
}
