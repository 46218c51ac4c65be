package analyze

import (
	"fmt"
	"os"
	"path/filepath"
)

// Filesystem is the temporary-file surface analyzers need to hand files to
// external tools.
type Filesystem interface {
	MkdirTemp(pattern string) (string, error)
	WriteFile(name string, data []byte) error
	ReadFile(name string) ([]byte, error)
	RemoveAll(path string) error
}

// OSFilesystem is the host filesystem.
type OSFilesystem struct {
	// TempRoot is the parent of temporary directories; empty means os.TempDir().
	TempRoot string
}

// MkdirTemp creates a new temporary directory.
func (o OSFilesystem) MkdirTemp(pattern string) (string, error) {
	dir, err := os.MkdirTemp(o.TempRoot, pattern)
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}

	return dir, nil
}

// WriteFile writes data, creating parent directories as needed.
func (OSFilesystem) WriteFile(name string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(name), 0o750); err != nil {
		return fmt.Errorf("create dir for %s: %w", name, err)
	}

	if err := os.WriteFile(name, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	return nil
}

// ReadFile reads name.
func (OSFilesystem) ReadFile(name string) ([]byte, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	return data, nil
}

// RemoveAll removes path and its children.
func (OSFilesystem) RemoveAll(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}

	return nil
}
