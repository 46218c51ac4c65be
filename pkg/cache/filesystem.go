package cache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Filesystem stores entries as plain files below a root directory. Writes go
// to a temporary file that is renamed into place, so concurrent writers never
// expose partial entries.
type Filesystem struct {
	root string
}

// NewFilesystem returns a backend rooted at dir. The directory is created
// lazily on the first write.
func NewFilesystem(dir string) *Filesystem {
	return &Filesystem{root: dir}
}

// Root returns the cache directory.
func (f *Filesystem) Root() string { return f.root }

func (f *Filesystem) entryPath(key Key) string {
	return filepath.Join(f.root, filepath.FromSlash(key.Path()))
}

// Load implements Backend.
func (f *Filesystem) Load(_ context.Context, key Key) ([]byte, bool, error) {
	p := f.entryPath(key)

	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, &IOError{Op: "read", Path: p, Err: err}
	}

	return data, true, nil
}

// Save implements Backend.
func (f *Filesystem) Save(_ context.Context, key Key, value []byte) (err error) {
	p := f.entryPath(key)
	dir := filepath.Dir(p)

	if mkErr := os.MkdirAll(dir, dirPerm); mkErr != nil {
		return &IOError{Op: "mkdir", Path: dir, Err: mkErr}
	}

	tmp, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return &IOError{Op: "create", Path: dir, Err: err}
	}

	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(value); err != nil {
		_ = tmp.Close()

		return &IOError{Op: "write", Path: tmp.Name(), Err: err}
	}

	if err = tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()

		return &IOError{Op: "chmod", Path: tmp.Name(), Err: err}
	}

	if err = tmp.Close(); err != nil {
		return &IOError{Op: "close", Path: tmp.Name(), Err: err}
	}

	if err = os.Rename(tmp.Name(), p); err != nil {
		return &IOError{Op: "rename", Path: p, Err: err}
	}

	return nil
}
