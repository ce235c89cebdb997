package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/estatehub/internal/apperr"
)

// FS implements Provider backed by the local file system. Objects are sharded
// into sub-directories by the first two characters of their name.
type FS struct {
	root string // absolute path to the uploads directory
}

// NewFS creates a new FS provider rooted at the given directory, creating it
// when missing.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute uploads directory.
func (f *FS) Root() string { return f.root }

// safePath maps an object name to its sharded location under root and
// rejects names that could escape it.
func (f *FS) safePath(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("storage: invalid object name %q: %w", name, apperr.ErrValidation)
	}
	shard := name
	if len(shard) > 2 {
		shard = shard[:2]
	}
	abs := filepath.Join(f.root, shard, name)
	// Ensure the resolved path is still under root.
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: path escapes uploads root: %s", name)
	}
	return abs, nil
}

func notExist(name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: %s: %w", name, apperr.ErrNotFound)
	}
	return err
}

// Put atomically writes content: tmp file → fsync → rename.
func (f *FS) Put(name string, content []byte) error {
	abs, err := f.safePath(name)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".estatehub-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Open returns the object for reading; the caller closes it.
func (f *FS) Open(name string) (io.ReadSeekCloser, Object, error) {
	abs, err := f.safePath(name)
	if err != nil {
		return nil, Object{}, err
	}
	file, err := os.Open(abs)
	if err != nil {
		return nil, Object{}, notExist(name, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, Object{}, fmt.Errorf("storage: stat %s: %w", name, err)
	}
	return file, Object{Name: name, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Exists reports whether the object is stored.
func (f *FS) Exists(name string) (bool, error) {
	abs, err := f.safePath(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// Delete removes an object.
func (f *FS) Delete(name string) error {
	abs, err := f.safePath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return notExist(name, fmt.Errorf("storage: delete %s: %w", name, err))
	}
	return nil
}
