package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// File persists the registry as a single JSON document on disk.
type File struct {
	path string
	perm fs.FileMode
}

// NewFile returns a file store writing to path. The parent directory is
// created on first save.
func NewFile(path string) *File {
	return &File{path: path, perm: 0o644}
}

func (f *File) Path() string {
	return f.path
}

// Load returns an empty map when the file does not exist yet.
func (f *File) Load(_ context.Context) (map[string][]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string][]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}
	if len(data) == 0 {
		return map[string][]string{}, nil
	}
	return decodeEntries(data)
}

// Save writes entries to a temporary file in the same directory and renames it
// over the target, so readers never observe a partially written document.
func (f *File) Save(_ context.Context, entries map[string][]string) error {
	data, err := encodeEntries(entries)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp registry file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp registry file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp registry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp registry file: %w", err)
	}
	if err := os.Chmod(tmpName, f.perm); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp registry file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		cleanup()
		return fmt.Errorf("replace registry file: %w", err)
	}
	return nil
}
