package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileKV stores one file per key. Keys without an explicit location are
// stored as <dir>/<key>.json.
type FileKV struct {
	dir   string
	files map[string]string
}

// NewFileKV creates a file-backed store rooted at dir. files maps keys to
// fixed locations (for example the config hash lives next to the registries).
func NewFileKV(dir string, files map[string]string) *FileKV {
	m := make(map[string]string, len(files))
	for k, v := range files {
		m[k] = v
	}
	return &FileKV{dir: dir, files: m}
}

// Path returns the file backing key.
func (f *FileKV) Path(key string) string {
	if p, ok := f.files[key]; ok && p != "" {
		return p
	}
	return filepath.Join(f.dir, key+".json")
}

// Read returns the stored bytes or ErrNotFound.
func (f *FileKV) Read(key string) ([]byte, error) {
	data, err := os.ReadFile(f.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Write replaces the value atomically: a temp file in the same directory is
// written then renamed over the target.
func (f *FileKV) Write(key string, value []byte) error {
	path := f.Path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", key, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", key, err)
	}
	return nil
}

// Delete removes the file backing key.
func (f *FileKV) Delete(key string) error {
	if err := os.Remove(f.Path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Close is a no-op for the file backend.
func (f *FileKV) Close() error { return nil }
