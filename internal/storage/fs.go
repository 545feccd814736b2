package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/yourview/yourview/internal/checksum"
	"github.com/yourview/yourview/internal/models"
)

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to media directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
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

// Root returns the absolute store root.
func (f *FS) Root() string { return f.root }

// safePath resolves a key against the root and rejects any result that
// escapes it.
func (f *FS) safePath(key string) (string, error) {
	if key == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", key)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes media root: %s", key)
	}
	return abs, nil
}

// Path returns the absolute path for key.
func (f *FS) Path(key string) (string, error) {
	return f.safePath(key)
}

// KeyFor converts an absolute path under the root into a key.
func (f *FS) KeyFor(abs string) (string, error) {
	rel, err := filepath.Rel(f.root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("storage: %s is outside media root", abs)
	}
	return filepath.ToSlash(rel), nil
}

// List walks prefix and returns metadata for every regular file. Temporary
// files from in-flight writes are skipped.
func (f *FS) List(prefix string) ([]models.ObjectInfo, error) {
	base, err := f.safePath(prefix)
	if err != nil {
		return nil, err
	}
	var out []models.ObjectInfo
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) && p == base {
				return fs.SkipDir
			}
			return walkErr
		}
		if d.IsDir() || IsTemp(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		key, err := f.KeyFor(p)
		if err != nil {
			return err
		}
		out = append(out, models.ObjectInfo{
			Key:       key,
			Size:      info.Size(),
			Checksum:  checksum.Sum(data),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

// Read returns the raw bytes of an object.
func (f *FS) Read(key string) ([]byte, error) {
	abs, err := f.safePath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", key, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(key string, content []byte) error {
	abs, err := f.safePath(key)
	if err != nil {
		return err
	}
	if abs == f.root {
		return fmt.Errorf("storage: empty key")
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

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

// Delete removes an object.
func (f *FS) Delete(key string) error {
	abs, err := f.safePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

const tempPrefix = ".yourview-tmp-"

// IsTemp reports whether name is an in-flight write.
func IsTemp(name string) bool {
	return strings.HasPrefix(name, tempPrefix)
}
