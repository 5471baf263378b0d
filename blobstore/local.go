package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hupe1980/docgo/internal/fs"
)

// LocalStore implements Store using the local file system. Writes go through
// a temp file and rename so a crash never leaves a half-written bundle.
type LocalStore struct {
	fs   fs.FileSystem
	root string
}

// NewLocalStore creates a LocalStore rooted at the given directory.
func NewLocalStore(root string) *LocalStore {
	return NewLocalStoreFS(fs.Default, root)
}

// NewLocalStoreFS creates a LocalStore over a custom file system, e.g. a
// fault-injecting one in tests.
func NewLocalStoreFS(fsys fs.FileSystem, root string) *LocalStore {
	return &LocalStore{fs: fsys, root: root}
}

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Get reads a blob in full.
func (s *LocalStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.fs.OpenFile(s.path(name), os.O_RDONLY, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

// Put writes a blob atomically via temp file and rename.
func (s *LocalStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := s.path(name)
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := s.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = s.fs.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = s.fs.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(tmp)
		return err
	}

	return s.fs.Rename(tmp, path)
}

// Delete removes a blob.
func (s *LocalStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.fs.Remove(s.path(name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Exists reports whether a blob is present.
func (s *LocalStore) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.Stat(ctx, name)
	if err != nil {
		if err == ErrNotFound || os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Stat returns a blob's metadata.
func (s *LocalStore) Stat(ctx context.Context, name string) (FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return FileInfo{}, err
	}

	info, err := s.fs.Stat(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return FileInfo{}, ErrNotFound
		}
		return FileInfo{}, err
	}
	return FileInfo{Name: name, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// List returns all blob names under root with the given prefix, sorted, using
// forward slashes regardless of platform.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var names []string
	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := s.fs.ReadDir(filepath.Join(s.root, dir))
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		for _, entry := range entries {
			rel := entry.Name()
			if dir != "" {
				rel = dir + "/" + entry.Name()
			}
			if entry.IsDir() {
				if err := walk(rel); err != nil {
					return err
				}
				continue
			}
			if strings.HasSuffix(rel, ".tmp") {
				continue
			}
			if prefix == "" || strings.HasPrefix(rel, prefix) {
				names = append(names, rel)
			}
		}
		return nil
	}

	if err := walk(""); err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
