// Package storage manages the artifacts a run writes into its output directories.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// Store defines the interface for artifact storage.
type Store interface {
	Create(name string) (io.WriteCloser, error)
	Remove(name string) error
	Exists(name string) (bool, error)
	Size(name string) (int64, error)
	Purge(ext string) (int, error)
	List() ([]string, error)
	LocalPath(name string) string
}

// OutputStore implements Store on top of a billy filesystem rooted at an
// output directory.
type OutputStore struct {
	mu sync.Mutex
	fs billy.Filesystem
}

// NewOutputStore creates the directory if needed and returns a store rooted there.
func NewOutputStore(dir string) (*OutputStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return NewOutputStoreFS(osfs.New(dir)), nil
}

// NewOutputStoreFS wraps an existing filesystem.
func NewOutputStoreFS(fs billy.Filesystem) *OutputStore {
	return &OutputStore{fs: fs}
}

// Create truncates or creates a file. Prior content is discarded.
func (s *OutputStore) Create(name string) (io.WriteCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(name); dir != "." {
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	f, err := s.fs.Create(name)
	if err != nil {
		return nil, fmt.Errorf("creating file %s: %w", name, err)
	}
	return f, nil
}

// Remove deletes a file. A missing file is not an error.
func (s *OutputStore) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.Remove(name); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// Exists reports whether name exists.
func (s *OutputStore) Exists(name string) (bool, error) {
	_, err := s.fs.Stat(name)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Size returns the size of a file in bytes.
func (s *OutputStore) Size(name string) (int64, error) {
	info, err := s.fs.Stat(name)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", name, err)
	}
	return info.Size(), nil
}

// Purge removes every top level file with the given extension and returns
// how many were removed.
func (s *OutputStore) Purge(ext string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.fs.ReadDir(".")
	if err != nil {
		return 0, fmt.Errorf("listing output directory: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		if err := s.fs.Remove(e.Name()); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("deleting %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}

// List returns the top level file names sorted by name.
func (s *OutputStore) List() ([]string, error) {
	entries, err := s.fs.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("listing output directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// LocalPath returns the host path of name, for drivers that open files themselves.
func (s *OutputStore) LocalPath(name string) string {
	return filepath.Join(s.fs.Root(), name)
}
