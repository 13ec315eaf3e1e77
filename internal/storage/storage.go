// Package storage persists rendered digests.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned by Get for unknown digest names.
var ErrNotFound = errors.New("digest not found")

// Store saves and lists digests by name.
type Store interface {
	Save(ctx context.Context, name string, body []byte) (string, error)
	Get(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context) ([]string, error)
	Close() error
}

// FileName is the digest name for the given day.
func FileName(date time.Time) string {
	return fmt.Sprintf("digest-%s.md", date.UTC().Format("2006-01-02"))
}

// validName rejects names that could escape the store's namespace.
func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid digest name %q", name)
	}
	return nil
}

// FileStore writes digests into a local directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir. An empty dir means ".".
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = "."
	}
	return &FileStore{dir: dir}
}

// Save writes body to dir/name, replacing any existing file.
func (s *FileStore) Save(ctx context.Context, name string, body []byte) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("writing digest: %w", err)
	}
	return path, nil
}

// Get reads a saved digest.
func (s *FileStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading digest: %w", err)
	}
	return data, nil
}

// List returns saved digest names, newest first.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "digest-*.md"))
	if err != nil {
		return nil, fmt.Errorf("listing digests: %w", err)
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	sortNewestFirst(names)
	return names, nil
}

// Close is a no-op.
func (s *FileStore) Close() error {
	return nil
}

// MemoryStore keeps digests in memory.
type MemoryStore struct {
	mutex   sync.RWMutex
	digests map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{digests: make(map[string][]byte)}
}

// Save stores a copy of body under name.
func (s *MemoryStore) Save(ctx context.Context, name string, body []byte) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.digests[name] = append([]byte(nil), body...)
	return "memory://" + name, nil
}

// Get returns a stored digest.
func (s *MemoryStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	body, ok := s.digests[name]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), body...), nil
}

// List returns stored names, newest first.
func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	names := make([]string, 0, len(s.digests))
	for name := range s.digests {
		names = append(names, name)
	}
	sortNewestFirst(names)
	return names, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// Date-stamped names sort chronologically as strings.
func sortNewestFirst(names []string) {
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
}
