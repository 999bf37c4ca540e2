// Package local implements durable session storage on the local filesystem.
//
// Every key lives in its own file under <dir>/<namespace>/, so entries can be
// written and removed independently. Writes go to a temporary file that is
// renamed over the target, which keeps a single entry from ever being torn.
package local

import (
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-storefront/internal/domain/auth"
)

// Namespace is the directory that groups storefront entries.
const Namespace = "storefront"

var _ auth.Storage = (*FileStorage)(nil)

var validKey = regexp.MustCompile(`^[a-z0-9_]+$`)

// FileStorage stores entries as files.
type FileStorage struct {
	dir string
}

// NewFileStorage creates the namespace directory under dir if needed.
func NewFileStorage(dir string) (*FileStorage, error) {
	path := filepath.Join(dir, Namespace)
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, errors.Wrap(err, "create storage dir")
	}
	return &FileStorage{dir: path}, nil
}

// DefaultDir returns the per-user configuration directory.
func DefaultDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "user config dir")
	}
	return dir, nil
}

// Dir returns the namespace directory.
func (s *FileStorage) Dir() string { return s.dir }

// Get implements auth.Storage.
func (s *FileStorage) Get(key string) (string, bool, error) {
	path, err := s.path(key)
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "read %s", key)
	}
	return string(data), true, nil
}

// Set implements auth.Storage.
func (s *FileStorage) Set(key, value string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+key+".*")
	if err != nil {
		return errors.Wrapf(err, "create temp for %s", key)
	}
	defer func() {
		// No-op after a successful rename.
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "write %s", key)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "sync %s", key)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", key)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "replace %s", key)
	}
	return nil
}

// Delete implements auth.Storage.
func (s *FileStorage) Delete(key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "delete %s", key)
	}
	return nil
}

func (s *FileStorage) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", errors.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.dir, key), nil
}

var _ auth.Storage = (*MemoryStorage)(nil)

// MemoryStorage keeps entries in memory. It is used when persistence is
// disabled and in tests.
type MemoryStorage struct {
	mu      sync.Mutex
	entries map[string]string
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: make(map[string]string)}
}

// Get implements auth.Storage.
func (m *MemoryStorage) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

// Set implements auth.Storage.
func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

// Delete implements auth.Storage.
func (m *MemoryStorage) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
