package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Storage is the durable key-value surface the session is mirrored to.
// Access is synchronous; implementations must tolerate concurrent use.
// Absence of a key means no value; implementations never surface an
// empty-string sentinel for a deleted key.
type Storage interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool)
	// Set stores value under key.
	Set(key, value string) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
}

// MemoryStorage is an in-memory Storage, used in tests and as a
// non-persistent fallback.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStorage) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// FileStorage persists values to a single JSON file so a new process can
// rehydrate the session before any network call. Writes go through a
// temp file and rename.
type FileStorage struct {
	path string

	mu     sync.Mutex
	values map[string]string
}

// NewFileStorage opens (or creates) a file-backed store at path.
func NewFileStorage(path string) (*FileStorage, error) {
	fs := &FileStorage{
		path:   path,
		values: make(map[string]string),
	}

	raw, err := os.ReadFile(filepath.Clean(path))
	switch {
	case os.IsNotExist(err):
		// First run.
	case err != nil:
		return nil, fmt.Errorf("read credentials file: %w", err)
	default:
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &fs.values); err != nil {
				return nil, fmt.Errorf("parse credentials file: %w", err)
			}
		}
	}
	return fs, nil
}

func (f *FileStorage) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok
}

func (f *FileStorage) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return f.flushLocked()
}

func (f *FileStorage) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	return f.flushLocked()
}

func (f *FileStorage) flushLocked() error {
	raw, err := json.Marshal(f.values)
	if err != nil {
		return fmt.Errorf("serialize credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write credentials file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace credentials file: %w", err)
	}
	return nil
}
