package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps the snapshot in a JSON file inside a directory.
type FileStore struct {
	key  string
	path string
}

// NewFileStore creates a file-backed store rooted at dir.
func NewFileStore(dir, key string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &PersistenceError{Op: "init", Key: key, Err: err}
	}
	name := strings.NewReplacer(":", "_", "/", "_").Replace(key) + ".json"
	return &FileStore{key: key, path: filepath.Join(dir, name)}, nil
}

func (s *FileStore) Key() string {
	return s.key
}

// Path returns the file the snapshot is written to.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Save(_ context.Context, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".snapshot-*")
	if err != nil {
		return &PersistenceError{Op: "save", Key: s.key, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &PersistenceError{Op: "save", Key: s.key, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &PersistenceError{Op: "save", Key: s.key, Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return &PersistenceError{Op: "save", Key: s.key, Err: err}
	}
	return nil
}

func (s *FileStore) Load(_ context.Context) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &PersistenceError{Op: "load", Key: s.key, Err: err}
	}
	return data, true, nil
}

func (s *FileStore) Clear(_ context.Context) error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return &PersistenceError{Op: "clear", Key: s.key, Err: err}
	}
	return nil
}
