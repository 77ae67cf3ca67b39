package store

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps a slice of records durable as one indented JSON array in a
// single file. There are no incremental writes: Load reads the full snapshot,
// ReplaceAll rewrites it.
type FileStore[T any] struct {
	path string
	mu   sync.Mutex
}

func NewFileStore[T any](path string) (*FileStore[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	// Touch file if not exists
	f, err := os.OpenFile(path, os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("touch file: %w", err)
	}
	_ = f.Close()
	return &FileStore[T]{path: path}, nil
}

func (s *FileStore[T]) Path() string { return s.path }

// Load returns all persisted records. An empty or malformed file yields an
// empty slice rather than an error, so a fresh deployment starts clean.
func (s *FileStore[T]) Load() ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func(f *os.File) {
		err := f.Close()
		if err != nil {
		}
	}(f)
	var records []T
	dec := json.NewDecoder(f)
	if err := dec.Decode(&records); err != nil {
		if err == io.EOF {
			return []T{}, nil
		}
		// Malformed file -> start fresh, but never silently: the next
		// flush will overwrite whatever is in it.
		log.Printf("malformed store file %s, starting fresh: %v", s.path, err)
		return []T{}, nil
	}
	return records, nil
}

// ReplaceAll overwrites the backing file with the given snapshot. The write
// goes through a temp file plus rename so a crash mid-write cannot leave a
// torn file behind.
func (s *FileStore[T]) ReplaceAll(records []T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}
