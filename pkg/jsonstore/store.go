// Package jsonstore persists record collections as JSON documents on disk.
//
// Every operation is a whole-document read-modify-write guarded by a
// per-collection mutex, so concurrent requests within one process cannot
// lose writes. Collections are read fresh on every call; nothing is cached
// between requests.
package jsonstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store manages JSON collection files under a single directory.
type Store struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

func (s *Store) lock(collection string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[collection]
	if !ok {
		l = &sync.Mutex{}
		s.locks[collection] = l
	}
	return l
}

func (s *Store) path(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

func readFile[T any](s *Store, collection string) ([]T, error) {
	raw, err := os.ReadFile(s.path(collection))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}
	var records []T
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", collection, err)
	}
	return records, nil
}

func writeFile[T any](s *Store, collection string, records []T) error {
	if records == nil {
		records = []T{}
	}
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", collection, err)
	}
	tmp := s.path(collection) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", collection, err)
	}
	if err := os.Rename(tmp, s.path(collection)); err != nil {
		return fmt.Errorf("replace %s: %w", collection, err)
	}
	return nil
}

// ReadAll returns every record in the collection. A missing file is an
// empty collection, not an error.
func ReadAll[T any](s *Store, collection string) ([]T, error) {
	l := s.lock(collection)
	l.Lock()
	defer l.Unlock()
	return readFile[T](s, collection)
}

// FindBy returns the first record matching the predicate.
func FindBy[T any](s *Store, collection string, match func(T) bool) (*T, bool, error) {
	records, err := ReadAll[T](s, collection)
	if err != nil {
		return nil, false, err
	}
	for i := range records {
		if match(records[i]) {
			return &records[i], true, nil
		}
	}
	return nil, false, nil
}

// Append adds a record to the end of the collection.
func Append[T any](s *Store, collection string, record T) error {
	return Mutate(s, collection, func(records []T) ([]T, error) {
		return append(records, record), nil
	})
}

// UpdateWhere applies the patch to every record matching the predicate and
// returns the number of records changed.
func UpdateWhere[T any](s *Store, collection string, match func(T) bool, patch func(*T)) (int, error) {
	updated := 0
	err := Mutate(s, collection, func(records []T) ([]T, error) {
		for i := range records {
			if match(records[i]) {
				patch(&records[i])
				updated++
			}
		}
		return records, nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// Mutate runs fn over the full collection under its lock and writes back the
// result. Returning an error from fn abandons the write.
func Mutate[T any](s *Store, collection string, fn func([]T) ([]T, error)) error {
	l := s.lock(collection)
	l.Lock()
	defer l.Unlock()

	records, err := readFile[T](s, collection)
	if err != nil {
		return err
	}
	out, err := fn(records)
	if err != nil {
		return err
	}
	return writeFile(s, collection, out)
}
