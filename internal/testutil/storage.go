package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrInjected is returned by RecordingStorage when a failure is injected.
var ErrInjected = errors.New("injected storage failure")

// Write is one SetItem call observed by RecordingStorage.
type Write struct {
	Key   string
	Value string
}

// RecordingStorage is an in-memory persist.Storage that records every write
// and can be told to fail.
//
// Thread-safety: safe for concurrent use.
type RecordingStorage struct {
	mu        sync.Mutex
	items     map[string]string
	writes    []Write
	failGet   bool
	failSet   bool
	failedSet int
}

// NewRecordingStorage creates a storage pre-populated with items.
func NewRecordingStorage(items map[string]string) *RecordingStorage {
	s := &RecordingStorage{items: make(map[string]string, len(items))}
	for k, v := range items {
		s.items[k] = v
	}
	return s
}

// GetItem implements persist.Storage.
func (s *RecordingStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failGet {
		return "", false, ErrInjected
	}
	v, ok := s.items[key]
	return v, ok, nil
}

// SetItem implements persist.Storage.
func (s *RecordingStorage) SetItem(_ context.Context, key, val string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failSet {
		s.failedSet++
		return ErrInjected
	}
	s.items[key] = val
	s.writes = append(s.writes, Write{Key: key, Value: val})
	return nil
}

// FailReads makes subsequent GetItem calls fail.
func (s *RecordingStorage) FailReads(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failGet = fail
}

// FailWrites makes subsequent SetItem calls fail.
func (s *RecordingStorage) FailWrites(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSet = fail
}

// FailedWrites returns how many SetItem calls failed.
func (s *RecordingStorage) FailedWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failedSet
}

// Item returns the stored value at key.
func (s *RecordingStorage) Item(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	return v, ok
}

// Items returns a copy of everything stored.
func (s *RecordingStorage) Items() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string, len(s.items))
	for k, v := range s.items {
		out[k] = v
	}
	return out
}

// Keys returns the stored keys, sorted.
func (s *RecordingStorage) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Writes returns every successful write in call order.
func (s *RecordingStorage) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Write, len(s.writes))
	copy(out, s.writes)
	return out
}

// WritesTo returns the values written to key in call order.
func (s *RecordingStorage) WritesTo(key string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, w := range s.writes {
		if w.Key == key {
			out = append(out, w.Value)
		}
	}
	return out
}

// ResetWrites clears the write log but keeps the stored items.
func (s *RecordingStorage) ResetWrites() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = nil
}
