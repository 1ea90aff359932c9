package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

// tomlDocument is the on-disk layout of a TOMLFile.
type tomlDocument struct {
	Items map[string]string `toml:"items"`
}

// TOMLFile keeps every item in one TOML file under an [items] table.
//
// The file is read once on open and rewritten in full on each SetItem.
//
// Thread-safety: safe for concurrent use within one process.
type TOMLFile struct {
	path string

	mu    sync.Mutex
	items map[string]string
}

// OpenTOMLFile loads path, or starts empty when the file does not exist.
// A file that exists but does not parse is an error.
func OpenTOMLFile(path string) (*TOMLFile, error) {
	f := &TOMLFile{path: path, items: make(map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return nil, fmt.Errorf("read storage file: %w", err)
	}

	var doc tomlDocument
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse storage file %s: %w", path, err)
	}
	for k, v := range doc.Items {
		f.items[k] = v
	}
	return f, nil
}

// Path returns the backing file path.
func (f *TOMLFile) Path() string {
	return f.path
}

// GetItem implements persist.Storage.
func (f *TOMLFile) GetItem(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.items[key]
	return v, ok, nil
}

// SetItem implements persist.Storage.
func (f *TOMLFile) SetItem(_ context.Context, key, val string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.items[key]
	f.items[key] = val
	if err := f.save(); err != nil {
		if had {
			f.items[key] = prev
		} else {
			delete(f.items, key)
		}
		return err
	}
	return nil
}

// Keys returns the stored keys, sorted.
func (f *TOMLFile) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(f.items))
	for k := range f.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// save writes the file through a temporary file and rename.
func (f *TOMLFile) save() error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}

	data, err := toml.Marshal(tomlDocument{Items: f.items})
	if err != nil {
		return fmt.Errorf("marshal storage file: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write storage file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write storage file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace storage file: %w", err)
	}
	return nil
}
