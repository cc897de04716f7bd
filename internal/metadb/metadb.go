// Package metadb implements pygr's key-value metadata file (spec 4.A's
// "pygr.db"): small facts that don't belong in the declarative state
// grammar or a generation manifest. The CLI writes backup entry
// descriptions here; repo cache refresh times are not recorded.
package metadb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DB is a flat string-keyed map persisted to a single JSON file via
// atomic temp-write-rename, mirroring the write discipline used
// throughout pygr's other on-disk formats (internal/state,
// internal/userconfig).
type DB struct {
	Path string
}

// Open returns a DB backed by path. The file is read lazily by Get/All
// and created lazily by Set; Open itself performs no I/O.
func Open(path string) *DB {
	return &DB{Path: path}
}

func (d *DB) load() (map[string]string, error) {
	data, err := os.ReadFile(d.Path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("metadb: read %s: %w", d.Path, err)
	}
	m := map[string]string{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("metadb: parse %s: %w", d.Path, err)
	}
	return m, nil
}

func (d *DB) save(m map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(d.Path), 0o700); err != nil {
		return fmt.Errorf("metadb: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("metadb: marshal: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(d.Path), ".pygr-db-*")
	if err != nil {
		return fmt.Errorf("metadb: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("metadb: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("metadb: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("metadb: close: %w", err)
	}
	return os.Rename(tmpPath, d.Path)
}

// Get returns the value stored under key, and whether it was present.
func (d *DB) Get(key string) (string, bool, error) {
	m, err := d.load()
	if err != nil {
		return "", false, err
	}
	v, ok := m[key]
	return v, ok, nil
}

// Set stores value under key.
func (d *DB) Set(key, value string) error {
	m, err := d.load()
	if err != nil {
		return err
	}
	m[key] = value
	return d.save(m)
}

// Delete removes key, a no-op if it is not present.
func (d *DB) Delete(key string) error {
	m, err := d.load()
	if err != nil {
		return err
	}
	delete(m, key)
	return d.save(m)
}

// Prefix returns every key with the given prefix, with the prefix
// stripped from the returned keys, as an unordered map.
func (d *DB) Prefix(prefix string) (map[string]string, error) {
	m, err := d.load()
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	for k, v := range m {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out[k[len(prefix):]] = v
		}
	}
	return out, nil
}

// Keys returns every key currently stored, sorted.
func (d *DB) Keys() ([]string, error) {
	m, err := d.load()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
