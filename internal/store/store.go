// Package store implements the content-addressed Store (spec 4.H):
// immutable installed-artifact directories keyed by build fingerprint,
// plus the manifest format each artifact carries.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest records the provenance spec 4.H's artifact manifest requires:
// package name, version, dependency store keys, fetched ref, source-tree
// fingerprint, build timestamp (spec §3 "Installed Artifact").
type Manifest struct {
	Name                  string    `yaml:"name"`
	Version               string    `yaml:"version"`
	DependencyKeys        []string  `yaml:"dependency_keys"`
	FetchedRef            string    `yaml:"fetched_ref"`
	SourceTreeFingerprint string    `yaml:"source_tree_fingerprint"`
	BuildTimestamp        time.Time `yaml:"build_timestamp"`
}

// manifestFilename is the manifest's name inside an artifact directory.
const manifestFilename = "manifest"

// Store is the append-mostly content-addressed artifact directory
// rooted at dir (spec 4.H). Deletions happen only via compaction, which
// this spec explicitly leaves uncovered (spec §1 non-goals list
// compaction as a user-initiated step not specified here).
type Store struct {
	Dir string
}

// New returns a Store rooted at dir. The directory is assumed to already
// exist (spec 4.A creates it during layout setup).
func New(dir string) *Store {
	return &Store{Dir: dir}
}

// path returns the artifact directory for key.
func (s *Store) path(key string) string {
	return filepath.Join(s.Dir, key)
}

// Has reports whether an artifact is present at key.
func (s *Store) Has(key string) bool {
	info, err := os.Stat(s.path(key))
	return err == nil && info.IsDir()
}

// Insert atomically moves stagingDir into the store at key. If the
// destination already exists — a race between two builders computing
// the same content-addressed key — that is treated as success and the
// staging copy is discarded, per spec 4.H ("failure if destination
// exists is treated as success").
func (s *Store) Insert(stagingDir, key string) error {
	dest := s.path(key)
	if s.Has(key) {
		_ = os.RemoveAll(stagingDir)
		return nil
	}
	if err := os.Rename(stagingDir, dest); err != nil {
		if s.Has(key) {
			_ = os.RemoveAll(stagingDir)
			return nil
		}
		return fmt.Errorf("store: insert %s: %w", key, err)
	}
	return nil
}

// ArtifactManifest parses and returns the manifest recorded inside the
// artifact at key.
func (s *Store) ArtifactManifest(key string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.path(key), manifestFilename))
	if err != nil {
		return nil, fmt.Errorf("store: read manifest for %s: %w", key, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("store: parse manifest for %s: %w", key, err)
	}
	return &m, nil
}

// WriteManifest writes m into the manifest file inside dir (typically a
// staging prefix, written by the Builder before the atomic Insert per
// spec 4.F step 8).
func WriteManifest(dir string, m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("store: marshal manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, manifestFilename), data, 0o644)
}

// Enumerate lists every key currently in the store, for compaction (spec
// 4.H).
func (s *Store) Enumerate() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: enumerate: %w", err)
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() {
			keys = append(keys, e.Name())
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Remove deletes the artifact at key. Callers are responsible for
// checking, via Profile Generations, that no live generation references
// it first (spec §3 I4).
func (s *Store) Remove(key string) error {
	return os.RemoveAll(s.path(key))
}

// ArtifactPath returns the filesystem path of the artifact at key,
// without checking existence.
func (s *Store) ArtifactPath(key string) string {
	return s.path(key)
}

// Size returns the total size in bytes of every regular file under the
// artifact at key, for "status"/"generations" reporting.
func (s *Store) Size(key string) (int64, error) {
	var total int64
	err := filepath.Walk(s.path(key), func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store: size %s: %w", key, err)
	}
	return total, nil
}
