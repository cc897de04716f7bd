// Package state implements Declarative State (spec 4.J): the ordered,
// line-based package list that must stay consistent with the store
// after every mutation.
package state

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stefan-hacks/pygr/internal/errmsg"
	"github.com/stefan-hacks/pygr/internal/log"
)

// Origin identifies which grammar alternative an Entry parsed from
// (spec §3's entry grammar).
type Origin string

const (
	OriginSystem     Origin = "system"
	OriginRemoteRepo Origin = "remote-repo"
	OriginRecipe     Origin = "recipe"
)

// Entry is one parsed line of the declarative state file.
type Entry struct {
	Origin Origin
	// PM is set only for system: entries ("system:apt:curl" -> PM "apt").
	PM string
	// Name is the package/recipe/repo name.
	Name string
	// Ref is the tag/branch/commit for remote-repo entries, or the
	// version for recipe entries. Empty for system entries, and for
	// remote-repo entries with no "@REF" suffix.
	Ref string
}

// String renders e back into its grammar line.
func (e Entry) String() string {
	switch e.Origin {
	case OriginSystem:
		return fmt.Sprintf("system:%s:%s", e.PM, e.Name)
	case OriginRemoteRepo:
		if e.Ref == "" {
			return fmt.Sprintf("remote-repo:%s", e.Name)
		}
		return fmt.Sprintf("remote-repo:%s@%s", e.Name, e.Ref)
	case OriginRecipe:
		return fmt.Sprintf("recipe:%s@%s", e.Name, e.Ref)
	default:
		return ""
	}
}

// key identifies an entry for duplicate detection: same origin and
// name collide regardless of ref, matching "Duplicate entries are
// forbidden; read loads the last occurrence and warns" (spec §3).
func (e Entry) key() string {
	return string(e.Origin) + ":" + e.Name
}

// MalformedLineError reports a state-file line that matches none of the
// grammar's alternatives.
type MalformedLineError struct {
	Line int
	Text string
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("state: malformed entry at line %d: %q", e.Line, e.Text)
}
func (e *MalformedLineError) ErrorKind() errmsg.Kind { return errmsg.KindUserError }

// State manages the declarative state file at Path (spec 4.A's
// config.StateFile).
type State struct {
	Path   string
	Logger log.Logger
}

// New returns a State backed by path.
func New(path string) *State {
	return &State{Path: path, Logger: log.Default()}
}

// Read parses the state file, returning entries in file order with
// duplicates (by origin+name) collapsed to their last occurrence (spec
// §3). A missing file reads as empty.
func (s *State) Read() ([]Entry, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("state: open: %w", err)
	}
	defer f.Close()

	order := []string{}
	byKey := map[string]Entry{}

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		e, err := parseLine(raw)
		if err != nil {
			return nil, &MalformedLineError{Line: lineNo, Text: raw}
		}
		k := e.key()
		if _, seen := byKey[k]; seen {
			s.Logger.Warn("duplicate declarative state entry, keeping last occurrence", "entry", k, "line", lineNo)
		} else {
			order = append(order, k)
		}
		byKey[k] = e
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("state: scan: %w", err)
	}

	entries := make([]Entry, 0, len(order))
	for _, k := range order {
		entries = append(entries, byKey[k])
	}
	return entries, nil
}

func parseLine(line string) (Entry, error) {
	switch {
	case strings.HasPrefix(line, "system:"):
		rest := strings.TrimPrefix(line, "system:")
		parts := strings.SplitN(rest, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return Entry{}, fmt.Errorf("state: bad system entry %q", line)
		}
		return Entry{Origin: OriginSystem, PM: parts[0], Name: parts[1]}, nil

	case strings.HasPrefix(line, "remote-repo:"):
		rest := strings.TrimPrefix(line, "remote-repo:")
		name, ref, _ := strings.Cut(rest, "@")
		if name == "" {
			return Entry{}, fmt.Errorf("state: bad remote-repo entry %q", line)
		}
		return Entry{Origin: OriginRemoteRepo, Name: name, Ref: ref}, nil

	case strings.HasPrefix(line, "recipe:"):
		rest := strings.TrimPrefix(line, "recipe:")
		name, ref, ok := strings.Cut(rest, "@")
		if !ok || name == "" || ref == "" {
			return Entry{}, fmt.Errorf("state: bad recipe entry %q", line)
		}
		return Entry{Origin: OriginRecipe, Name: name, Ref: ref}, nil

	default:
		return Entry{}, fmt.Errorf("state: unrecognized entry %q", line)
	}
}

// Write replaces the state file's contents with entries via a
// temp-file-plus-fsync-plus-rename sequence (spec 4.J's write()).
func (s *State) Write(entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("state: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.Path), ".packages-*.tmp")
	if err != nil {
		return fmt.Errorf("state: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := bufio.NewWriter(tmp)
	for _, e := range entries {
		if _, err := fmt.Fprintln(w, e.String()); err != nil {
			tmp.Close()
			return fmt.Errorf("state: write entry: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("state: flush: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("state: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("state: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		return fmt.Errorf("state: rename: %w", err)
	}
	return nil
}

// Export reads the state file and writes its parsed entries to path via
// the same temp-write-fsync-rename sequence Write uses, since the wire
// format is exactly the state-file grammar (spec 4.J expansion).
// Comments and blank lines are not carried over, and duplicates are
// collapsed as Read collapses them.
func (s *State) Export(path string) error {
	entries, err := s.Read()
	if err != nil {
		return err
	}
	exported := &State{Path: path, Logger: s.Logger}
	return exported.Write(entries)
}

// Import reads path as a state file and writes its entries as the real
// declarative state (spec 4.J expansion). A malformed line in path
// surfaces the same MalformedLineError Read would raise against the
// real state file.
func (s *State) Import(path string) error {
	source := &State{Path: path, Logger: s.Logger}
	entries, err := source.Read()
	if err != nil {
		return err
	}
	return s.Write(entries)
}

// ManifestLine is the subset of a profile generation's manifest this
// package needs to rebuild declarative entries from it, decoupling
// this package from internal/profile's concrete Manifest type.
type ManifestLine struct {
	Origin Origin
	PM     string
	Name   string
	Ref    string
}

// SyncFromCurrent rewrites entries from the current generation's
// manifest lines, preserving existing system: entries (they live
// outside the store and are never reflected in a generation's manifest
// on their own) (spec 4.J's sync_from_current()).
func (s *State) SyncFromCurrent(manifestLines []ManifestLine) error {
	existing, err := s.Read()
	if err != nil {
		return err
	}

	var rebuilt []Entry
	for _, e := range existing {
		if e.Origin == OriginSystem {
			rebuilt = append(rebuilt, e)
		}
	}
	for _, ml := range manifestLines {
		rebuilt = append(rebuilt, Entry{Origin: ml.Origin, PM: ml.PM, Name: ml.Name, Ref: ml.Ref})
	}
	return s.Write(dedupeKeepLast(rebuilt))
}

func dedupeKeepLast(entries []Entry) []Entry {
	order := []string{}
	byKey := map[string]Entry{}
	for _, e := range entries {
		k := e.key()
		if _, seen := byKey[k]; !seen {
			order = append(order, k)
		}
		byKey[k] = e
	}
	out := make([]Entry, 0, len(order))
	for _, k := range order {
		out = append(out, byKey[k])
	}
	return out
}

// Installer is invoked by Apply for each entry missing from the
// current generation. Implemented by the CLI's install path.
type Installer interface {
	Install(e Entry) error
}

// Apply reads entries and invokes install for every one not already
// present, in file order (spec 4.J's apply()). installed reports which
// entries (by key) are already present in the current generation so
// Apply can skip them.
func (s *State) Apply(installed func(Entry) bool, installer Installer) error {
	entries, err := s.Read()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if installed(e) {
			continue
		}
		if err := installer.Install(e); err != nil {
			return fmt.Errorf("state: apply %s: %w", e.String(), err)
		}
	}
	return nil
}
