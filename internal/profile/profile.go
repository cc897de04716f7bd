// Package profile implements Profile Generations (spec 4.I): building a
// new numbered generation of symlinks from a set of store artifacts,
// atomically publishing it as "current", and rolling back.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stefan-hacks/pygr/internal/errmsg"
	"github.com/stefan-hacks/pygr/internal/log"
	"github.com/stefan-hacks/pygr/internal/store"
)

const genPrefix = "gen-"

// NoPreviousGenerationError reports Rollback with no previous
// generation to swap to (spec 4.I, error kind NoPreviousGeneration).
type NoPreviousGenerationError struct{}

func (e *NoPreviousGenerationError) Error() string { return "no previous generation to roll back to" }
func (e *NoPreviousGenerationError) ErrorKind() errmsg.Kind {
	return errmsg.KindNoPreviousGeneration
}

// Manifest is a generation's own manifest file (spec 4.I step 3):
// included artifact keys and the declarative-state snapshot at publish
// time.
type Manifest struct {
	ArtifactKeys  []string  `yaml:"artifact_keys"`
	DeclaredLines []string  `yaml:"declared_lines"`
	PublishedAt   time.Time `yaml:"published_at"`
}

// Generations manages <profiles>/gen-<N>, current, previous.
type Generations struct {
	Dir    string
	Store  *store.Store
	Logger log.Logger
}

// New returns a Generations manager rooted at dir.
func New(dir string, s *store.Store) *Generations {
	return &Generations{Dir: dir, Store: s, Logger: log.Default()}
}

// List returns existing generation numbers, ascending.
func (g *Generations) List() ([]int, error) {
	entries, err := os.ReadDir(g.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("profile: list generations: %w", err)
	}
	var nums []int
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), genPrefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(e.Name(), genPrefix))
		if err != nil {
			continue
		}
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums, nil
}

func (g *Generations) nextNumber() (int, error) {
	nums, err := g.List()
	if err != nil {
		return 0, err
	}
	if len(nums) == 0 {
		return 1, nil
	}
	return nums[len(nums)-1] + 1, nil
}

func (g *Generations) genDir(n int) string {
	return filepath.Join(g.Dir, fmt.Sprintf("%s%d", genPrefix, n))
}

// Publish builds the next generation from keys (spec 4.I steps 1-4).
// declaredLines is the declarative-state snapshot to embed in the
// generation's manifest (spec 4.J's state, not this package's own
// format). Overlapping executable names are resolved "last wins", with
// an Overlap warning appended to the generation's log file and returned
// to the caller for display.
//
// Callers are expected to hold the root lock for the duration of
// allocate-number -> create-gen -> swap-current (spec §5); this
// function does not take the lock itself, so composition with
// internal/lockfile and internal/state's write-after-publish ordering
// is the caller's responsibility.
func (g *Generations) Publish(keys []string, declaredLines []string) (int, []string, error) {
	n, err := g.nextNumber()
	if err != nil {
		return 0, nil, err
	}
	dir := g.genDir(n)
	binDir := filepath.Join(dir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return 0, nil, fmt.Errorf("profile: create generation dir: %w", err)
	}

	var warnings []string
	linked := map[string]string{} // executable name -> artifact key that provided it

	for _, key := range keys {
		artifactDir := g.Store.ArtifactPath(key)
		artifactBin := filepath.Join(artifactDir, "bin")
		entries, err := os.ReadDir(artifactBin)
		if err != nil {
			continue // artifact offers no bin/ directory
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			linkPath := filepath.Join(binDir, e.Name())
			if prev, overlap := linked[e.Name()]; overlap {
				warnings = append(warnings, fmt.Sprintf("Overlap: %s provided by both %s and %s, %s wins", e.Name(), prev, key, key))
				os.Remove(linkPath)
			}
			target := filepath.Join(artifactBin, e.Name())
			if err := os.Symlink(target, linkPath); err != nil {
				return 0, nil, fmt.Errorf("profile: symlink %s: %w", e.Name(), err)
			}
			linked[e.Name()] = key
		}
	}

	if len(warnings) > 0 {
		logPath := filepath.Join(dir, "log")
		_ = os.WriteFile(logPath, []byte(strings.Join(warnings, "\n")+"\n"), 0o644)
	}

	m := Manifest{ArtifactKeys: append([]string{}, keys...), DeclaredLines: declaredLines, PublishedAt: time.Now().UTC()}
	data, err := yaml.Marshal(m)
	if err != nil {
		return 0, nil, fmt.Errorf("profile: marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest"), data, 0o644); err != nil {
		return 0, nil, fmt.Errorf("profile: write manifest: %w", err)
	}

	if err := g.retarget(dir); err != nil {
		return 0, nil, err
	}

	return n, warnings, nil
}

// retarget atomically points current at dir, moving the prior current
// to previous (spec 4.I step 4). Both symlink renames use a temp name
// plus os.Rename for atomicity on the same filesystem.
func (g *Generations) retarget(dir string) error {
	currentPath := filepath.Join(g.Dir, "current")
	previousPath := filepath.Join(g.Dir, "previous")

	priorCurrent, hadCurrent := os.Readlink(currentPath)
	if hadCurrent != nil {
		priorCurrent = ""
	}

	if err := atomicSymlink(dir, currentPath); err != nil {
		return fmt.Errorf("profile: retarget current: %w", err)
	}
	if priorCurrent != "" {
		if err := atomicSymlink(priorCurrent, previousPath); err != nil {
			return fmt.Errorf("profile: retarget previous: %w", err)
		}
	}
	return nil
}

func atomicSymlink(target, linkPath string) error {
	tmp := linkPath + ".tmp"
	os.Remove(tmp)
	if err := os.Symlink(target, tmp); err != nil {
		return err
	}
	return os.Rename(tmp, linkPath)
}

// Rollback swaps current and previous (spec 4.I "Rollback").
func (g *Generations) Rollback() error {
	currentPath := filepath.Join(g.Dir, "current")
	previousPath := filepath.Join(g.Dir, "previous")

	prev, err := os.Readlink(previousPath)
	if err != nil {
		return &NoPreviousGenerationError{}
	}
	cur, err := os.Readlink(currentPath)
	if err != nil {
		cur = ""
	}

	if err := atomicSymlink(prev, currentPath); err != nil {
		return fmt.Errorf("profile: rollback retarget current: %w", err)
	}
	if cur != "" {
		if err := atomicSymlink(cur, previousPath); err != nil {
			return fmt.Errorf("profile: rollback retarget previous: %w", err)
		}
	}
	return nil
}

// CurrentManifest reads the manifest of the generation current points
// to.
func (g *Generations) CurrentManifest() (*Manifest, error) {
	dir, err := os.Readlink(filepath.Join(g.Dir, "current"))
	if err != nil {
		return nil, fmt.Errorf("profile: read current: %w", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "manifest"))
	if err != nil {
		return nil, fmt.Errorf("profile: read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("profile: parse manifest: %w", err)
	}
	return &m, nil
}

// CurrentBinDir returns the bin directory of the generation current
// points to, for the CLI's "path" command (spec §6).
func (g *Generations) CurrentBinDir() (string, error) {
	dir, err := os.Readlink(filepath.Join(g.Dir, "current"))
	if err != nil {
		return "", fmt.Errorf("profile: read current: %w", err)
	}
	return filepath.Join(dir, "bin"), nil
}

// GenerationInfo summarizes one generation for the "generations" CLI
// command (spec 4.I expansion).
type GenerationInfo struct {
	Number       int
	PublishedAt  time.Time
	ArtifactKeys []string
	Current      bool
	Previous     bool
}

// ListInfo returns every generation's manifest summary, ascending by
// number.
func (g *Generations) ListInfo() ([]GenerationInfo, error) {
	nums, err := g.List()
	if err != nil {
		return nil, err
	}
	curNum, _ := g.currentNumber("current")
	prevNum, _ := g.currentNumber("previous")

	infos := make([]GenerationInfo, 0, len(nums))
	for _, n := range nums {
		data, err := os.ReadFile(filepath.Join(g.genDir(n), "manifest"))
		if err != nil {
			continue
		}
		var m Manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			continue
		}
		infos = append(infos, GenerationInfo{
			Number:       n,
			PublishedAt:  m.PublishedAt,
			ArtifactKeys: m.ArtifactKeys,
			Current:      n == curNum,
			Previous:     n == prevNum,
		})
	}
	return infos, nil
}

func (g *Generations) currentNumber(link string) (int, error) {
	dir, err := os.Readlink(filepath.Join(g.Dir, link))
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(dir), genPrefix))
	if err != nil {
		return 0, err
	}
	return n, nil
}

// GC deletes every generation directory beyond current, previous, and
// the keep most recent others, user-triggered only (spec 4.I
// expansion: "never automatically"). Store artifacts the deleted
// generations alone referenced are left untouched; that compaction
// remains a separate, still-unspecified step (spec §1 non-goals).
func (g *Generations) GC(keep int) ([]int, error) {
	nums, err := g.List()
	if err != nil {
		return nil, err
	}
	curNum, _ := g.currentNumber("current")
	prevNum, _ := g.currentNumber("previous")

	retain := map[int]bool{curNum: true, prevNum: true}
	for i := len(nums) - 1; i >= 0 && keep > 0; i-- {
		if retain[nums[i]] {
			continue
		}
		retain[nums[i]] = true
		keep--
	}

	var removed []int
	for _, n := range nums {
		if retain[n] {
			continue
		}
		if err := os.RemoveAll(g.genDir(n)); err != nil {
			return removed, fmt.Errorf("profile: gc generation %d: %w", n, err)
		}
		removed = append(removed, n)
	}
	return removed, nil
}
