package recipe

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"gopkg.in/yaml.v3"

	"github.com/stefan-hacks/pygr/internal/errmsg"
	"github.com/stefan-hacks/pygr/internal/log"
	"github.com/stefan-hacks/pygr/internal/version"
)

// RepoEntry is one added recipe repo (spec §3 "Repo Cache Entry").
type RepoEntry struct {
	Name          string
	URL           string
	LocalPath     string
	LastRefreshed bool // never set by this package; no refresh time is recorded anywhere
}

// RepoExistsError reports add_repo being called with a name already taken.
type RepoExistsError struct{ Name string }

func (e *RepoExistsError) Error() string          { return fmt.Sprintf("repo already added: %s", e.Name) }
func (e *RepoExistsError) ErrorKind() errmsg.Kind { return errmsg.KindRepoExists }

// RepoMissingError reports an operation against a repo name that was never added.
type RepoMissingError struct{ Name string }

func (e *RepoMissingError) Error() string          { return fmt.Sprintf("no such repo: %s", e.Name) }
func (e *RepoMissingError) ErrorKind() errmsg.Kind { return errmsg.KindRepoMissing }

// FetchFailedError wraps a transport failure while cloning or refreshing a repo.
type FetchFailedError struct {
	URL string
	Err error
}

func (e *FetchFailedError) Error() string {
	return fmt.Sprintf("fetch failed for %s: %v", e.URL, e.Err)
}
func (e *FetchFailedError) Unwrap() error         { return e.Err }
func (e *FetchFailedError) ErrorKind() errmsg.Kind { return errmsg.KindFetchFailed }

// UnsatisfiableError is returned by Find when no recipe in any added repo
// satisfies the requested constraint.
type UnsatisfiableError struct {
	Name       string
	Constraint string
}

func (e *UnsatisfiableError) Error() string {
	return fmt.Sprintf("no recipe satisfies %s%s", e.Name, e.Constraint)
}
func (e *UnsatisfiableError) ErrorKind() errmsg.Kind { return errmsg.KindUnsatisfiable }

// Catalog manages the set of added recipe repos under <root>/repos and
// looks recipes up across them (spec 4.B).
type Catalog struct {
	reposDir string
	repos    []RepoEntry
}

// New loads the catalog from the repo cache directory, one subdirectory
// per added repo, in the stable order returned by a directory listing at
// load time plus append order for repos added since.
func New(reposDir string) (*Catalog, error) {
	c := &Catalog{reposDir: reposDir}
	entries, err := os.ReadDir(reposDir)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("recipe: read repos dir: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		c.repos = append(c.repos, RepoEntry{
			Name:      e.Name(),
			LocalPath: filepath.Join(reposDir, e.Name()),
		})
	}
	return c, nil
}

// AddRepo clones url into the repo cache under name.
func (c *Catalog) AddRepo(name, url string) error {
	for _, r := range c.repos {
		if r.Name == name {
			return &RepoExistsError{Name: name}
		}
	}
	dest := filepath.Join(c.reposDir, name)
	if _, err := os.Stat(dest); err == nil {
		return &RepoExistsError{Name: name}
	}

	log.Default().Info("cloning recipe repo", "name", name, "url", url)
	if _, err := git.PlainClone(dest, false, &git.CloneOptions{URL: url}); err != nil {
		_ = os.RemoveAll(dest)
		return &FetchFailedError{URL: url, Err: err}
	}

	c.repos = append(c.repos, RepoEntry{Name: name, URL: url, LocalPath: dest})
	return nil
}

// ListRepos returns added repos in stable insertion order.
func (c *Catalog) ListRepos() []RepoEntry {
	out := make([]RepoEntry, len(c.repos))
	copy(out, c.repos)
	return out
}

// Find scans every added repo's YAML recipe files for one matching name
// (by filename <name>.yaml or by its "name" field) and satisfying
// constraint, returning the candidate with the newest version. Ties are
// broken by lexicographically greatest version string, then by
// lexicographically smallest repo name (spec 4.B).
func (c *Catalog) Find(name string, constraint *version.Constraint) (*Recipe, error) {
	candidates, err := c.Candidates(name, constraint)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, &UnsatisfiableError{Name: name, Constraint: constraint.String()}
	}
	return candidates[0], nil
}

// Candidates returns every recipe named name (by filename stem or its
// "name" field) across all added repos that satisfies constraint,
// newest version first; ties are broken by lexicographically greatest
// version string, then by lexicographically smallest repo name (spec 4.B, also the order the Resolver consumes for 4.G
// step 2's "newest first").
func (c *Catalog) Candidates(name string, constraint *version.Constraint) ([]*Recipe, error) {
	type candidate struct {
		recipe   *Recipe
		repoName string
	}
	var candidates []candidate

	for _, repo := range c.repos {
		entries, err := os.ReadDir(repo.LocalPath)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
				continue
			}
			path := filepath.Join(repo.LocalPath, e.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			var r Recipe
			if err := yaml.Unmarshal(data, &r); err != nil {
				continue
			}

			stem := strings.TrimSuffix(e.Name(), ".yaml")
			if stem != name && r.Name != name {
				continue
			}
			if err := r.Validate(path); err != nil {
				continue
			}
			if constraint != nil && !constraint.Satisfies(r.ParsedVersion()) {
				continue
			}
			candidates = append(candidates, candidate{recipe: &r, repoName: repo.Name})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if cmp := version.Compare(a.recipe.ParsedVersion(), b.recipe.ParsedVersion()); cmp != 0 {
			return cmp > 0 // newest first
		}
		if a.recipe.Version != b.recipe.Version {
			return a.recipe.Version > b.recipe.Version
		}
		return a.repoName < b.repoName
	})

	out := make([]*Recipe, len(candidates))
	for i, c := range candidates {
		out[i] = c.recipe
	}
	return out, nil
}

// LoadFile parses and validates a single recipe file, for callers that
// already know the path (e.g. the builder resolving an ad-hoc recipe).
func LoadFile(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("recipe: read %s: %w", path, err)
	}
	var r Recipe
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, &MalformedError{Path: path, Message: err.Error()}
	}
	if err := r.Validate(path); err != nil {
		return nil, err
	}
	return &r, nil
}
