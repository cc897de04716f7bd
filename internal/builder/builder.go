// Package builder implements the Builder (spec 4.F): driving one pinned
// package end-to-end through fetch, build-type detection or recipe
// commands, sandboxed execution, and atomic insertion into the store.
package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stefan-hacks/pygr/internal/detect"
	"github.com/stefan-hacks/pygr/internal/fetcher"
	"github.com/stefan-hacks/pygr/internal/log"
	"github.com/stefan-hacks/pygr/internal/recipe"
	"github.com/stefan-hacks/pygr/internal/sandbox"
	"github.com/stefan-hacks/pygr/internal/store"
)

// DependencyArtifact is one already-built dependency made available to
// a build (spec 4.F step 6).
type DependencyArtifact struct {
	Name     string
	StoreKey string
	Path     string // <store>/<key>
}

// Task describes one package to build (spec 4.F's "{ recipe-or-source,
// dependency_artifacts }").
type Task struct {
	// Recipe drives the build when non-nil; its Build/Install commands
	// take priority over auto-detection (spec 4.D priority 1).
	Recipe *recipe.Recipe
	// RemoteURL/Ref are used for ad-hoc remote-repo installs that have
	// no companion recipe (spec 4.G: "remote-repo origins bypass the
	// resolver's dependency walk").
	RemoteURL    string
	Ref          string
	Dependencies []DependencyArtifact
	Policy       sandbox.Policy
	Timeout      time.Duration
}

// CacheClient is the subset of the Binary Cache Client (4.K) the
// Builder's fast path consults. Defined here, not in internal/cache, so
// the Builder depends only on the interface it needs.
type CacheClient interface {
	Lookup(ctx context.Context, key string) (bool, error)
	DownloadAndExtract(ctx context.Context, key, dest string) error
}

// Builder orchestrates fetch -> build -> install-to-store for one
// pinned package (spec 4.F).
type Builder struct {
	Fetcher     *fetcher.Fetcher
	Store       *store.Store
	Runner      sandbox.Runner
	Cache       CacheClient // nil disables the binary cache fast path
	StagingRoot string
	Logger      log.Logger
}

// New returns a Builder. Cache may be nil.
func New(f *fetcher.Fetcher, s *store.Store, r sandbox.Runner, cache CacheClient, stagingRoot string) *Builder {
	return &Builder{Fetcher: f, Store: s, Runner: r, Cache: cache, StagingRoot: stagingRoot, Logger: log.Default()}
}

const prefixTemplate = recipe.PrefixPlaceholder

// Build drives Task through spec 4.F's nine steps and returns the build
// fingerprint key under which the artifact now lives in the store.
// Repeated calls with identical inputs are no-ops after the fast-path
// check (spec 4.F "Idempotence").
func (b *Builder) Build(ctx context.Context, t Task) (string, error) {
	remoteURL, ref := t.RemoteURL, t.Ref
	if t.Recipe != nil {
		remoteURL = resolveRepoURL(t.Recipe.Source.Repo)
		ref = t.Recipe.Source.Ref
	}

	// Step 1: source-tree fingerprint.
	localPath, sourceFP, err := b.Fetcher.Fetch(ctx, remoteURL, ref)
	if err != nil {
		return "", err
	}

	// Step 2: build descriptor, recipe commands take priority.
	var buildCmds, installCmds []string
	var descriptorText string
	if t.Recipe != nil && (len(t.Recipe.Build) > 0 || len(t.Recipe.Install) > 0) {
		buildCmds, installCmds = t.Recipe.Build, t.Recipe.Install
		descriptorText = "recipe:" + strings.Join(append(append([]string{}, buildCmds...), installCmds...), ";")
	} else {
		desc, err := detect.Detect(localPath)
		if err != nil {
			return "", err
		}
		buildCmds, installCmds = desc.Build, desc.Install
		descriptorText = desc.Text()
	}

	// Step 3: build fingerprint.
	depKeys := make([]string, len(t.Dependencies))
	for i, d := range t.Dependencies {
		depKeys[i] = d.StoreKey
	}
	key := buildFingerprint(sourceFP.String(), descriptorText, depKeys, prefixTemplate, t.Policy.Marker()).Encoded()

	// Step 4: fast path.
	if b.Store.Has(key) {
		return key, nil
	}
	if b.Cache != nil {
		hit, err := b.Cache.Lookup(ctx, key)
		if err == nil && hit {
			stagingDir, cerr := os.MkdirTemp(b.StagingRoot, "pygr-cache-*")
			if cerr == nil {
				if derr := b.Cache.DownloadAndExtract(ctx, key, stagingDir); derr == nil {
					if ierr := b.Store.Insert(stagingDir, key); ierr == nil {
						return key, nil
					}
				}
				_ = os.RemoveAll(stagingDir)
			}
			b.Logger.Warn("binary cache hit failed to apply, falling back to local build", "key", key)
		}
	}

	// Step 5: staging directory and prefix target.
	stagingDir, err := os.MkdirTemp(b.StagingRoot, "pygr-build-*")
	if err != nil {
		return "", fmt.Errorf("builder: create staging dir: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	prefixDir := filepath.Join(stagingDir, "prefix")
	if err := os.MkdirAll(prefixDir, 0o755); err != nil {
		return "", fmt.Errorf("builder: create prefix dir: %w", err)
	}

	// Step 6: dependency env.
	env := dependencyEnv(t.Dependencies, prefixDir)

	// Step 7: run build then install commands.
	for _, cmd := range buildCmds {
		if err := b.runOne(ctx, cmd, localPath, prefixDir, env, t); err != nil {
			return "", err
		}
	}
	for _, cmd := range installCmds {
		if err := b.runOne(ctx, cmd, localPath, prefixDir, env, t); err != nil {
			return "", err
		}
	}

	// Step 8: manifest.
	name := "unknown"
	version := ""
	if t.Recipe != nil {
		name, version = t.Recipe.Name, t.Recipe.Version
	} else {
		name = remoteURL
	}
	m := store.Manifest{
		Name:                  name,
		Version:               version,
		DependencyKeys:        depKeys,
		FetchedRef:            ref,
		SourceTreeFingerprint: sourceFP.String(),
		BuildTimestamp:        time.Now().UTC(),
	}
	if err := store.WriteManifest(prefixDir, m); err != nil {
		return "", err
	}

	// Step 9: atomic insert.
	if err := b.Store.Insert(prefixDir, key); err != nil {
		return "", err
	}
	return key, nil
}

func (b *Builder) runOne(ctx context.Context, cmd, cwd, prefixDir string, env []string, t Task) error {
	expanded := strings.ReplaceAll(cmd, prefixTemplate, prefixDir)
	policy := t.Policy
	policy.WritablePaths = append(append([]string{}, policy.WritablePaths...), prefixDir)

	_, err := b.Runner.Run(ctx, sandbox.Request{
		Command: []string{"sh", "-c", expanded},
		Cwd:     cwd,
		Env:     env,
		Timeout: t.Timeout,
		Policy:  policy,
	})
	return err
}

// dependencyEnv exposes each dependency artifact's prefix on
// PATH/CPATH/LIBRARY_PATH and a PYGR_DEP_<NAME>_PREFIX variable (spec
// 4.F step 6: "arrange dependency artifacts on a synthesized
// include/lib path, exposed to commands through environment
// variables").
func dependencyEnv(deps []DependencyArtifact, prefixDir string) []string {
	env := append([]string{}, os.Environ()...)
	env = append(env, "PYGR_PREFIX="+prefixDir)

	var path, cpath, libpath []string
	for _, d := range deps {
		path = append(path, filepath.Join(d.Path, "bin"))
		cpath = append(cpath, filepath.Join(d.Path, "include"))
		libpath = append(libpath, filepath.Join(d.Path, "lib"))
		env = append(env, fmt.Sprintf("PYGR_DEP_%s_PREFIX=%s", envSafeName(d.Name), d.Path))
	}
	if len(path) > 0 {
		env = append(env, "PATH="+strings.Join(path, ":")+":"+os.Getenv("PATH"))
	}
	if len(cpath) > 0 {
		env = append(env, "CPATH="+strings.Join(cpath, ":"))
	}
	if len(libpath) > 0 {
		env = append(env, "LIBRARY_PATH="+strings.Join(libpath, ":"))
	}
	return env
}

func envSafeName(name string) string {
	r := strings.NewReplacer("-", "_", ".", "_", "/", "_")
	return strings.ToUpper(r.Replace(name))
}

// resolveRepoURL turns a recipe's source.repo ("owner/repo") into a
// clone URL. Repo values that already look like a URL pass through
// unchanged, so recipes may pin a non-GitHub remote.
func resolveRepoURL(repo string) string {
	if strings.Contains(repo, "://") || strings.HasPrefix(repo, "/") {
		return repo
	}
	return "https://github.com/" + repo + ".git"
}
