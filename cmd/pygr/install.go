package main

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/stefan-hacks/pygr/internal/builder"
	"github.com/stefan-hacks/pygr/internal/config"
	"github.com/stefan-hacks/pygr/internal/lockfile"
	"github.com/stefan-hacks/pygr/internal/resolver"
	"github.com/stefan-hacks/pygr/internal/sandbox"
	"github.com/stefan-hacks/pygr/internal/state"
	"github.com/stefan-hacks/pygr/internal/syspm"
	"github.com/stefan-hacks/pygr/internal/version"
)

var (
	installFromGithub bool
	installTimeout    time.Duration
)

var installCmd = &cobra.Command{
	Use:   "install PKG...",
	Short: "Install one or more packages and publish a new generation",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		if err := a.install(globalCtx, args, installFromGithub); err != nil {
			fail(err)
		}
	},
}

func init() {
	installCmd.Flags().BoolVar(&installFromGithub, "from-github", false, "Treat every PKG as OWNER/REPO[@REF], skipping the recipe and system-PM routes")
	installCmd.Flags().DurationVar(&installTimeout, "timeout", 30*time.Minute, "Per-package build timeout")
}

// install adds args to the declarative state, rebuilds every declared
// package's artifact (most are already cached and resolve to a no-op),
// and publishes a new generation under the root lock (spec §5, §6).
func (a *app) install(ctx context.Context, args []string, fromGithub bool) error {
	existing, err := a.state.Read()
	if err != nil {
		return err
	}
	merged, err := a.mergeInstallArgs(ctx, existing, args, fromGithub)
	if err != nil {
		return err
	}

	var keys []string
	var publishWarnings []string
	err = lockfile.WithLock(ctx, a.cfg.LockFile, func() error {
		var berr error
		keys, berr = a.buildDeclared(ctx, merged)
		if berr != nil {
			return berr
		}
		declaredLines := make([]string, len(merged))
		for i, e := range merged {
			declaredLines[i] = e.String()
		}
		n, w, perr := a.gens.Publish(keys, declaredLines)
		if perr != nil {
			return perr
		}
		publishWarnings = w
		if err := a.state.Write(merged); err != nil {
			return err
		}
		printInfof("installed; now at generation %d\n", n)
		return nil
	})
	if err != nil {
		return err
	}
	for _, w := range publishWarnings {
		printInfo(w)
	}
	return nil
}

// mergeInstallArgs parses args into declarative-state entries and
// appends them to existing (later occurrences of the same origin+name
// replace earlier ones, per spec §3's duplicate rule).
func (a *app) mergeInstallArgs(ctx context.Context, existing []state.Entry, args []string, fromGithub bool) ([]state.Entry, error) {
	merged := append([]state.Entry{}, existing...)

	for _, arg := range args {
		spec, err := parsePkgArg(arg)
		if err != nil {
			return nil, err
		}
		if fromGithub && !spec.Remote {
			return nil, fmt.Errorf("pygr: --from-github requires OWNER/REPO[@REF], got %q", arg)
		}

		var entry state.Entry
		switch {
		case spec.Remote:
			entry = state.Entry{Origin: state.OriginRemoteRepo, Name: spec.OwnerRepo, Ref: spec.Ref}

		default:
			if rec, ferr := a.catalog.Find(spec.Name, spec.Constraint); ferr == nil {
				entry = state.Entry{Origin: state.OriginRecipe, Name: rec.Name, Ref: rec.Version}
				break
			}

			mgr, ok := syspm.Detect()
			if !ok {
				return nil, &noSystemPMError{Name: spec.Name}
			}
			avail, serr := syspm.IsAvailable(ctx, mgr, spec.Name)
			if serr != nil || !avail {
				return nil, &packageNotFoundError{Name: spec.Name}
			}
			entry = state.Entry{Origin: state.OriginSystem, PM: string(mgr), Name: spec.Name}
		}

		merged = appendOrReplace(merged, entry)
	}
	return merged, nil
}

// appendOrReplace inserts entry, or replaces an existing entry with the
// same origin+name in place, preserving file order otherwise (spec §3:
// "Duplicate entries are forbidden; ... keeping last occurrence").
func appendOrReplace(entries []state.Entry, entry state.Entry) []state.Entry {
	for i, e := range entries {
		if e.Origin == entry.Origin && e.Name == entry.Name {
			entries[i] = entry
			return entries
		}
	}
	return append(entries, entry)
}

// buildEntry builds a single declarative-state entry in isolation
// (spec 4.J's apply(), which installs entries one at a time rather than
// as a batch plan). Recipe entries still get their own dependency walk;
// system entries return "" since they have no store key.
func (a *app) buildEntry(ctx context.Context, e state.Entry) (string, error) {
	policy := sandbox.Policy{Network: true}

	switch e.Origin {
	case state.OriginRecipe:
		c, err := version.ParseConstraint("=" + e.Ref)
		if err != nil {
			return "", fmt.Errorf("pygr: pinned version %q for %s: %w", e.Ref, e.Name, err)
		}
		plan, err := a.resolver.Resolve([]resolver.Request{{Name: e.Name, Origin: resolver.OriginRecipe, Constraint: c}})
		if err != nil {
			return "", err
		}
		keys, err := a.buildPlan(ctx, plan, policy, installTimeout)
		if err != nil {
			return "", err
		}
		key, ok := keys[e.Name]
		if !ok {
			return "", fmt.Errorf("pygr: %s missing from resolved plan", e.Name)
		}
		return key, nil

	case state.OriginRemoteRepo:
		return a.builder.Build(ctx, builder.Task{
			RemoteURL: repoCloneURL(e.Name),
			Ref:       e.Ref,
			Policy:    policy,
			Timeout:   installTimeout,
		})

	case state.OriginSystem:
		mgr, err := syspm.ParseManager(e.PM)
		if err != nil {
			return "", err
		}
		avail, err := syspm.IsAvailable(ctx, mgr, e.Name)
		if err != nil || !avail {
			return "", fmt.Errorf("pygr: system package %s no longer available via %s", e.Name, e.PM)
		}
		return "", nil

	default:
		return "", fmt.Errorf("pygr: entry %q has unrecognized origin", e.Name)
	}
}

// buildDeclared resolves and builds every recipe-origin entry together
// (so shared dependencies are pinned once), builds every remote-repo
// entry ad hoc, and checks every system entry's continued availability,
// returning the store keys to publish in bin-providing order (spec
// 4.F/4.G, 4.I step 1's "the set of artifact keys").
func (a *app) buildDeclared(ctx context.Context, entries []state.Entry) ([]string, error) {
	var requests []resolver.Request
	for _, e := range entries {
		if e.Origin != state.OriginRecipe {
			continue
		}
		c, err := version.ParseConstraint("=" + e.Ref)
		if err != nil {
			return nil, fmt.Errorf("pygr: pinned version %q for %s: %w", e.Ref, e.Name, err)
		}
		requests = append(requests, resolver.Request{Name: e.Name, Origin: resolver.OriginRecipe, Constraint: c})
	}

	var plan *resolver.Plan
	if len(requests) > 0 {
		p, err := a.resolver.Resolve(requests)
		if err != nil {
			return nil, err
		}
		plan = p
	}

	policy := sandbox.Policy{Network: true}
	planKeys, err := a.buildPlan(ctx, plan, policy, installTimeout)
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, e := range entries {
		switch e.Origin {
		case state.OriginRecipe:
			key, ok := planKeys[e.Name]
			if !ok {
				return nil, fmt.Errorf("pygr: %s missing from resolved plan", e.Name)
			}
			keys = append(keys, key)

		case state.OriginRemoteRepo:
			key, err := a.builder.Build(ctx, builder.Task{
				RemoteURL: repoCloneURL(e.Name),
				Ref:       e.Ref,
				Policy:    policy,
				Timeout:   installTimeout,
			})
			if err != nil {
				return nil, err
			}
			keys = append(keys, key)

		case state.OriginSystem:
			mgr, err := syspm.ParseManager(e.PM)
			if err != nil {
				return nil, err
			}
			avail, err := syspm.IsAvailable(ctx, mgr, e.Name)
			if err != nil || !avail {
				return nil, fmt.Errorf("pygr: system package %s no longer available via %s", e.Name, e.PM)
			}
			// system packages live outside the store; nothing to link.
		}
	}
	return keys, nil
}

// buildPlan builds every pinned package in plan with a bounded worker
// pool, each package waiting on its own dependencies to complete before
// starting (spec §5's concurrency model). A nil plan (no recipe-origin
// entries) returns an empty map.
func (a *app) buildPlan(ctx context.Context, plan *resolver.Plan, policy sandbox.Policy, timeout time.Duration) (map[string]string, error) {
	keys := map[string]string{}
	if plan == nil || len(plan.Order) == 0 {
		return keys, nil
	}

	done := make(map[string]chan struct{}, len(plan.Order))
	for _, pb := range plan.Order {
		done[pb.Name] = make(chan struct{})
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.WorkerCount(runtime.NumCPU()))

	for _, pb := range plan.Order {
		pb := pb
		g.Go(func() error {
			defer close(done[pb.Name])
			for _, dep := range pb.Dependencies {
				select {
				case <-done[dep]:
				case <-gctx.Done():
					return gctx.Err()
				}
			}

			mu.Lock()
			var depArtifacts []builder.DependencyArtifact
			for _, dep := range pb.Dependencies {
				depArtifacts = append(depArtifacts, builder.DependencyArtifact{
					Name:     dep,
					StoreKey: keys[dep],
					Path:     a.store.ArtifactPath(keys[dep]),
				})
			}
			mu.Unlock()

			key, err := a.builder.Build(gctx, builder.Task{
				Recipe:       pb.Recipe,
				Dependencies: depArtifacts,
				Policy:       policy,
				Timeout:      timeout,
			})
			if err != nil {
				return fmt.Errorf("pygr: build %s: %w", pb.Name, err)
			}
			mu.Lock()
			keys[pb.Name] = key
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return keys, nil
}

