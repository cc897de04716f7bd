package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/stefan-hacks/pygr/internal/builder"
	"github.com/stefan-hacks/pygr/internal/cache"
	"github.com/stefan-hacks/pygr/internal/config"
	"github.com/stefan-hacks/pygr/internal/errmsg"
	"github.com/stefan-hacks/pygr/internal/fetcher"
	"github.com/stefan-hacks/pygr/internal/log"
	"github.com/stefan-hacks/pygr/internal/metadb"
	"github.com/stefan-hacks/pygr/internal/profile"
	"github.com/stefan-hacks/pygr/internal/recipe"
	"github.com/stefan-hacks/pygr/internal/resolver"
	"github.com/stefan-hacks/pygr/internal/sandbox"
	"github.com/stefan-hacks/pygr/internal/search"
	"github.com/stefan-hacks/pygr/internal/state"
	"github.com/stefan-hacks/pygr/internal/store"
	"github.com/stefan-hacks/pygr/internal/userconfig"
)

// app bundles every component a CLI command needs, constructed once per
// invocation from global flags, the environment, and the user config
// override file.
type app struct {
	cfg       *config.Config
	userCfg   *userconfig.Config
	catalog   *recipe.Catalog
	resolver  *resolver.Resolver
	builder   *builder.Builder
	store     *store.Store
	gens      *profile.Generations
	state     *state.State
	db        *metadb.DB
	search    *search.Client
	cacheURL  string
	sandboxOn bool
}

// newApp resolves the root directory, ensures its layout exists, and
// wires every component against it.
func newApp() (*app, error) {
	cfg, err := resolveConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	userCfg, err := userconfig.Load(cfg.UserConfig)
	if err != nil {
		return nil, err
	}

	catalog, err := recipe.New(cfg.ReposDir)
	if err != nil {
		return nil, err
	}

	st := store.New(cfg.StoreDir)
	gens := profile.New(cfg.ProfilesDir, st)
	dst := state.New(cfg.StateFile)
	db := metadb.Open(cfg.DBFile)

	stagingRoot := filepath.Join(cfg.Root, ".staging")
	if err := os.MkdirAll(stagingRoot, 0o700); err != nil {
		return nil, fmt.Errorf("pygr: create staging dir: %w", err)
	}
	sourceCacheDir := filepath.Join(cfg.ReposDir, "_sources")

	sandboxOn := resolveSandboxEnabled(userCfg)
	runnerOpts := []sandbox.Option{sandbox.WithLogger(log.Default())}
	if sandboxOn && sandbox.IsolationAvailable("bwrap") {
		runnerOpts = append(runnerOpts, sandbox.WithIsolation("bwrap"))
	} else if sandboxOn && sandbox.IsolationAvailable("unshare") {
		runnerOpts = append(runnerOpts, sandbox.WithIsolation("unshare"))
	}
	runner := sandbox.New(runnerOpts...)

	cacheURL := resolveCacheURL(userCfg)
	var cacheClient builder.CacheClient
	if cacheURL != "" {
		cacheClient = cache.New(cacheURL)
	}

	b := builder.New(fetcher.New(sourceCacheDir), st, runner, cacheClient, stagingRoot)

	return &app{
		cfg:       cfg,
		userCfg:   userCfg,
		catalog:   catalog,
		resolver:  resolver.New(catalog),
		builder:   b,
		store:     st,
		gens:      gens,
		state:     dst,
		db:        db,
		search:    search.New(),
		cacheURL:  cacheURL,
		sandboxOn: sandboxOn,
	}, nil
}

func resolveConfig() (*config.Config, error) {
	if rootDirFlag != "" {
		return config.New(rootDirFlag), nil
	}
	return config.DefaultConfig()
}

func resolveSandboxEnabled(userCfg *userconfig.Config) bool {
	if sandboxFlag {
		return true
	}
	if noSandboxFlag {
		return false
	}
	return userCfg.SandboxEnabled(false)
}

func resolveCacheURL(userCfg *userconfig.Config) string {
	if cacheURLFlag != "" {
		return cacheURLFlag
	}
	if u := config.CacheURL(); u != "" {
		return u
	}
	return userCfg.CacheURL("")
}

// mustApp builds an app or exits the process with the error's mapped
// exit code, for the Run callbacks that have no use for a partially
// constructed app.
func mustApp() *app {
	a, err := newApp()
	if err != nil {
		fail(err)
	}
	return a
}

// fail prints err's one-line message and exits with its mapped code.
// It never returns.
func fail(err error) {
	fmt.Fprintln(os.Stderr, errmsg.Message(err))
	os.Exit(errmsg.ExitCode(err))
}

func printInfo(a ...any) {
	if !quietFlag {
		fmt.Println(a...)
	}
}

func printInfof(format string, a ...any) {
	if !quietFlag {
		fmt.Printf(format, a...)
	}
}
