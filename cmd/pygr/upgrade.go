package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/stefan-hacks/pygr/internal/lockfile"
	"github.com/stefan-hacks/pygr/internal/state"
)

var upgradeCmd = &cobra.Command{
	Use:   "upgrade [PKG...]",
	Short: "Re-pin recipe entries to their newest available version and rebuild",
	Args:  cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		if err := a.upgrade(globalCtx, args); err != nil {
			fail(err)
		}
	},
}

// upgrade re-pins the named entries (or every entry, if names is empty)
// to their newest version and publishes a new generation. remote-repo
// entries are left with the same ref: a branch ref is naturally
// refetched by the Fetcher on the next build and may produce a new
// build fingerprint, while a pinned tag or commit ref is a no-op (spec
// §9's upgrade redesign flag). system entries are never mutated; they
// are managed outside pygr.
func (a *app) upgrade(ctx context.Context, names []string) error {
	entries, err := a.state.Read()
	if err != nil {
		return err
	}
	selected := map[string]bool{}
	for _, n := range names {
		spec, err := parsePkgArg(n)
		if err != nil {
			return err
		}
		if spec.Remote {
			selected[spec.OwnerRepo] = true
		} else {
			selected[spec.Name] = true
		}
	}

	upgraded := make([]state.Entry, len(entries))
	copy(upgraded, entries)
	for i, e := range upgraded {
		if len(selected) > 0 && !selected[e.Name] {
			continue
		}
		if e.Origin != state.OriginRecipe {
			continue
		}
		rec, err := a.catalog.Find(e.Name, nil)
		if err != nil {
			return err
		}
		upgraded[i].Ref = rec.Version
	}

	return lockfile.WithLock(ctx, a.cfg.LockFile, func() error {
		keys, err := a.buildDeclared(ctx, upgraded)
		if err != nil {
			return err
		}
		declaredLines := make([]string, len(upgraded))
		for i, e := range upgraded {
			declaredLines[i] = e.String()
		}
		n, warnings, err := a.gens.Publish(keys, declaredLines)
		if err != nil {
			return err
		}
		if err := a.state.Write(upgraded); err != nil {
			return err
		}
		for _, w := range warnings {
			printInfo(w)
		}
		printInfof("upgraded; now at generation %d\n", n)
		return nil
	})
}
