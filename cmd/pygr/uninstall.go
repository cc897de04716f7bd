package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/stefan-hacks/pygr/internal/lockfile"
	"github.com/stefan-hacks/pygr/internal/state"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall PKG...",
	Short: "Remove packages from the declarative state and publish a new generation",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		if err := a.uninstall(globalCtx, args); err != nil {
			fail(err)
		}
	},
}

// uninstall drops the named packages from declarative state and
// republishes a generation built from what remains (spec §6).
func (a *app) uninstall(ctx context.Context, names []string) error {
	existing, err := a.state.Read()
	if err != nil {
		return err
	}

	drop := map[string]bool{}
	for _, n := range names {
		spec, err := parsePkgArg(n)
		if err != nil {
			return err
		}
		key := spec.Name
		if spec.Remote {
			key = spec.OwnerRepo
		}
		drop[key] = true
	}

	var remaining []state.Entry
	for _, e := range existing {
		if drop[e.Name] {
			continue
		}
		remaining = append(remaining, e)
	}

	return lockfile.WithLock(ctx, a.cfg.LockFile, func() error {
		keys, err := a.buildDeclared(ctx, remaining)
		if err != nil {
			return err
		}
		declaredLines := make([]string, len(remaining))
		for i, e := range remaining {
			declaredLines[i] = e.String()
		}
		n, warnings, err := a.gens.Publish(keys, declaredLines)
		if err != nil {
			return err
		}
		if err := a.state.Write(remaining); err != nil {
			return err
		}
		for _, w := range warnings {
			printInfo(w)
		}
		printInfof("uninstalled; now at generation %d\n", n)
		return nil
	})
}
