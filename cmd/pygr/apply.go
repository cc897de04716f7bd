package main

import (
	"context"
	"sync"

	"github.com/spf13/cobra"

	"github.com/stefan-hacks/pygr/internal/lockfile"
	"github.com/stefan-hacks/pygr/internal/state"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Install every declarative state entry",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		if err := a.apply(globalCtx); err != nil {
			fail(err)
		}
	},
}

// applyInstaller adapts app.buildEntry to state.Installer, accumulating
// each built entry's store key for the generation this apply run
// publishes (spec 4.J's apply()).
type applyInstaller struct {
	ctx  context.Context
	app  *app
	mu   sync.Mutex
	keys map[string]string
}

func (in *applyInstaller) Install(e state.Entry) error {
	key, err := in.app.buildEntry(in.ctx, e)
	if err != nil {
		return err
	}
	if key != "" {
		in.mu.Lock()
		in.keys[e.Name] = key
		in.mu.Unlock()
	}
	return nil
}

// apply installs every declarative entry and publishes the resulting
// generation. Builder.Build's store fast path makes already-installed
// entries cheap, so every entry is routed through Install rather than
// only ones missing from the current generation (spec 4.J's apply()
// composed with 4.F's idempotence).
func (a *app) apply(ctx context.Context) error {
	entries, err := a.state.Read()
	if err != nil {
		return err
	}

	in := &applyInstaller{ctx: ctx, app: a, keys: map[string]string{}}
	neverInstalled := func(state.Entry) bool { return false }

	return lockfile.WithLock(ctx, a.cfg.LockFile, func() error {
		if err := a.state.Apply(neverInstalled, in); err != nil {
			return err
		}

		var keys []string
		declaredLines := make([]string, len(entries))
		for i, e := range entries {
			declaredLines[i] = e.String()
			if key, ok := in.keys[e.Name]; ok {
				keys = append(keys, key)
			}
		}

		n, warnings, err := a.gens.Publish(keys, declaredLines)
		if err != nil {
			return err
		}
		for _, w := range warnings {
			printInfo(w)
		}
		printInfof("applied; now at generation %d\n", n)
		return nil
	})
}
