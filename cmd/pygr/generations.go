package main

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/stefan-hacks/pygr/internal/lockfile"
)

var generationsGC int

var generationsCmd = &cobra.Command{
	Use:   "generations",
	Short: "List profile generations, or garbage-collect old ones with --gc",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()

		if cmd.Flags().Changed("gc") {
			removed, err := a.gens.GC(generationsGC)
			if err != nil {
				fail(err)
			}
			printInfof("removed %d generation(s): %v\n", len(removed), removed)
			return
		}

		infos, err := a.gens.ListInfo()
		if err != nil {
			fail(err)
		}
		for _, info := range infos {
			marker := "  "
			switch {
			case info.Current:
				marker = "* "
			case info.Previous:
				marker = "- "
			}
			var size int64
			for _, key := range info.ArtifactKeys {
				if s, err := a.store.Size(key); err == nil {
					size += s
				}
			}
			printInfof("%sgen-%-4d %s  %d artifacts  %s\n",
				marker, info.Number, info.PublishedAt.Format("2006-01-02 15:04:05"),
				len(info.ArtifactKeys), humanize.Bytes(uint64(size)))
		}
	},
}

func init() {
	generationsCmd.Flags().IntVar(&generationsGC, "gc", 0, "Delete generations beyond current/previous and this many most recent others")
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Swap current and previous generations",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		err := lockfile.WithLock(globalCtx, a.cfg.LockFile, a.gens.Rollback)
		if err != nil {
			fail(err)
		}
		printInfo("rolled back to previous generation")
	},
}
