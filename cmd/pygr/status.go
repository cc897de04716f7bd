package main

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current generation, declared entries, and store size",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()

		entries, err := a.state.Read()
		if err != nil {
			fail(err)
		}
		printInfof("declared packages: %d\n", len(entries))

		m, err := a.gens.CurrentManifest()
		if err != nil {
			printInfo("current generation: none published")
			return
		}
		printInfof("artifacts in current generation: %d\n", len(m.ArtifactKeys))

		var total int64
		for _, key := range m.ArtifactKeys {
			size, err := a.store.Size(key)
			if err != nil {
				continue
			}
			total += size
		}
		printInfof("current generation size: %s\n", humanize.Bytes(uint64(total)))

		keys, err := a.store.Enumerate()
		if err == nil {
			printInfof("artifacts in store: %d\n", len(keys))
		}
	},
}
