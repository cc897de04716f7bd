package main

import (
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List declarative state entries",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		entries, err := a.state.Read()
		if err != nil {
			fail(err)
		}
		for _, e := range entries {
			printInfo(e.String())
		}
	},
}

var pathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print a shell-assignment string exposing the current profile bin directory",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		dir, err := a.gens.CurrentBinDir()
		if err != nil {
			fail(err)
		}
		printInfof("PATH=%s:$PATH\n", dir)
	},
}
