package main

import (
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [FILE]",
	Short: "Write declarative state to FILE (default: packages.conf in the working directory)",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := "packages.conf"
		if len(args) == 1 {
			path = args[0]
		}
		a := mustApp()
		if err := a.state.Export(path); err != nil {
			fail(err)
		}
		printInfof("exported declarative state to %s\n", path)
	},
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Replace declarative state with the entries in FILE",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		if err := a.state.Import(args[0]); err != nil {
			fail(err)
		}
		printInfo("imported declarative state; run \"pygr apply\" to build it")
	},
}
