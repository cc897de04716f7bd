package main

import (
	"github.com/spf13/cobra"
)

var repoAddCmd = &cobra.Command{
	Use:   "repo-add NAME URL",
	Short: "Clone and register a recipe repository",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		if err := a.catalog.AddRepo(args[0], args[1]); err != nil {
			fail(err)
		}
		printInfof("added recipe repo %s\n", args[0])
	},
}

var repoListCmd = &cobra.Command{
	Use:   "repo-list",
	Short: "List registered recipe repositories",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		for _, r := range a.catalog.ListRepos() {
			printInfof("%s\t%s\n", r.Name, r.URL)
		}
	},
}
