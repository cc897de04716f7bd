package main

import (
	"github.com/spf13/cobra"
)

var searchResultLimit int

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search GitHub for candidate repositories to install",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		results, err := a.search.Search(globalCtx, args[0], searchResultLimit)
		if err != nil {
			fail(err)
		}
		for _, r := range results {
			if r.Description == "" {
				printInfof("%-40s %d\n", r.FullName, r.Stars)
				continue
			}
			printInfof("%-40s %d  %s\n", r.FullName, r.Stars, r.Description)
		}
	},
}

func init() {
	searchCmd.Flags().IntVarP(&searchResultLimit, "n", "n", 10, "Maximum number of results")
}
