package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the pygr user configuration file",
	Long: `Display or manage pygr's user configuration overrides.

Configuration is stored in <root>/config/pygr.toml and layers under
environment variables and command-line flags.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		keys := a.userCfg.AvailableKeys()
		names := make([]string, 0, len(keys))
		for k := range keys {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			if k == "secrets.*" {
				continue
			}
			v, _ := a.userCfg.Get(k)
			printInfof("%-24s %s\n", k, v)
		}
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		v, ok := a.userCfg.Get(args[0])
		if !ok {
			fmt.Println("unknown config key:", args[0])
			return
		}
		if strings.HasPrefix(args[0], "secrets.") {
			if v == "" {
				printInfo("(not set)")
			} else {
				printInfo("(set)")
			}
			return
		}
		printInfo(v)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		if err := a.userCfg.Set(args[0], args[1]); err != nil {
			fail(err)
		}
		if err := a.userCfg.Save(a.cfg.UserConfig); err != nil {
			fail(err)
		}
		printInfof("%s set\n", args[0])
	},
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}
