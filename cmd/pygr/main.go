package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stefan-hacks/pygr/internal/buildinfo"
	"github.com/stefan-hacks/pygr/internal/errmsg"
	"github.com/stefan-hacks/pygr/internal/log"
)

var (
	quietFlag   bool
	verboseFlag bool
	debugFlag   bool

	rootDirFlag   string
	sandboxFlag   bool
	noSandboxFlag bool
	cacheURLFlag  string
)

var globalCtx context.Context
var globalCancel context.CancelFunc

var rootCmd = &cobra.Command{
	Use:   "pygr",
	Short: "A source-building package manager",
	Long: `pygr fetches software from remote repositories and declarative
recipe catalogs, builds it in isolated environments, installs it into a
content-addressed store, and exposes it through symlink-based profile
generations that can be atomically switched and rolled back.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Show errors only")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Show verbose output (INFO level)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Show debug output (includes timestamps and source locations)")
	rootCmd.PersistentFlags().StringVarP(&rootDirFlag, "root", "c", "", "Root directory override (default $PYGR_ROOT or ~/.pygr)")
	rootCmd.PersistentFlags().BoolVar(&sandboxFlag, "sandbox", false, "Force the sandbox facility on")
	rootCmd.PersistentFlags().BoolVar(&noSandboxFlag, "no-sandbox", false, "Force the sandbox facility off")
	rootCmd.PersistentFlags().StringVar(&cacheURLFlag, "cache", "", "Binary cache base URL override")

	rootCmd.PersistentPreRun = initLogger
	rootCmd.Version = buildinfo.Version()

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(pathCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(generationsCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(upgradeCmd)
	rootCmd.AddCommand(repoAddCmd)
	rootCmd.AddCommand(repoListCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	globalCtx, globalCancel = context.WithCancel(context.Background())
	defer globalCancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		fmt.Fprintf(os.Stderr, "\nreceived %s, canceling operation...\n", sig)
		globalCancel()
		<-sigChan
		fmt.Fprintln(os.Stderr, "forced exit")
		os.Exit(2)
	}()

	if err := rootCmd.Execute(); err != nil {
		if globalCtx.Err() == context.Canceled {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, errmsg.Message(err))
		os.Exit(errmsg.ExitCode(err))
	}
}

func initLogger(cmd *cobra.Command, args []string) {
	level := determineLogLevel()
	handler := log.NewCLIHandler(level)
	log.SetDefault(log.New(handler))
}

func determineLogLevel() slog.Level {
	if debugFlag {
		return slog.LevelDebug
	}
	if verboseFlag {
		return slog.LevelInfo
	}
	if quietFlag {
		return slog.LevelError
	}
	return slog.LevelWarn
}
