package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/a2-ai/rv/internal/buildinfo"
	"github.com/a2-ai/rv/internal/log"
)

// Global flags shared by every subcommand (spec.md §6: "Global flags:
// --config-file, --r-version, --distribution, --cache-dir").
var (
	configFileFlag   string
	rVersionFlag     string
	distributionFlag string
	cacheDirFlag     string
	verboseFlag      bool
	debugFlag        bool
)

// globalCtx is canceled on SIGINT/SIGTERM so in-flight sync.Handler runs
// observe cancellation at their next suspension point (spec.md §5).
var globalCtx context.Context
var globalCancel context.CancelFunc

var rootCmd = &cobra.Command{
	Use:   "rv",
	Short: "A package manager for R projects",
	Long: `rv resolves a project's declared dependencies against one or more
package repositories, plans the minimal set of fetch/compile/link steps
needed to reach that state, and executes the plan against a shared
on-disk cache.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFileFlag, "config-file", "rproject.toml", "path to the project manifest")
	rootCmd.PersistentFlags().StringVar(&rVersionFlag, "r-version", "", "R version to resolve/install against (overrides the manifest's r_version)")
	rootCmd.PersistentFlags().StringVar(&distributionFlag, "distribution", "", "target platform preset: mac, windows, focal, jammy, noble (default: detect the host)")
	rootCmd.PersistentFlags().StringVar(&cacheDirFlag, "cache-dir", "", "override the disk cache root (also via RV_CACHE_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "show verbose output (INFO level)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "show debug output")

	rootCmd.PersistentPreRun = initLogger
	rootCmd.Version = buildinfo.Version()

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(cacheCmd)
}

func main() {
	globalCtx, globalCancel = context.WithCancel(context.Background())
	defer globalCancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		fmt.Fprintf(os.Stderr, "\nreceived %s, canceling...\n", sig)
		globalCancel()
		<-sigChan
		fmt.Fprintln(os.Stderr, "forced exit")
		exitWithCode(ExitFailure)
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if isUsageError(err) {
			exitWithCode(ExitUsage)
		}
		exitWithCode(ExitFailure)
	}
}

func initLogger(cmd *cobra.Command, args []string) {
	level := slog.LevelWarn
	switch {
	case debugFlag:
		level = slog.LevelDebug
	case verboseFlag:
		level = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	log.SetDefault(log.New(handler))
}

// isUsageError reports whether err is a usageError, the type the commands
// return through newUsageError for a rejected --distribution or
// --link-mode value or an already-declared dependency (spec.md §6: exit
// code 2 is reserved for usage errors, exit code 1 for everything else).
// Errors from cobra's own argument and flag parsing are not usageErrors
// and exit with code 1.
func isUsageError(err error) bool {
	_, ok := err.(*usageError)
	return ok
}

type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func newUsageError(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}
