// Package main implements the taut CLI front end.
//
// File index:
//   - main.go       - entry point, rootCmd, global flags, init()
//   - cmd_run.go    - root command's RunE: discovery through execution
//   - cmd_list.go   - listCmd: discovery + filter, print identifiers only
//   - cmd_watch.go  - watchCmd: recompute plan on filesystem change
//   - cmd_cache.go  - cacheCmd, cacheInfoCmd, cacheClearCmd
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"taut/internal/cache"
	"taut/internal/logging"
)

var (
	verbose     bool
	nameFilter  string
	markerExpr  string
	jobs        int
	noParallel  bool
	noCache     bool
	isolation   string
	projectRoot string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "taut [paths...]",
	Short: "A static-discovery, dependency-aware test runner",
	Long: `taut discovers tests by parsing source without executing it, tracks
which source blocks each test actually depends on, and skips re-running a
test when nothing it depends on has changed.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}

		root := projectRoot
		if root == "" {
			root, _ = os.Getwd()
		}
		logsDir, err := cache.Dir(root)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: resolve cache dir for logging: %v\n", err)
			return nil
		}
		if err := logging.Initialize(logsDir, logging.Config{DebugMode: verbose}); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to initialize file logging: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: runRootCmd,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&projectRoot, "root", "", "project root (default: current directory)")

	for _, cmd := range []*cobra.Command{rootCmd, listCmd, watchCmd} {
		cmd.Flags().StringVarP(&nameFilter, "filter", "k", "", "name filter expression")
		cmd.Flags().StringVarP(&markerExpr, "markers", "m", "", "marker boolean expression")
	}
	for _, cmd := range []*cobra.Command{rootCmd, watchCmd} {
		cmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "maximum concurrent workers/children (default: config, else CPU count for process-per-test or one worker per parallel test for process-per-run)")
		cmd.Flags().BoolVar(&noParallel, "no-parallel", false, "run every selected test sequentially")
		cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the dependency cache for this run")
		cmd.Flags().StringVar(&isolation, "isolation", "process-per-test", "execution isolation: process-per-test or process-per-run")
	}

	cacheCmd.AddCommand(cacheInfoCmd, cacheClearCmd)
	rootCmd.AddCommand(listCmd, watchCmd, cacheCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeForError(err))
	}
}

// exitCodeForError maps a top-level error to spec §6's usage-error exit
// code; errors surfaced any other way come back as a reporter.Summary and
// are translated via reporter.ExitCode instead.
func exitCodeForError(err error) int {
	return 2
}
