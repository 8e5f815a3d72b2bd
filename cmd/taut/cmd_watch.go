package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"taut/internal/orchestrator"
	"taut/internal/reporter"
	"taut/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [paths...]",
	Short: "Recompute the test plan whenever a source file changes",
	RunE:  runWatchCmd,
}

func runWatchCmd(cmd *cobra.Command, args []string) error {
	paths := args
	if len(paths) == 0 {
		paths = []string{"."}
	}
	root := projectRoot
	if root == "" {
		root = "."
	}

	w, err := watch.New(root)
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	opts := orchestrator.Options{
		ProjectRoot: root,
		Paths:       paths,
		NameFilter:  nameFilter,
		MarkerExpr:  markerExpr,
		Jobs:        jobs,
		NoParallel:  noParallel,
		NoCache:     noCache,
		Isolation:   orchestrator.Isolation(isolation),
	}

	onChange := func(ctx context.Context) {
		summary, err := watch.RecomputePlan(ctx, opts)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		reporter.Write(os.Stdout, summary)
	}

	return w.Run(cmd.Context(), onChange)
}
