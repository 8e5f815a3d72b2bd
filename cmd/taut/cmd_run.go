package main

import (
	"os"

	"github.com/spf13/cobra"

	"taut/internal/orchestrator"
	"taut/internal/reporter"
)

func runRootCmd(cmd *cobra.Command, args []string) error {
	paths := args
	if len(paths) == 0 {
		paths = []string{"."}
	}
	root := projectRoot
	if root == "" {
		root = "."
	}

	summary, err := orchestrator.Run(cmd.Context(), orchestrator.Options{
		ProjectRoot: root,
		Paths:       paths,
		NameFilter:  nameFilter,
		MarkerExpr:  markerExpr,
		Jobs:        jobs,
		NoParallel:  noParallel,
		NoCache:     noCache,
		Isolation:   orchestrator.Isolation(isolation),
	})
	if err != nil {
		return err
	}

	reporter.Write(os.Stdout, summary)
	os.Exit(reporter.ExitCode(summary))
	return nil
}
