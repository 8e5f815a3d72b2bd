package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"taut/internal/discovery"
	"taut/internal/filter"
	"taut/internal/filter/markerexpr"
)

var listCmd = &cobra.Command{
	Use:   "list [paths...]",
	Short: "Discover and filter tests, printing identifiers without running them",
	RunE:  runListCmd,
}

func runListCmd(cmd *cobra.Command, args []string) error {
	paths := args
	if len(paths) == 0 {
		paths = []string{"."}
	}
	root := projectRoot
	if root == "" {
		root = "."
	}

	var markerFilter markerexpr.Expr
	if markerExpr != "" {
		expr, err := markerexpr.Parse(markerExpr)
		if err != nil {
			return fmt.Errorf("malformed marker expression: %w", err)
		}
		markerFilter = expr
	}

	result, err := discovery.New(root).Discover(paths)
	if err != nil {
		return fmt.Errorf("discovery: %w", err)
	}

	nf := filter.ParseNameFilter(nameFilter)
	for _, item := range result.Items {
		if !nf.Match(item) {
			continue
		}
		if markerFilter != nil && !markerexpr.Matches(markerFilter, item) {
			continue
		}
		fmt.Fprintln(os.Stdout, item.ID)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(os.Stderr, "discovery error: %s\n", e.Error())
	}
	if len(result.Errors) > 0 {
		os.Exit(1)
	}
	return nil
}
