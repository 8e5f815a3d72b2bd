package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"taut/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the dependency cache",
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the current cache's location and contents summary",
	RunE:  runCacheInfoCmd,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the current project's cache directory",
	RunE:  runCacheClearCmd,
}

func runCacheInfoCmd(cmd *cobra.Command, args []string) error {
	root := projectRoot
	if root == "" {
		root = "."
	}
	info, err := cache.Stat(root)
	if err != nil {
		return err
	}
	out, err := cache.MarshalInfo(info)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, out)
	return nil
}

func runCacheClearCmd(cmd *cobra.Command, args []string) error {
	root := projectRoot
	if root == "" {
		root = "."
	}
	return cache.Clear(root)
}
