package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"swayc/internal/project"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove cached build artifacts",
		Long:  "Remove the artifact cache of the current project, or the user cache outside a project.",
		Args:  cobra.NoArgs,
		RunE:  runClean,
	}
}

func runClean(cmd *cobra.Command, _ []string) error {
	manifest, found, err := project.LoadManifest(".")
	if err != nil {
		return err
	}
	if !found {
		manifest = nil
	}
	cache, err := openCache(manifest)
	if err != nil {
		return err
	}
	if err := cache.DropAll(); err != nil {
		return fmt.Errorf("failed to clear %q: %w", cache.Dir(), err)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", cache.Dir())
	return err
}
