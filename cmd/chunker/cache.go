package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCmd(flags *globalFlags) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage cached cut suggestions",
	}
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Drop every cached cut suggestion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := loadDeps(cmd, flags)
			if err != nil {
				return err
			}
			defer deps.Cache.Close()

			n, err := deps.Cache.Purge(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to purge cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d cached responses\n", n)
			return nil
		},
	})
	return cacheCmd
}
