package main

import (
	"fmt"

	"github.com/Veraticus/photo-sorter/internal/cli"
	"github.com/spf13/cobra"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent scans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			settings, err := loadSettings()
			if err != nil {
				return err
			}

			store, err := initStorage(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runs, err := store.GetRecentRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to load scan history: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderHistory(runs))
			return nil
		},
	}

	cmd.Flags().Int("limit", 10, "number of scans to show")
	return cmd
}
