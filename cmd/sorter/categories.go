package main

import (
	"fmt"

	"github.com/Veraticus/photo-sorter/internal/cli"
	"github.com/Veraticus/photo-sorter/internal/organizer"
	"github.com/spf13/cobra"
)

func categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List library categories",
		Long:  `Show every category folder of the library with its current image count.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			if err := requireLibrary(settings.LibraryRoot); err != nil {
				return err
			}

			items, err := organizer.NewLibrary(settings.LibraryRoot).Categories(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list categories: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderCategories(items))
			return nil
		},
	}
}
