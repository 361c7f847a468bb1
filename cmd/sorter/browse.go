package main

import (
	"github.com/Veraticus/photo-sorter/internal/organizer"
	"github.com/Veraticus/photo-sorter/internal/preview"
	"github.com/Veraticus/photo-sorter/internal/tui"
	"github.com/Veraticus/photo-sorter/internal/tui/themes"
	"github.com/spf13/cobra"
)

func browseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse the library with thumbnail previews",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			theme, _ := cmd.Flags().GetString("theme")

			settings, err := loadSettings()
			if err != nil {
				return err
			}
			if err := requireLibrary(settings.LibraryRoot); err != nil {
				return err
			}

			library := organizer.NewLibrary(settings.LibraryRoot)
			manager := preview.NewManager(settings.PreviewOptions())

			return tui.Run(cmd.Context(), library, manager, tui.WithTheme(themes.GetTheme(theme)))
		},
	}

	cmd.Flags().String("theme", "default", "color theme (default, catppuccin-mocha)")
	return cmd
}
