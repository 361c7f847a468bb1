package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/photo-sorter/internal/cli"
	"github.com/Veraticus/photo-sorter/internal/common"
	"github.com/Veraticus/photo-sorter/internal/config"
	"github.com/Veraticus/photo-sorter/internal/organizer"
	"github.com/Veraticus/photo-sorter/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [dir|file...]",
		Short: "Classify photos and file them into the library",
		Long: `Classify every image found under the given directories (or the given files)
and move it into its category folder inside the library.

Images that cannot be classified confidently are filed under Other and can be
revisited with 'sorter review'.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runScan,
	}

	// Flags
	cmd.Flags().String("mode", "", "placement mode (move, copy)")
	cmd.Flags().String("on-collision", "", "what to do when a file name is taken (overwrite, rename)")
	cmd.Flags().StringSlice("exclude", nil, "regular expressions for file names to skip")
	cmd.Flags().Bool("include-hidden", false, "also scan hidden directories")
	cmd.Flags().Bool("no-progress", false, "don't draw a progress bar")

	_ = viper.BindPFlag(config.KeyOrganizeMode, cmd.Flags().Lookup("mode"))
	_ = viper.BindPFlag(config.KeyOnCollision, cmd.Flags().Lookup("on-collision"))
	_ = viper.BindPFlag(config.KeyLibraryExclude, cmd.Flags().Lookup("exclude"))

	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	includeHidden, _ := cmd.Flags().GetBool("include-hidden")
	noProgress, _ := cmd.Flags().GetBool("no-progress")
	out := cmd.OutOrStdout()

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	handler := cli.NewInterruptHandler(out)
	ctx := handler.HandleInterrupts(cmd.Context(), true)
	defer handler.Stop()

	files, err := organizer.Enumerate(ctx, args, organizer.EnumerateOptions{
		SkipDir:       settings.LibraryRoot,
		Exclude:       settings.Exclude,
		IncludeHidden: includeHidden,
	})
	if err != nil {
		return fmt.Errorf("failed to find images: %w", err)
	}
	if len(files) == 0 {
		fmt.Fprintln(out, cli.FormatInfo(common.ErrNoImages.Error()))
		return nil
	}

	stack, err := newSortingStack(ctx, settings)
	if err != nil {
		return err
	}
	defer stack.Close()

	slog.Info("starting scan", "images", len(files), "library", settings.LibraryRoot, "mode", settings.OrganizeMode)

	total := len(files)
	if noProgress {
		total = 0
	}
	progress := cli.NewScanProgress(out, total)
	summary, err := stack.pipeline.Run(ctx, files, progress.Update)
	progress.Finish()

	fmt.Fprintln(out, cli.RenderScanSummary(summary))

	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled) && handler.WasInterrupted():
		return nil
	case errors.Is(err, pipeline.ErrFatalEngine):
		return common.NewUserError("The classification engine stopped; the remaining images were left where they were.", err)
	default:
		return err
	}
}
