package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Veraticus/photo-sorter/internal/cli"
	"github.com/Veraticus/photo-sorter/internal/common"
	"github.com/Veraticus/photo-sorter/internal/organizer"
	"github.com/Veraticus/photo-sorter/internal/review"
	"github.com/Veraticus/photo-sorter/internal/service"
	"github.com/spf13/cobra"
)

func reviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review [path...]",
		Short: "Review classifications one image at a time",
		Long: `Show the suggested category for each image and confirm or override it.

Without arguments, reviews the images the most recent scan could not
classify.`,
		RunE: runReview,
	}
}

func runReview(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	handler := cli.NewInterruptHandler(out)
	ctx := handler.HandleInterrupts(cmd.Context(), false)
	defer handler.Stop()

	store, err := initStorage(ctx, settings)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	paths := args
	if len(paths) == 0 {
		if paths, err = reviewQueue(ctx, store); err != nil {
			return err
		}
	}
	if len(paths) == 0 {
		fmt.Fprintln(out, cli.FormatInfo("Nothing to review."))
		return nil
	}

	eng, err := buildEngine(settings)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	session := review.NewSession(eng, organizer.NewCategorizer(settings.LibraryRoot, settings.OrganizerOptions()), store)
	defer session.Close()

	stats, err := cli.NewReviewPrompter(cmd.InOrStdin(), out).Review(ctx, session, paths)
	fmt.Fprintln(out, cli.RenderReviewStats(stats))

	switch {
	case err == nil, errors.Is(err, cli.ErrInputTerminated):
		return nil
	case errors.Is(err, context.Canceled) && handler.WasInterrupted():
		return nil
	default:
		return err
	}
}

// reviewQueue lists the images of the latest run that still sit where the
// scan left them without a confident category.
func reviewQueue(ctx context.Context, store service.Storage) ([]string, error) {
	run, err := store.GetLatestRun(ctx)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest scan: %w", err)
	}

	var paths []string
	for _, f := range run.Failures {
		path := f.Destination
		if path == "" {
			path = f.Path
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		paths = append(paths, path)
	}
	return paths, nil
}
