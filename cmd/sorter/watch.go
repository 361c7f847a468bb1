package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/photo-sorter/internal/cli"
	"github.com/Veraticus/photo-sorter/internal/config"
	"github.com/Veraticus/photo-sorter/internal/model"
	"github.com/Veraticus/photo-sorter/internal/watch"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <inbox>",
		Short: "Sort new photos as they arrive in an inbox directory",
		Long: `Watch a directory and sort images dropped into it. Files are scanned once
the directory has been quiet for the debounce period.`,
		Args: cobra.ExactArgs(1),
		RunE: runWatch,
	}

	cmd.Flags().Duration("debounce", 0, "quiet period before a batch is scanned (default 2s)")
	cmd.Flags().Bool("skip-existing", false, "leave images already in the inbox alone")

	_ = viper.BindPFlag(config.KeyWatchDebounce, cmd.Flags().Lookup("debounce"))

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	skipExisting, _ := cmd.Flags().GetBool("skip-existing")
	out := cmd.OutOrStdout()

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	handler := cli.NewInterruptHandler(out)
	ctx := handler.HandleInterrupts(cmd.Context(), false)
	defer handler.Stop()

	stack, err := newSortingStack(ctx, settings)
	if err != nil {
		return err
	}
	defer stack.Close()

	watcher := watch.New(args[0], stack.pipeline, watch.Options{
		Debounce:     settings.WatchDebounce,
		SkipExisting: skipExisting,
		OnSummary: func(summary *model.ScanSummary) {
			fmt.Fprintln(out, cli.RenderScanSummary(summary))
		},
	})

	fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Watching %s, press Ctrl+C to stop", args[0])))
	slog.Info("watching inbox", "inbox", args[0], "library", settings.LibraryRoot, "debounce", settings.WatchDebounce)

	err = watcher.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
