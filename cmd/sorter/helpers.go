package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/Veraticus/photo-sorter/internal/common"
	"github.com/Veraticus/photo-sorter/internal/config"
	"github.com/Veraticus/photo-sorter/internal/engine"
	"github.com/Veraticus/photo-sorter/internal/inference"
	"github.com/Veraticus/photo-sorter/internal/organizer"
	"github.com/Veraticus/photo-sorter/internal/pipeline"
	"github.com/Veraticus/photo-sorter/internal/storage"
	"github.com/spf13/viper"
)

// envKeyReplacer maps nested keys onto variables like SORTER_LIBRARY_ROOT.
var envKeyReplacer = strings.NewReplacer(".", "_")

// loadSettings validates the merged configuration.
func loadSettings() (*config.Settings, error) {
	settings, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return settings, nil
}

// initStorage opens the database and applies pending migrations.
func initStorage(ctx context.Context, settings *config.Settings) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(settings.DatabasePath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// requireLibrary fails with a friendly message before the first scan.
func requireLibrary(root string) error {
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return common.NewUserError(
			fmt.Sprintf("No library at %s yet. Run 'sorter scan <dir>' first.", root),
			fmt.Errorf("%w: %s", common.ErrLibraryMissing, root),
		)
	}
	return nil
}

// buildEngine creates the classification engine on the built-in heuristic
// handle.
func buildEngine(settings *config.Settings) (*engine.Engine, error) {
	eng, err := engine.New(inference.NewHeuristic(), settings.EngineOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to start classification engine: %w", err)
	}
	return eng, nil
}

// sortingStack bundles what scan and watch share. Close releases it.
type sortingStack struct {
	engine      *engine.Engine
	store       *storage.SQLiteStorage
	categorizer *organizer.Categorizer
	pipeline    *pipeline.Pipeline
}

func newSortingStack(ctx context.Context, settings *config.Settings) (*sortingStack, error) {
	store, err := initStorage(ctx, settings)
	if err != nil {
		return nil, err
	}

	eng, err := buildEngine(settings)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	categorizer := organizer.NewCategorizer(settings.LibraryRoot, settings.OrganizerOptions())
	return &sortingStack{
		engine:      eng,
		store:       store,
		categorizer: categorizer,
		pipeline:    pipeline.New(eng, categorizer, pipeline.WithRecorder(store)),
	}, nil
}

func (s *sortingStack) Close() {
	_ = s.engine.Close()
	_ = s.store.Close()
}
