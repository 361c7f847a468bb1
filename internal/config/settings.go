package config

import (
	"fmt"
	"time"

	"github.com/Veraticus/photo-sorter/internal/common"
	"github.com/Veraticus/photo-sorter/internal/engine"
	"github.com/Veraticus/photo-sorter/internal/organizer"
	"github.com/Veraticus/photo-sorter/internal/preview"
	"github.com/Veraticus/photo-sorter/internal/watch"
	"github.com/spf13/viper"
)

// Configuration keys.
const (
	KeyLibraryRoot    = "library.root"
	KeyLibraryExclude = "library.exclude"
	KeyDatabasePath   = "database.path"
	KeyThreshold      = "classification.threshold"
	KeyInputSize      = "classification.input_size"
	KeyTimeout        = "classification.timeout"
	KeyRetryAttempts  = "classification.retry.max_attempts"
	KeyOrganizeMode   = "organize.mode"
	KeyOnCollision    = "organize.on_collision"
	KeyPreviewMaxEdge = "preview.max_edge"
	KeyPreviewWorkers = "preview.workers"
	KeyWatchDebounce  = "watch.debounce"
	KeyLogLevel       = "logging.level"
	KeyLogFormat      = "logging.format"
)

// Settings is the validated application configuration.
type Settings struct {
	LibraryRoot    string
	DatabasePath   string
	OrganizeMode   organizer.Mode
	OnCollision    organizer.CollisionPolicy
	Exclude        []string
	Threshold      float64
	InputSize      int
	Timeout        time.Duration
	RetryAttempts  int
	PreviewMaxEdge int
	PreviewWorkers int
	WatchDebounce  time.Duration
}

// SetDefaults registers default values for every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyLibraryRoot, "$HOME/Pictures/Sorted")
	v.SetDefault(KeyLibraryExclude, []string{})
	v.SetDefault(KeyDatabasePath, "$HOME/.local/share/sorter/sorter.db")
	v.SetDefault(KeyThreshold, engine.DefaultThreshold)
	v.SetDefault(KeyInputSize, engine.DefaultInputSize)
	v.SetDefault(KeyTimeout, time.Duration(0))
	v.SetDefault(KeyRetryAttempts, 1)
	v.SetDefault(KeyOrganizeMode, string(organizer.ModeMove))
	v.SetDefault(KeyOnCollision, string(organizer.CollisionOverwrite))
	v.SetDefault(KeyPreviewMaxEdge, preview.DefaultMaxEdge)
	v.SetDefault(KeyPreviewWorkers, preview.DefaultWorkers)
	v.SetDefault(KeyWatchDebounce, watch.DefaultDebounce)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
}

// Load reads and validates settings from v. Paths have ~ and $VAR expanded.
func Load(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		LibraryRoot:    ExpandPath(v.GetString(KeyLibraryRoot)),
		DatabasePath:   ExpandPath(v.GetString(KeyDatabasePath)),
		Exclude:        v.GetStringSlice(KeyLibraryExclude),
		Threshold:      v.GetFloat64(KeyThreshold),
		InputSize:      v.GetInt(KeyInputSize),
		Timeout:        v.GetDuration(KeyTimeout),
		RetryAttempts:  v.GetInt(KeyRetryAttempts),
		PreviewMaxEdge: v.GetInt(KeyPreviewMaxEdge),
		PreviewWorkers: v.GetInt(KeyPreviewWorkers),
		WatchDebounce:  v.GetDuration(KeyWatchDebounce),
	}

	var err error
	if s.OrganizeMode, err = organizer.ParseMode(v.GetString(KeyOrganizeMode)); err != nil {
		return nil, err
	}
	if s.OnCollision, err = organizer.ParseCollisionPolicy(v.GetString(KeyOnCollision)); err != nil {
		return nil, err
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) validate() error {
	switch {
	case s.LibraryRoot == "":
		return fmt.Errorf("%w: %s is required", common.ErrMissingConfig, KeyLibraryRoot)
	case s.DatabasePath == "":
		return fmt.Errorf("%w: %s is required", common.ErrMissingConfig, KeyDatabasePath)
	case s.Threshold < 0 || s.Threshold >= 1:
		return fmt.Errorf("%w: %s must be in [0, 1), got %v", common.ErrInvalidConfig, KeyThreshold, s.Threshold)
	case s.InputSize <= 0:
		return fmt.Errorf("%w: %s must be positive, got %d", common.ErrInvalidConfig, KeyInputSize, s.InputSize)
	case s.Timeout < 0:
		return fmt.Errorf("%w: %s must not be negative", common.ErrInvalidConfig, KeyTimeout)
	case s.RetryAttempts < 1:
		return fmt.Errorf("%w: %s must be at least 1, got %d", common.ErrInvalidConfig, KeyRetryAttempts, s.RetryAttempts)
	case s.PreviewMaxEdge <= 0:
		return fmt.Errorf("%w: %s must be positive, got %d", common.ErrInvalidConfig, KeyPreviewMaxEdge, s.PreviewMaxEdge)
	case s.PreviewWorkers <= 0:
		return fmt.Errorf("%w: %s must be positive, got %d", common.ErrInvalidConfig, KeyPreviewWorkers, s.PreviewWorkers)
	case s.WatchDebounce <= 0:
		return fmt.Errorf("%w: %s must be positive", common.ErrInvalidConfig, KeyWatchDebounce)
	}
	if _, err := common.CompilePatterns(s.Exclude); err != nil {
		return err
	}
	return nil
}

// EngineOptions converts the classification settings.
func (s *Settings) EngineOptions() engine.Options {
	opts := engine.DefaultOptions()
	opts.Threshold = s.Threshold
	opts.InputSize = s.InputSize
	opts.Timeout = s.Timeout
	opts.Retry.MaxAttempts = s.RetryAttempts
	return opts
}

// OrganizerOptions converts the placement settings.
func (s *Settings) OrganizerOptions() organizer.Options {
	return organizer.Options{Mode: s.OrganizeMode, Collision: s.OnCollision}
}

// PreviewOptions converts the preview settings.
func (s *Settings) PreviewOptions() preview.Options {
	return preview.Options{MaxEdge: s.PreviewMaxEdge, Workers: s.PreviewWorkers}
}
