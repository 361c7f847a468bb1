package tui

import (
	"github.com/Veraticus/photo-sorter/internal/tui/themes"
)

// Config holds TUI configuration.
type Config struct {
	Theme       themes.Theme
	Width       int
	Height      int
	ThumbWidth  int
	ThumbHeight int
	ShowHelp    bool
}

// Option is a functional option for configuring the TUI.
type Option func(*Config)

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Theme:       themes.Default,
		Width:       80,
		Height:      24,
		ThumbWidth:  24,
		ThumbHeight: 12,
		ShowHelp:    true,
	}
}

// WithTheme sets the visual theme.
func WithTheme(theme themes.Theme) Option {
	return func(c *Config) {
		c.Theme = theme
	}
}

// WithSize sets the initial terminal size.
func WithSize(width, height int) Option {
	return func(c *Config) {
		c.Width = width
		c.Height = height
	}
}

// WithThumbnailSize sets the thumbnail size in terminal cells.
func WithThumbnailSize(width, height int) Option {
	return func(c *Config) {
		if width > 0 {
			c.ThumbWidth = width
		}
		if height > 0 {
			c.ThumbHeight = height
		}
	}
}

// WithHelp toggles the help line.
func WithHelp(show bool) Option {
	return func(c *Config) {
		c.ShowHelp = show
	}
}
