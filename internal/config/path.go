// Package config loads sorter settings from viper and resolves the paths
// they name.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AppName names the per-user config directory.
const AppName = "sorter"

// ExpandPath resolves $VAR references and a leading ~ in a configured path
// and cleans the result. Blank input stays empty.
func ExpandPath(path string) string {
	path = os.ExpandEnv(strings.TrimSpace(path))
	if path == "" {
		return ""
	}

	rest, isHome := strings.CutPrefix(path, "~")
	if !isHome || (rest != "" && rest[0] != filepath.Separator) {
		return filepath.Clean(path)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Join(home, rest)
}

// ConfigDir returns the directory searched for config.yaml:
// $XDG_CONFIG_HOME/sorter when set, otherwise ~/.config/sorter.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); filepath.IsAbs(xdg) {
		return filepath.Join(xdg, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", AppName), nil
}
