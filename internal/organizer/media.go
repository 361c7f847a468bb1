package organizer

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Veraticus/photo-sorter/internal/common"
)

// EnumerateOptions controls media discovery.
type EnumerateOptions struct {
	// SkipDir is never descended into, typically the library root so that
	// already sorted images are not picked up again.
	SkipDir string
	// Exclude holds regular expressions matched against file base names.
	Exclude []string
	// IncludeHidden also walks dot-directories.
	IncludeHidden bool
}

// Enumerate returns the absolute paths of every recognized image under
// sources, sorted and de-duplicated. A source may be a single file.
func Enumerate(ctx context.Context, sources []string, opts EnumerateOptions) ([]string, error) {
	exclude, err := common.CompilePatterns(opts.Exclude)
	if err != nil {
		return nil, err
	}

	skip := ""
	if opts.SkipDir != "" {
		if skip, err = filepath.Abs(opts.SkipDir); err != nil {
			return nil, fmt.Errorf("resolve %s: %w", opts.SkipDir, err)
		}
	}

	seen := make(map[string]bool)
	var paths []string
	keep := func(path string) {
		if !IsImage(path) || common.MatchAny(exclude, filepath.Base(path)) || seen[path] {
			return
		}
		seen[path] = true
		paths = append(paths, path)
	}

	for _, source := range sources {
		root, err := filepath.Abs(source)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", source, err)
		}

		walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				if path == skip {
					return filepath.SkipDir
				}
				if path != root && !opts.IncludeHidden && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() {
				keep(path)
			}
			return nil
		})
		if walkErr != nil {
			return nil, fmt.Errorf("enumerate %s: %w", source, walkErr)
		}
	}

	sort.Strings(paths)
	return paths, nil
}
