package organizer

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Veraticus/photo-sorter/internal/model"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// IsImage reports whether path has a recognized image extension.
func IsImage(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// Library reads the category layout under a root directory. Nothing is
// cached; every query reflects the filesystem at call time.
type Library struct {
	root string
}

// NewLibrary creates a library view over root.
func NewLibrary(root string) *Library {
	return &Library{root: root}
}

// Root returns the library root directory.
func (l *Library) Root() string {
	return l.root
}

// Categories returns one item per category, in category order.
func (l *Library) Categories(ctx context.Context) ([]model.CategoryItem, error) {
	categories := model.Categories()
	items := make([]model.CategoryItem, 0, len(categories))

	for _, c := range categories {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dir := filepath.Join(l.root, string(c))
		names, err := imageNames(dir)
		if err != nil {
			slog.Warn("failed to read category directory", "directory", dir, "error", err)
		}
		items = append(items, model.CategoryItem{
			Name:       c,
			Directory:  dir,
			ImageCount: len(names),
		})
	}
	return items, nil
}

// PreviewImage returns the image shown on a category card: the first
// recognized image by name.
func (l *Library) PreviewImage(item model.CategoryItem) (string, bool) {
	names, err := imageNames(item.Directory)
	if err != nil || len(names) == 0 {
		return "", false
	}
	return filepath.Join(item.Directory, names[0]), true
}

// Images returns the sorted image paths stored under category.
func (l *Library) Images(category model.Category) ([]string, error) {
	dir := filepath.Join(l.root, string(category))
	names, err := imageNames(dir)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
	}
	return paths, nil
}

// imageNames lists recognized regular files in dir. A missing directory has
// no images.
func imageNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !IsImage(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
