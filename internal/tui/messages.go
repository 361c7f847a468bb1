package tui

import (
	"image"

	"github.com/Veraticus/photo-sorter/internal/model"
)

// categoriesLoadedMsg carries a fresh library listing and the preview image
// chosen for each non-empty category.
type categoriesLoadedMsg struct {
	err      error
	previews map[model.Category]string
	items    []model.CategoryItem
}

// previewLoadedMsg carries a delivered preview. img is nil when the file
// could not be decoded.
type previewLoadedMsg struct {
	img        image.Image
	slot       string
	generation int
}
