package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCategory is returned when a name does not match any category.
var ErrUnknownCategory = errors.New("unknown category")

// Category is one label of the fixed, closed category set. The label doubles
// as the on-disk directory name inside the library root.
type Category string

// The category set. Declaration order is the model output order.
const (
	CategoryPeople      Category = "People"
	CategoryNature      Category = "Nature"
	CategoryDocuments   Category = "Documents"
	CategoryScreenshots Category = "Screenshots"
	CategoryOther       Category = "Other"
)

// categories is indexed by model output position. The last entry is the fallback.
var categories = [...]Category{
	CategoryPeople,
	CategoryNature,
	CategoryDocuments,
	CategoryScreenshots,
	CategoryOther,
}

// Categories returns the ordered category set. Index i corresponds to the
// i-th score of the inference output vector.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories[:])
	return out
}

// NumCategories is the length of the inference output vector.
func NumCategories() int {
	return len(categories)
}

// Fallback returns the category used whenever classification fails or is inconclusive.
func Fallback() Category {
	return categories[len(categories)-1]
}

// CategoryAt returns the category for a model output index.
func CategoryAt(i int) (Category, bool) {
	if i < 0 || i >= len(categories) {
		return "", false
	}
	return categories[i], true
}

// ParseCategory resolves a user supplied name, ignoring case and surrounding space.
func ParseCategory(name string) (Category, error) {
	trimmed := strings.TrimSpace(name)
	for _, c := range categories {
		if strings.EqualFold(string(c), trimmed) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, name)
}

// Index returns the model output index of c, or -1.
func (c Category) Index() int {
	for i, candidate := range categories {
		if candidate == c {
			return i
		}
	}
	return -1
}

// Valid reports whether c belongs to the category set.
func (c Category) Valid() bool {
	return c.Index() >= 0
}

func (c Category) String() string {
	return string(c)
}

// CategoryItem describes one category directory as it exists on disk right now.
// It is recomputed on every listing and never cached across scans.
type CategoryItem struct {
	Name       Category
	Directory  string
	ImageCount int
}
