// Package organizer places classified images into the on-disk category
// layout and answers questions about that layout.
package organizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/photo-sorter/internal/common"
	"github.com/Veraticus/photo-sorter/internal/imagecodec"
	"github.com/Veraticus/photo-sorter/internal/model"
	"github.com/corona10/goimagehash"
	"github.com/google/renameio/v2"
)

var (
	// ErrDirectoryCreate means the category directory could not be created.
	ErrDirectoryCreate = errors.New("failed to create category directory")
	// ErrMoveIO means the file could not be moved or copied into place.
	ErrMoveIO = errors.New("failed to move file")
)

// Mode selects what happens to the source file after placement.
type Mode string

// Placement modes.
const (
	ModeMove Mode = "move"
	ModeCopy Mode = "copy"
)

// CollisionPolicy decides what happens when the destination name is taken.
type CollisionPolicy string

// Collision policies.
const (
	CollisionOverwrite CollisionPolicy = "overwrite"
	CollisionRename    CollisionPolicy = "rename"
)

// DefaultDuplicateDistance is the dHash distance below which two images are
// treated as the same picture.
const DefaultDuplicateDistance = 10

// duplicateHashEdge bounds the decode used for perceptual hashing.
const duplicateHashEdge = 256

// ParseMode validates a configured placement mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeMove:
		return ModeMove, nil
	case ModeCopy:
		return ModeCopy, nil
	}
	return "", fmt.Errorf("%w: organize mode %q (want move or copy)", common.ErrInvalidConfig, s)
}

// ParseCollisionPolicy validates a configured collision policy.
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch CollisionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", CollisionOverwrite:
		return CollisionOverwrite, nil
	case CollisionRename:
		return CollisionRename, nil
	}
	return "", fmt.Errorf("%w: collision policy %q (want overwrite or rename)", common.ErrInvalidConfig, s)
}

// Options configures a Categorizer.
type Options struct {
	Mode              Mode
	Collision         CollisionPolicy
	DuplicateDistance int
}

// Categorizer relocates files into <root>/<category>/.
type Categorizer struct {
	root string
	opts Options
}

// NewCategorizer creates a categorizer rooted at root. Zero options mean
// move mode with silent overwrite.
func NewCategorizer(root string, opts Options) *Categorizer {
	if opts.Mode == "" {
		opts.Mode = ModeMove
	}
	if opts.Collision == "" {
		opts.Collision = CollisionOverwrite
	}
	if opts.DuplicateDistance <= 0 {
		opts.DuplicateDistance = DefaultDuplicateDistance
	}
	return &Categorizer{root: root, opts: opts}
}

// Root returns the library root directory.
func (c *Categorizer) Root() string {
	return c.root
}

// Dir returns the directory holding category.
func (c *Categorizer) Dir(category model.Category) string {
	return filepath.Join(c.root, string(category))
}

// Place moves (or copies) src into the directory of category and returns
// the destination path. A file already at its destination is left alone.
func (c *Categorizer) Place(ctx context.Context, src string, category model.Category) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !category.Valid() {
		return "", fmt.Errorf("%w: %w: %q", ErrMoveIO, model.ErrUnknownCategory, category)
	}

	dir := c.Dir(category)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrDirectoryCreate, dir, err)
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrMoveIO, src, err)
	}
	if srcInfo.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrMoveIO, src)
	}

	dest := filepath.Join(dir, filepath.Base(src))

	destInfo, err := os.Stat(dest)
	switch {
	case err == nil && os.SameFile(srcInfo, destInfo):
		return dest, nil
	case err == nil:
		dest, err = c.resolveCollision(src, dest)
		if err != nil {
			return "", err
		}
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("%w: %s: %w", ErrMoveIO, dest, err)
	}

	if err := c.transfer(src, dest, srcInfo.Mode().Perm()); err != nil {
		return "", err
	}

	common.LogDebug("placed image", common.Fields{
		"source":      src,
		"destination": dest,
		"category":    category,
		"mode":        c.opts.Mode,
	})
	return dest, nil
}

// resolveCollision returns the destination to use when dest already exists.
func (c *Categorizer) resolveCollision(src, dest string) (string, error) {
	if c.opts.Collision == CollisionOverwrite {
		slog.Warn("overwriting existing file in category", "destination", dest, "source", src)
		return dest, nil
	}

	if c.isDuplicate(src, dest) {
		slog.Info("replacing perceptual duplicate", "destination", dest, "source", src)
		return dest, nil
	}

	ext := filepath.Ext(dest)
	stem := strings.TrimSuffix(dest, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		_, err := os.Stat(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrMoveIO, candidate, err)
		}
	}
}

// isDuplicate compares dHash values of both images. Anything that cannot be
// hashed is treated as distinct.
func (c *Categorizer) isDuplicate(a, b string) bool {
	ha, err := differenceHash(a)
	if err != nil {
		return false
	}
	hb, err := differenceHash(b)
	if err != nil {
		return false
	}
	dist, err := ha.Distance(hb)
	return err == nil && dist < c.opts.DuplicateDistance
}

func differenceHash(path string) (*goimagehash.ImageHash, error) {
	img, err := imagecodec.DecodeBounded(path, duplicateHashEdge)
	if err != nil {
		return nil, err
	}
	return goimagehash.DifferenceHash(img)
}

func (c *Categorizer) transfer(src, dest string, perm fs.FileMode) error {
	if c.opts.Mode == ModeCopy {
		return copyAtomic(src, dest, perm)
	}

	// os.Rename replaces dest atomically on the same filesystem.
	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s: %w", ErrMoveIO, src, err)
	}
	slog.Debug("rename failed, copying instead", "source", src, "error", err)

	// Cross-device: durable copy, then drop the source.
	if err := copyAtomic(src, dest, perm); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("%w: remove source %s: %w", ErrMoveIO, src, err)
	}
	return nil
}

func copyAtomic(src, dest string, perm fs.FileMode) error {
	in, err := os.Open(src) //nolint:gosec // src comes from media enumeration
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMoveIO, src, err)
	}
	defer func() { _ = in.Close() }()

	pending, err := renameio.NewPendingFile(dest, renameio.WithPermissions(perm))
	if err != nil {
		return fmt.Errorf("%w: create pending %s: %w", ErrMoveIO, dest, err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			slog.Debug("cleanup pending file", "destination", dest, "error", err)
		}
	}()

	if _, err := io.Copy(pending, in); err != nil {
		return fmt.Errorf("%w: copy %s: %w", ErrMoveIO, src, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("%w: replace %s: %w", ErrMoveIO, dest, err)
	}
	return nil
}
