// Package imagecodec decodes image files into bounded in-memory bitmaps.
//
// The header is probed for dimensions first so that empty or corrupt images
// are rejected before any pixel data is read. The decoders cannot subsample
// while decoding, so a bounded decode reads the full bitmap and then scales
// it down by a power-of-two sample factor; only the reduced copy is kept.
// EXIF orientation is applied to every decoded image so callers always see
// upright pixels.
package imagecodec

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // GIF decoder
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"os"

	"golang.org/x/image/draw"
)

// ErrDecode is returned when a file cannot be parsed as an image.
var ErrDecode = errors.New("image decode failed")

// ErrInvalidDimensions is returned for images reporting a zero width or height.
var ErrInvalidDimensions = errors.New("invalid image dimensions")

// Probe reads only the image header and reports its dimensions and format.
func Probe(path string) (image.Config, string, error) {
	f, err := os.Open(path) //nolint:gosec // paths come from the caller's library
	if err != nil {
		return image.Config{}, "", err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return image.Config{}, "", fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	return cfg, format, nil
}

// SampleFactor returns the largest power-of-two subsample that keeps both
// halved dimensions at or above maxEdge. Images already within maxEdge get 1.
func SampleFactor(width, height, maxEdge int) int {
	factor := 1
	if maxEdge <= 0 {
		return factor
	}
	if height > maxEdge || width > maxEdge {
		halfHeight := height / 2
		halfWidth := width / 2
		for halfHeight/factor >= maxEdge && halfWidth/factor >= maxEdge {
			factor *= 2
		}
	}
	return factor
}

// Decode fully decodes the image at path and applies its EXIF orientation.
func Decode(path string) (image.Image, error) {
	f, err := os.Open(path) //nolint:gosec // paths come from the caller's library
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	if img == nil {
		return nil, fmt.Errorf("%w: %s: no image data", ErrDecode, path)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, b.Dx(), b.Dy())
	}

	return Orient(img, Orientation(path)), nil
}

// DecodeBounded returns a preview-sized bitmap. The full image is decoded
// and then scaled down by SampleFactor, so neither dimension drops below
// maxEdge unless the source was already smaller. Peak memory is that of the
// full-size decode.
func DecodeBounded(path string, maxEdge int) (image.Image, error) {
	cfg, _, err := Probe(path)
	if err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, cfg.Width, cfg.Height)
	}

	img, err := Decode(path)
	if err != nil {
		return nil, err
	}

	factor := SampleFactor(cfg.Width, cfg.Height, maxEdge)
	if factor == 1 {
		return img, nil
	}

	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, max(1, b.Dx()/factor), max(1, b.Dy()/factor)))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst, nil
}

// Square resizes img to an edge×edge NRGBA bitmap, ignoring aspect ratio.
func Square(img image.Image, edge int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, edge, edge))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}
