package imagecodec

import (
	"image"
	"os"

	"github.com/bep/imagemeta"
)

// Orientation reads the EXIF orientation of the file at path.
// Files without EXIF data, or with unreadable metadata, report 1 (upright).
func Orientation(path string) int {
	f, err := os.Open(path) //nolint:gosec // paths come from the caller's library
	if err != nil {
		return 1
	}
	defer f.Close()

	orientation := 1
	_, err = imagemeta.Decode(imagemeta.Options{
		R:       f,
		Sources: imagemeta.EXIF,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			return ti.Tag == "Orientation"
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			if v, ok := orientationValue(ti.Value); ok {
				orientation = v
			}
			return nil
		},
	})
	if err != nil {
		return 1
	}
	return orientation
}

func orientationValue(v any) (int, bool) {
	var n int
	switch val := v.(type) {
	case uint16:
		n = int(val)
	case uint32:
		n = int(val)
	case uint8:
		n = int(val)
	case int:
		n = val
	case int64:
		n = int(val)
	default:
		return 0, false
	}
	if n < 1 || n > 8 {
		return 0, false
	}
	return n, true
}

// Orient returns img transformed so that it displays upright for the given
// EXIF orientation value. Orientation 1 (or anything unknown) returns img.
func Orient(img image.Image, orientation int) image.Image {
	if orientation <= 1 || orientation > 8 {
		return img
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	// Orientations 5-8 swap the axes.
	dw, dh := w, h
	if orientation >= 5 {
		dw, dh = h, w
	}
	dst := image.NewNRGBA(image.Rect(0, 0, dw, dh))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch orientation {
			case 2: // mirror horizontal
				dx, dy = w-1-x, y
			case 3: // rotate 180
				dx, dy = w-1-x, h-1-y
			case 4: // mirror vertical
				dx, dy = x, h-1-y
			case 5: // transpose
				dx, dy = y, x
			case 6: // rotate 90 clockwise
				dx, dy = h-1-y, x
			case 7: // transverse
				dx, dy = h-1-y, w-1-x
			case 8: // rotate 270 clockwise
				dx, dy = y, w-1-x
			}
			dst.Set(dx, dy, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}
