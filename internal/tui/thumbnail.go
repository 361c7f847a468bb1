package tui

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/draw"
)

// RenderThumbnail draws img into width×height terminal cells using upper
// half blocks, two pixel rows per cell. The image keeps its aspect ratio and
// is centered; uncovered cells stay blank.
func RenderThumbnail(img image.Image, width, height int) string {
	if img == nil || width <= 0 || height <= 0 || img.Bounds().Empty() {
		return ""
	}

	src := img.Bounds()
	pw, ph := width, height*2

	sw, sh := pw, pw*src.Dy()/src.Dx()
	if sh > ph {
		sh = ph
		sw = ph * src.Dx() / src.Dy()
	}
	sw, sh = max(1, sw), max(1, sh)

	canvas := image.NewNRGBA(image.Rect(0, 0, pw, ph))
	offset := image.Pt((pw-sw)/2, (ph-sh)/2)
	draw.ApproxBiLinear.Scale(canvas, image.Rectangle{Min: offset, Max: offset.Add(image.Pt(sw, sh))}, img, src, draw.Src, nil)

	var b strings.Builder
	for y := 0; y < ph; y += 2 {
		for x := 0; x < pw; x++ {
			writeCell(&b, canvas.NRGBAAt(x, y), canvas.NRGBAAt(x, y+1))
		}
		b.WriteString("\x1b[0m")
		if y+2 < ph {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func writeCell(b *strings.Builder, top, bottom color.NRGBA) {
	switch {
	case top.A == 0 && bottom.A == 0:
		b.WriteString("\x1b[0m ")
	case top.A == 0:
		fmt.Fprintf(b, "\x1b[0m\x1b[38;2;%d;%d;%dm▄", bottom.R, bottom.G, bottom.B)
	case bottom.A == 0:
		fmt.Fprintf(b, "\x1b[0m\x1b[38;2;%d;%d;%dm▀", top.R, top.G, top.B)
	default:
		fmt.Fprintf(b, "\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm▀", top.R, top.G, top.B, bottom.R, bottom.G, bottom.B)
	}
}
