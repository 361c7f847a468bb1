package tui

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/photo-sorter/internal/testutil"
)

func TestRenderThumbnail(t *testing.T) {
	tests := []struct {
		img        image.Image
		name       string
		wantColor  string
		width      int
		height     int
		blankLines int
	}{
		{
			name:      "square fills the box",
			img:       testutil.SolidImage(8, 8, color.RGBA{G: 255, A: 255}),
			width:     6,
			height:    3,
			wantColor: "38;2;0;255;0",
		},
		{
			name:       "wide image is letterboxed",
			img:        testutil.SolidImage(40, 10, color.RGBA{B: 255, A: 255}),
			width:      8,
			height:     4,
			wantColor:  "38;2;0;0;255",
			blankLines: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := RenderThumbnail(tt.img, tt.width, tt.height)
			lines := strings.Split(out, "\n")
			require.Len(t, lines, tt.height)
			for _, line := range lines {
				assert.Equal(t, tt.width, lipgloss.Width(line))
			}
			assert.Contains(t, out, tt.wantColor)

			blank := 0
			for _, line := range lines {
				if !strings.ContainsAny(line, "▀▄") {
					blank++
				}
			}
			assert.Equal(t, tt.blankLines, blank)
		})
	}
}

func TestRenderThumbnail_Degenerate(t *testing.T) {
	assert.Empty(t, RenderThumbnail(nil, 4, 4))
	assert.Empty(t, RenderThumbnail(testutil.SolidImage(2, 2, color.White), 0, 4))
	assert.Empty(t, RenderThumbnail(image.NewNRGBA(image.Rect(0, 0, 0, 0)), 4, 4))
}
