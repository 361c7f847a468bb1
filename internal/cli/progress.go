package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Veraticus/photo-sorter/internal/model"
	"github.com/schollz/progressbar/v3"
)

// ScanProgress renders pipeline progress ticks as a terminal progress bar.
type ScanProgress struct {
	writer io.Writer
	bar    *progressbar.ProgressBar
}

// NewScanProgress creates a progress bar for total images. A zero total
// renders nothing.
func NewScanProgress(writer io.Writer, total int) *ScanProgress {
	if writer == nil {
		writer = os.Stdout
	}
	p := &ScanProgress{writer: writer}
	if total <= 0 {
		return p
	}

	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Sorting photos...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
	return p
}

// Update moves the bar to the tick's processed count.
func (p *ScanProgress) Update(progress model.Progress) {
	if p.bar == nil {
		return
	}
	p.bar.Describe(fmt.Sprintf("[cyan][bold]Sorting[reset] %s", filepath.Base(progress.Path)))
	if err := p.bar.Set(progress.Processed); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// Finish completes the bar. It is safe to call on an interrupted scan.
func (p *ScanProgress) Finish() {
	if p.bar == nil || p.bar.IsFinished() {
		return
	}
	if err := p.bar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
}
