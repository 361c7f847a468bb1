package cli

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/photo-sorter/internal/model"
	"github.com/Veraticus/photo-sorter/internal/service"
	"github.com/charmbracelet/lipgloss"
)

// maxListedFailures caps the per-file lines in a scan summary.
const maxListedFailures = 10

// RenderScanSummary renders the outcome of one scan run.
func RenderScanSummary(summary *model.ScanSummary) string {
	if summary == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(ChartIcon + " Statistics:\n")
	fmt.Fprintf(&b, "  • Images found: %d\n", summary.Total)
	fmt.Fprintf(&b, "  • Processed: %d\n", summary.Processed)
	fmt.Fprintf(&b, "  • Sorted: %s\n", SuccessStyle.Render(fmt.Sprintf("%d", summary.Succeeded)))
	fmt.Fprintf(&b, "  • Sent to %s: %d\n", model.Fallback(), summary.Failed)
	if d := summary.Duration(); d > 0 {
		fmt.Fprintf(&b, "  • Time taken: %s\n", d.Round(time.Millisecond))
	}

	if reasons := summary.FailuresByReason(); len(reasons) > 0 {
		b.WriteString("\n" + WarningIcon + " Not classified:\n")
		keys := make([]string, 0, len(reasons))
		for r := range reasons {
			keys = append(keys, string(r))
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  • %s: %d\n", ReasonLabel(model.FailureReason(k)), reasons[model.FailureReason(k)])
		}

		b.WriteString("\n")
		for i, f := range summary.Failures {
			if i == maxListedFailures {
				fmt.Fprintf(&b, "  • ... and %d more\n", len(summary.Failures)-maxListedFailures)
				break
			}
			fmt.Fprintf(&b, "  • %s %s\n", filepath.Base(f.Path), SubtleStyle.Render("("+string(f.Reason)+")"))
		}
	}

	return RenderBox(scanTitle(summary.State), strings.TrimRight(b.String(), "\n"))
}

func scanTitle(state model.RunState) string {
	switch state {
	case model.RunCancelled:
		return "Scan Cancelled"
	case model.RunAborted:
		return "Scan Aborted"
	case model.RunRunning:
		return "Scan In Progress"
	default:
		return "Scan Complete"
	}
}

// RenderCategories renders the library listing as a table.
func RenderCategories(items []model.CategoryItem) string {
	if len(items) == 0 {
		return FormatInfo("The library is empty.")
	}

	rows := make([]string, 0, len(items)+1)
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top,
		TableHeaderStyle.Width(18).Render("Category"),
		TableHeaderStyle.Width(8).Render("Images"),
		TableHeaderStyle.Render("Directory"),
	))

	total := 0
	for _, item := range items {
		total += item.ImageCount
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top,
			TableCellStyle.Width(18).Render(CategoryLabel(item.Name)),
			TableCellStyle.Width(8).Render(fmt.Sprintf("%d", item.ImageCount)),
			SubtleStyle.Render(item.Directory),
		))
	}
	rows = append(rows, "", BoldStyle.Render(fmt.Sprintf("%d images in %d categories", total, len(items))))

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// RenderHistory renders recent scan runs, newest first.
func RenderHistory(runs []model.ScanSummary) string {
	if len(runs) == 0 {
		return FormatInfo("No scans recorded yet.")
	}

	var b strings.Builder
	b.WriteString(FormatTitle("Recent scans") + "\n")
	for _, run := range runs {
		fmt.Fprintf(&b, "%s  %s  %d/%d sorted, %d to %s",
			run.StartedAt.Local().Format("Jan 2 15:04"),
			StateLabel(run.State, 9),
			run.Succeeded,
			run.Total,
			run.Failed,
			model.Fallback())
		if d := run.Duration(); d > 0 {
			fmt.Fprintf(&b, "  %s", SubtleStyle.Render(d.Round(time.Second).String()))
		}
		fmt.Fprintf(&b, "  %s\n", SubtleStyle.Render(run.RunID))
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderReviewStats renders the results of a review session.
func RenderReviewStats(stats service.ReviewStats) string {
	content := ChartIcon + " Statistics:\n" +
		fmt.Sprintf("  • Reviewed: %d\n", stats.Reviewed) +
		fmt.Sprintf("  • Accepted: %d\n", stats.Accepted) +
		fmt.Sprintf("  • Overridden: %d\n", stats.Overridden) +
		fmt.Sprintf("  • Skipped: %d\n", stats.Skipped) +
		fmt.Sprintf("  • Retried: %d\n", stats.Retried) +
		fmt.Sprintf("  • Time taken: %s", stats.Duration.Round(time.Second))

	return RenderBox("Review Complete", content)
}
