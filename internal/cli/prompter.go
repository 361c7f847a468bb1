package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Veraticus/photo-sorter/internal/model"
	"github.com/Veraticus/photo-sorter/internal/review"
	"github.com/Veraticus/photo-sorter/internal/service"
)

// ErrInputTerminated is returned when the input stream ends mid-review.
var ErrInputTerminated = errors.New("input terminated")

// ReviewSession is the part of review.Session the prompter drives.
type ReviewSession interface {
	Suggest(ctx context.Context, path string) model.Result
	Retry(ctx context.Context) (model.Result, error)
	Accept(ctx context.Context) (string, error)
	Confirm(ctx context.Context, category model.Category) (string, error)
	Skip()
	Stats() service.ReviewStats
}

// ReviewPrompter walks the user through a queue of images one at a time.
type ReviewPrompter struct {
	writer io.Writer
	reader *LineReader
}

// NewReviewPrompter creates a prompter with the given reader and writer.
func NewReviewPrompter(reader io.Reader, writer io.Writer) *ReviewPrompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}

	return &ReviewPrompter{
		reader: NewLineReader(reader),
		writer: writer,
	}
}

// Review asks for a decision on every path in order. It stops early when the
// user quits; the stats cover everything decided up to that point.
func (p *ReviewPrompter) Review(ctx context.Context, session ReviewSession, paths []string) (service.ReviewStats, error) {
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return session.Stats(), err
		}

		if _, err := fmt.Fprintf(p.writer, "\n[%d/%d] ", i+1, len(paths)); err != nil {
			slog.Warn("Failed to write progress", "error", err)
		}

		quit, err := p.reviewOne(ctx, session, path)
		if err != nil {
			return session.Stats(), err
		}
		if quit {
			break
		}
	}

	return session.Stats(), nil
}

func (p *ReviewPrompter) reviewOne(ctx context.Context, session ReviewSession, path string) (bool, error) {
	result := session.Suggest(ctx, path)
	if err := ctx.Err(); err != nil {
		return false, err
	}

	for {
		if _, err := fmt.Fprintln(p.writer, RenderBox("Image Review", formatSuggestion(path, result))); err != nil {
			return false, fmt.Errorf("failed to write review box: %w", err)
		}

		choices, err := p.writeOptions(result)
		if err != nil {
			return false, err
		}

		choice, err := p.promptChoice(ctx, "Choice", choices)
		if err != nil {
			return false, err
		}

		switch choice {
		case "a":
			dest, err := session.Accept(ctx)
			if p.reportPlacement(dest, err) {
				return false, nil
			}
		case "r":
			retried, err := session.Retry(ctx)
			switch {
			case errors.Is(err, review.ErrRetryExhausted):
				p.println(FormatWarning("This image was already retried once."))
			case err != nil:
				return false, err
			default:
				result = retried
			}
		case "s":
			session.Skip()
			p.println(SubtleStyle.Render("Skipped " + filepath.Base(path)))
			return false, nil
		case "q":
			session.Skip()
			return true, nil
		default:
			category, ok := categoryChoice(choice)
			if !ok {
				return false, fmt.Errorf("unexpected choice: %s", choice)
			}
			dest, err := session.Confirm(ctx, category)
			if p.reportPlacement(dest, err) {
				return false, nil
			}
		}
	}
}

// reportPlacement prints the outcome and reports whether the image is done.
func (p *ReviewPrompter) reportPlacement(dest string, err error) bool {
	if err != nil {
		p.println(FormatError(fmt.Sprintf("Could not place image: %v", err)))
		return false
	}
	p.println(FormatSuccess("Placed in " + dest))
	return true
}

func (p *ReviewPrompter) writeOptions(result model.Result) ([]string, error) {
	var b strings.Builder
	b.WriteString(FormatPrompt("Options:") + "\n")
	choices := make([]string, 0, model.NumCategories()+4)

	if result.OK() {
		fmt.Fprintf(&b, "  [A] Accept suggestion: %s\n", SuccessStyle.Render(string(result.Category)))
		choices = append(choices, "a")
	}
	for i, c := range model.Categories() {
		fmt.Fprintf(&b, "  [%d] %s\n", i+1, CategoryLabel(c))
		choices = append(choices, strconv.Itoa(i+1))
	}
	b.WriteString("  [R] Retry classification\n")
	b.WriteString("  [S] Skip this image\n")
	b.WriteString("  [Q] Quit review\n")
	choices = append(choices, "r", "s", "q")

	if _, err := fmt.Fprintln(p.writer, b.String()); err != nil {
		return nil, fmt.Errorf("failed to write options: %w", err)
	}
	return choices, nil
}

func (p *ReviewPrompter) promptChoice(ctx context.Context, prompt string, validChoices []string) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		if _, err := fmt.Fprint(p.writer, FormatPrompt(prompt)); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}

		choice, ok, err := p.reader.ReadChoice(ctx, validChoices)
		if err != nil {
			switch {
			case errors.Is(err, ErrInputCancelled):
				return "", ctx.Err()
			case errors.Is(err, io.EOF):
				return "", ErrInputTerminated
			default:
				return "", err
			}
		}

		if ok {
			return choice, nil
		}

		p.println(FormatError("Invalid choice. Please try again."))
	}
}

func (p *ReviewPrompter) println(s string) {
	if _, err := fmt.Fprintln(p.writer, s); err != nil {
		slog.Warn("Failed to write review output", "error", err)
	}
}

func formatSuggestion(path string, result model.Result) string {
	header := TitleStyle.Render(filepath.Base(path))
	details := fmt.Sprintf("%s Location: %s", InfoIcon, filepath.Dir(path))

	var suggestion string
	if result.OK() {
		suggestion = fmt.Sprintf("%s Suggestion: %s (%.0f%% confidence)",
			CameraIcon,
			SuccessStyle.Render(CategoryLabel(result.Category)),
			result.Confidence*100)
	} else {
		suggestion = fmt.Sprintf("%s No suggestion: %s", WarningIcon, WarningStyle.Render(string(result.Reason)))
		if result.Message != "" {
			suggestion += "\n  " + SubtleStyle.Render(result.Message)
		}
	}

	return header + "\n" + details + "\n\n" + suggestion
}

// categoryChoice maps a 1-based menu number onto a category.
func categoryChoice(choice string) (model.Category, bool) {
	n, err := strconv.Atoi(choice)
	if err != nil {
		return "", false
	}
	return model.CategoryAt(n - 1)
}

var _ ReviewSession = (*review.Session)(nil)
