// Package storage provides the data persistence layer for the sorter application.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/photo-sorter/internal/model"
)

// Validation errors.
var (
	ErrNilContext        = errors.New("context cannot be nil")
	ErrEmptyString       = errors.New("string parameter cannot be empty")
	ErrNilParameter      = errors.New("parameter cannot be nil")
	ErrInvalidStatus     = errors.New("invalid placement status")
	ErrInvalidState      = errors.New("invalid run state")
	ErrInvalidPlacement  = errors.New("invalid placement")
	ErrInvalidDecision   = errors.New("invalid review decision")
	ErrInvalidRunSummary = errors.New("invalid run summary")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateSummary(summary *model.ScanSummary) error {
	if summary == nil {
		return fmt.Errorf("%w: summary", ErrNilParameter)
	}
	if summary.RunID == "" {
		return fmt.Errorf("%w: missing run ID", ErrInvalidRunSummary)
	}
	switch summary.State {
	case model.RunRunning, model.RunCompleted, model.RunAborted, model.RunCancelled:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidState, summary.State)
	}
	if summary.Succeeded+summary.Failed != summary.Processed {
		return fmt.Errorf("%w: %d succeeded + %d failed != %d processed",
			ErrInvalidRunSummary, summary.Succeeded, summary.Failed, summary.Processed)
	}
	if summary.Processed > summary.Total {
		return fmt.Errorf("%w: processed %d of %d", ErrInvalidRunSummary, summary.Processed, summary.Total)
	}
	return nil
}

func validatePlacement(p *model.Placement) error {
	if p == nil {
		return fmt.Errorf("%w: placement", ErrNilParameter)
	}
	if p.Source == "" {
		return fmt.Errorf("%w: missing source", ErrInvalidPlacement)
	}
	if err := validateStatus(p.Status); err != nil {
		return err
	}
	if p.Status != model.StatusUnplaced {
		if !p.Category.Valid() {
			return fmt.Errorf("%w: category %q", ErrInvalidPlacement, p.Category)
		}
		if p.Destination == "" {
			return fmt.Errorf("%w: missing destination", ErrInvalidPlacement)
		}
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.2f", ErrInvalidPlacement, p.Confidence)
	}
	return nil
}

func validateStatus(status model.PlacementStatus) error {
	switch status {
	case model.StatusClassified, model.StatusFallback, model.StatusReviewed, model.StatusUnplaced:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
}

func validateDecision(d *model.ReviewDecision) error {
	if d == nil {
		return fmt.Errorf("%w: decision", ErrNilParameter)
	}
	if d.Path == "" || d.Destination == "" {
		return fmt.Errorf("%w: missing path", ErrInvalidDecision)
	}
	if !d.Chosen.Valid() {
		return fmt.Errorf("%w: chosen category %q", ErrInvalidDecision, d.Chosen)
	}
	if d.Suggested != "" && !d.Suggested.Valid() {
		return fmt.Errorf("%w: suggested category %q", ErrInvalidDecision, d.Suggested)
	}
	return nil
}
