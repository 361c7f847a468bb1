// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/photo-sorter/internal/model"
)

// PlacementFilter narrows placement queries.
type PlacementFilter struct {
	RunID  string
	Status model.PlacementStatus
	Limit  int
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Scan run operations
	StartRun(ctx context.Context, runID string, total int, startedAt time.Time) error
	FinishRun(ctx context.Context, summary *model.ScanSummary) error
	GetRun(ctx context.Context, runID string) (*model.ScanSummary, error)
	GetRecentRuns(ctx context.Context, limit int) ([]model.ScanSummary, error)
	GetLatestRun(ctx context.Context) (*model.ScanSummary, error)

	// Placement operations
	SavePlacement(ctx context.Context, placement *model.Placement) error
	GetPlacements(ctx context.Context, filter PlacementFilter) ([]model.Placement, error)

	// Review operations
	SaveReviewDecision(ctx context.Context, decision *model.ReviewDecision) error
	GetReviewDecisions(ctx context.Context, limit int) ([]model.ReviewDecision, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// ReviewStats shows the results of a review session.
type ReviewStats struct {
	Reviewed   int
	Accepted   int
	Overridden int
	Skipped    int
	Retried    int
	Duration   time.Duration
}
