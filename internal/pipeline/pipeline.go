// Package pipeline runs a scan: every input image is classified and placed
// into the library, in order, with progress reported along the way.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/Veraticus/photo-sorter/internal/engine"
	"github.com/Veraticus/photo-sorter/internal/model"
	"github.com/Veraticus/photo-sorter/internal/organizer"
	"github.com/google/uuid"
)

// ErrFatalEngine means the run stopped because the classifier can no longer
// be used. The summary returned alongside it is partial.
var ErrFatalEngine = errors.New("scan aborted: classification engine unavailable")

// Classifier decides the category of one image.
type Classifier interface {
	Classify(ctx context.Context, path string) model.Result
}

// Placer relocates an image into a category directory.
type Placer interface {
	Place(ctx context.Context, src string, category model.Category) (string, error)
}

// Recorder persists scan runs. Failures are logged and never stop a run.
type Recorder interface {
	StartRun(ctx context.Context, runID string, total int, startedAt time.Time) error
	SavePlacement(ctx context.Context, placement *model.Placement) error
	FinishRun(ctx context.Context, summary *model.ScanSummary) error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRecorder records runs and placements through r.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// Pipeline classifies and places images one at a time.
type Pipeline struct {
	classifier Classifier
	placer     Placer
	recorder   Recorder
	now        func() time.Time
}

// New creates a pipeline.
func New(classifier Classifier, placer Placer, opts ...Option) *Pipeline {
	p := &Pipeline{
		classifier: classifier,
		placer:     placer,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes files in order. onProgress may be nil; it is called from a
// separate goroutine and never slows the run down, so intermediate ticks can
// be skipped when it is slow. The last tick is delivered before Run returns
// unless ctx ends first.
//
// A per-file failure never stops the run. An unusable classifier stops it
// with ErrFatalEngine and a cancelled ctx stops it with ctx.Err(); both
// return the partial summary.
func (p *Pipeline) Run(ctx context.Context, files []string, onProgress func(model.Progress)) (*model.ScanSummary, error) {
	input := slices.Clone(files)

	summary := &model.ScanSummary{
		RunID:     uuid.NewString(),
		Total:     len(input),
		State:     model.RunRunning,
		StartedAt: p.now(),
	}

	logger := slog.With("run_id", summary.RunID)
	logger.Info("scan started", "total", summary.Total)

	if p.recorder != nil {
		if err := p.recorder.StartRun(ctx, summary.RunID, summary.Total, summary.StartedAt); err != nil {
			logger.Warn("failed to record scan start", "error", err)
		}
	}

	relay := startRelay(onProgress)

	var runErr error
	state := model.RunCompleted

	for _, path := range input {
		if err := ctx.Err(); err != nil {
			state, runErr = model.RunCancelled, err
			break
		}

		result := p.classifier.Classify(ctx, path)

		if errors.Is(result.Err, engine.ErrEngineUnavailable) {
			logger.Error("classification engine unavailable, aborting scan", "path", path, "error", result.Err)
			state, runErr = model.RunAborted, fmt.Errorf("%w: %w", ErrFatalEngine, result.Err)
			break
		}
		if err := ctx.Err(); err != nil {
			state, runErr = model.RunCancelled, err
			break
		}

		placement := p.place(ctx, summary.RunID, path, result)
		p.count(summary, placement)

		if p.recorder != nil {
			if err := p.recorder.SavePlacement(ctx, &placement); err != nil {
				logger.Warn("failed to record placement", "path", path, "error", err)
			}
		}

		relay.send(model.Progress{
			Path:      path,
			Processed: summary.Processed,
			Total:     summary.Total,
		})
	}

	relay.flush(ctx)

	summary.State = state
	summary.FinishedAt = p.now()

	if p.recorder != nil {
		if err := p.recorder.FinishRun(context.WithoutCancel(ctx), summary); err != nil {
			logger.Warn("failed to record scan result", "error", err)
		}
	}

	logger.Info("scan finished",
		"state", summary.State,
		"processed", summary.Processed,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"duration", summary.Duration())

	return summary, runErr
}

// place puts path into its matched category, or into the fallback when
// classification or the matched placement fails.
func (p *Pipeline) place(ctx context.Context, runID, path string, result model.Result) model.Placement {
	placement := model.Placement{
		RunID:      runID,
		Source:     path,
		Confidence: result.Confidence,
		Reason:     result.Reason,
		Message:    result.Message,
	}
	fallback := model.Fallback()

	if result.OK() {
		dest, err := p.placer.Place(ctx, path, result.Category)
		if err == nil {
			placement.Category = result.Category
			placement.Destination = dest
			placement.Status = model.StatusClassified
			placement.PlacedAt = p.now()
			return placement
		}

		slog.Warn("failed to place image in its category", "path", path, "category", result.Category, "error", err)
		placement.Reason = placementReason(err)
		placement.Message = err.Error()

		if result.Category == fallback {
			placement.Status = model.StatusUnplaced
			return placement
		}
	}

	dest, err := p.placer.Place(ctx, path, fallback)
	if err != nil {
		slog.Error("failed to place image in fallback category", "path", path, "error", err)
		placement.Status = model.StatusUnplaced
		placement.Message = joinMessages(placement.Message, err.Error())
		return placement
	}

	placement.Category = fallback
	placement.Destination = dest
	placement.Status = model.StatusFallback
	placement.PlacedAt = p.now()
	return placement
}

func (p *Pipeline) count(summary *model.ScanSummary, placement model.Placement) {
	summary.Processed++
	if placement.Status == model.StatusClassified {
		summary.Succeeded++
		return
	}
	summary.Failed++
	summary.Failures = append(summary.Failures, model.FileFailure{
		Path:        placement.Source,
		Destination: placement.Destination,
		Reason:      placement.Reason,
		Message:     placement.Message,
	})
}

func placementReason(err error) model.FailureReason {
	if errors.Is(err, organizer.ErrDirectoryCreate) {
		return model.ReasonDirectoryCreate
	}
	return model.ReasonMoveIO
}

func joinMessages(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}
