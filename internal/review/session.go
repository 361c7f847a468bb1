// Package review drives manual review of single images: get a suggestion,
// optionally retry it once, then confirm or override the category.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/photo-sorter/internal/model"
	"github.com/Veraticus/photo-sorter/internal/service"
)

var (
	// ErrNoSuggestion is returned when there is no current image to act on.
	ErrNoSuggestion = errors.New("no image under review")
	// ErrRetryExhausted is returned for a second retry of the same image.
	ErrRetryExhausted = errors.New("suggestion was already retried")
)

// Classifier decides the category of one image.
type Classifier interface {
	Classify(ctx context.Context, path string) model.Result
}

// Placer relocates an image into a category directory.
type Placer interface {
	Place(ctx context.Context, src string, category model.Category) (string, error)
}

// Recorder persists review outcomes. Errors are logged, never returned.
type Recorder interface {
	SaveReviewDecision(ctx context.Context, decision *model.ReviewDecision) error
	SavePlacement(ctx context.Context, placement *model.Placement) error
}

// Session reviews one image at a time. Its methods may be called from
// different goroutines; a new Suggest supersedes one still in flight.
type Session struct {
	classifier Classifier
	placer     Placer
	recorder   Recorder
	now        func() time.Time
	started    time.Time
	cancel     context.CancelFunc
	path       string
	last       model.Result
	stats      service.ReviewStats
	mu         sync.Mutex
	generation uint64
	hasResult  bool
	retried    bool
}

// NewSession creates a review session. recorder may be nil.
func NewSession(classifier Classifier, placer Placer, recorder Recorder) *Session {
	return &Session{
		classifier: classifier,
		placer:     placer,
		recorder:   recorder,
		now:        time.Now,
		started:    time.Now(),
	}
}

// Suggest classifies path and makes it the image under review. If another
// suggestion is still running it is cancelled and its caller receives a
// failed result wrapping context.Canceled.
func (s *Session) Suggest(ctx context.Context, path string) model.Result {
	return s.classify(ctx, path, false)
}

// Retry classifies the current image again. Only one retry per image is
// allowed.
func (s *Session) Retry(ctx context.Context) (model.Result, error) {
	s.mu.Lock()
	path, ok, retried := s.path, s.path != "", s.retried
	s.mu.Unlock()

	if !ok {
		return model.Result{}, ErrNoSuggestion
	}
	if retried {
		return model.Result{}, fmt.Errorf("%w: %s", ErrRetryExhausted, path)
	}

	s.mu.Lock()
	s.stats.Retried++
	s.mu.Unlock()

	return s.classify(ctx, path, true), nil
}

func (s *Session) classify(ctx context.Context, path string, retry bool) model.Result {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.generation++
	gen := s.generation
	s.path = path
	s.retried = retry
	s.hasResult = false
	s.mu.Unlock()

	result := s.classifier.Classify(ctx, path)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		cancel()
		return model.Failed(model.ReasonInferenceError, fmt.Errorf("suggestion for %s superseded: %w", path, context.Canceled))
	}
	cancel()
	s.cancel = nil
	s.last = result
	s.hasResult = true

	slog.Debug("review suggestion", "path", path, "result", result.String(), "retry", retry)
	return result
}

// Current returns the image under review and its latest suggestion.
func (s *Session) Current() (string, model.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path, s.last, s.hasResult
}

// Accept confirms the suggested category.
func (s *Session) Accept(ctx context.Context) (string, error) {
	s.mu.Lock()
	result, ok := s.last, s.hasResult
	s.mu.Unlock()

	if !ok || !result.OK() {
		return "", fmt.Errorf("%w: nothing to accept", ErrNoSuggestion)
	}
	return s.Confirm(ctx, result.Category)
}

// Confirm places the current image into category and records the decision.
func (s *Session) Confirm(ctx context.Context, category model.Category) (string, error) {
	s.mu.Lock()
	path, result, ok, retried := s.path, s.last, s.hasResult, s.retried
	s.mu.Unlock()

	if !ok {
		return "", ErrNoSuggestion
	}

	dest, err := s.placer.Place(ctx, path, category)
	if err != nil {
		return "", fmt.Errorf("place %s in %s: %w", path, category, err)
	}

	decision := model.ReviewDecision{
		DecidedAt:   s.now(),
		Path:        path,
		Destination: dest,
		Suggested:   result.Category,
		Chosen:      category,
		Confidence:  result.Confidence,
		Retried:     retried,
	}
	s.record(ctx, &decision)

	s.mu.Lock()
	s.stats.Reviewed++
	if decision.Overridden() {
		s.stats.Overridden++
	} else {
		s.stats.Accepted++
	}
	s.reset()
	s.mu.Unlock()

	return dest, nil
}

// Skip leaves the current image where it is.
func (s *Session) Skip() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path != "" {
		s.stats.Skipped++
	}
	s.reset()
}

// Stats returns the counters accumulated so far.
func (s *Session) Stats() service.ReviewStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.stats
	stats.Duration = s.now().Sub(s.started)
	return stats
}

// Close cancels any suggestion in flight.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// reset must be called with s.mu held.
func (s *Session) reset() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
	s.path = ""
	s.last = model.Result{}
	s.hasResult = false
	s.retried = false
}

func (s *Session) record(ctx context.Context, decision *model.ReviewDecision) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.SaveReviewDecision(ctx, decision); err != nil {
		slog.Warn("failed to record review decision", "path", decision.Path, "error", err)
	}
	placement := model.Placement{
		PlacedAt:    decision.DecidedAt,
		Source:      decision.Path,
		Destination: decision.Destination,
		Category:    decision.Chosen,
		Status:      model.StatusReviewed,
		Confidence:  decision.Confidence,
	}
	if err := s.recorder.SavePlacement(ctx, &placement); err != nil {
		slog.Warn("failed to record reviewed placement", "path", decision.Path, "error", err)
	}
}
