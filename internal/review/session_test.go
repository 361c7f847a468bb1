package review

import (
	"context"
	"errors"
	"image/color"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/photo-sorter/internal/model"
	"github.com/Veraticus/photo-sorter/internal/organizer"
	"github.com/Veraticus/photo-sorter/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type classifyFunc func(ctx context.Context, path string) model.Result

func (f classifyFunc) Classify(ctx context.Context, path string) model.Result { return f(ctx, path) }

type memRecorder struct {
	mu         sync.Mutex
	decisions  []model.ReviewDecision
	placements []model.Placement
	err        error
}

func (r *memRecorder) SaveReviewDecision(_ context.Context, d *model.ReviewDecision) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, *d)
	return r.err
}

func (r *memRecorder) SavePlacement(_ context.Context, p *model.Placement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.placements = append(r.placements, *p)
	return r.err
}

func fixture(t *testing.T) (string, string) {
	t.Helper()
	path := testutil.WriteSolid(t, t.TempDir(), "photo.png", 8, 8, color.White)
	return path, t.TempDir()
}

func TestSession_AcceptSuggestion(t *testing.T) {
	path, root := fixture(t)
	rec := &memRecorder{}
	s := NewSession(
		classifyFunc(func(context.Context, string) model.Result { return model.Succeeded(model.CategoryNature, 0.82) }),
		organizer.NewCategorizer(root, organizer.Options{}),
		rec,
	)

	res := s.Suggest(context.Background(), path)
	require.True(t, res.OK())

	dest, err := s.Accept(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Nature", "photo.png"), dest)
	assert.FileExists(t, dest)

	require.Len(t, rec.decisions, 1)
	d := rec.decisions[0]
	assert.Equal(t, path, d.Path)
	assert.Equal(t, model.CategoryNature, d.Suggested)
	assert.Equal(t, model.CategoryNature, d.Chosen)
	assert.False(t, d.Overridden())
	assert.False(t, d.Retried)

	require.Len(t, rec.placements, 1)
	assert.Equal(t, model.StatusReviewed, rec.placements[0].Status)

	_, err = s.Accept(context.Background())
	assert.ErrorIs(t, err, ErrNoSuggestion, "confirmation clears the session")

	stats := s.Stats()
	assert.Equal(t, 1, stats.Reviewed)
	assert.Equal(t, 1, stats.Accepted)
}

func TestSession_OverrideAfterRetry(t *testing.T) {
	path, root := fixture(t)
	calls := 0
	s := NewSession(
		classifyFunc(func(context.Context, string) model.Result {
			calls++
			return model.Failed(model.ReasonLowConfidence, nil)
		}),
		organizer.NewCategorizer(root, organizer.Options{}),
		nil,
	)

	res := s.Suggest(context.Background(), path)
	assert.Equal(t, model.ReasonLowConfidence, res.Reason)

	_, err := s.Accept(context.Background())
	assert.ErrorIs(t, err, ErrNoSuggestion, "a failed suggestion cannot be accepted")

	res, err = s.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.ReasonLowConfidence, res.Reason)

	_, err = s.Retry(context.Background())
	assert.ErrorIs(t, err, ErrRetryExhausted)
	assert.Equal(t, 2, calls)

	dest, err := s.Confirm(context.Background(), model.CategoryDocuments)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Documents", "photo.png"), dest)

	stats := s.Stats()
	assert.Equal(t, 1, stats.Overridden)
	assert.Equal(t, 1, stats.Retried)
}

func TestSession_NewSuggestionCancelsPrevious(t *testing.T) {
	started := make(chan struct{})
	s := NewSession(
		classifyFunc(func(ctx context.Context, path string) model.Result {
			if path == "slow.jpg" {
				close(started)
				<-ctx.Done()
				return model.Failed(model.ReasonInferenceError, ctx.Err())
			}
			return model.Succeeded(model.CategoryPeople, 0.9)
		}),
		organizer.NewCategorizer(t.TempDir(), organizer.Options{}),
		nil,
	)

	slow := make(chan model.Result, 1)
	go func() { slow <- s.Suggest(context.Background(), "slow.jpg") }()
	<-started

	fast := s.Suggest(context.Background(), "fast.jpg")
	require.True(t, fast.OK())

	select {
	case res := <-slow:
		assert.ErrorIs(t, res.Err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("superseded suggestion was not cancelled")
	}

	path, current, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "fast.jpg", path)
	assert.Equal(t, model.CategoryPeople, current.Category)
}

func TestSession_NoImage(t *testing.T) {
	s := NewSession(classifyFunc(nil), organizer.NewCategorizer(t.TempDir(), organizer.Options{}), nil)

	_, err := s.Retry(context.Background())
	assert.ErrorIs(t, err, ErrNoSuggestion)

	_, err = s.Confirm(context.Background(), model.CategoryOther)
	assert.ErrorIs(t, err, ErrNoSuggestion)

	s.Skip()
	assert.Zero(t, s.Stats().Skipped)
}

func TestSession_SkipAndPlacementFailure(t *testing.T) {
	rec := &memRecorder{err: errors.New("disk full")}
	s := NewSession(
		classifyFunc(func(context.Context, string) model.Result { return model.Succeeded(model.CategoryOther, 0.5) }),
		organizer.NewCategorizer(t.TempDir(), organizer.Options{}),
		rec,
	)

	s.Suggest(context.Background(), "/does/not/exist.jpg")
	_, err := s.Accept(context.Background())
	require.ErrorIs(t, err, organizer.ErrMoveIO)
	assert.Empty(t, rec.decisions)

	_, _, ok := s.Current()
	assert.True(t, ok, "a failed placement keeps the image under review")

	s.Skip()
	assert.Equal(t, 1, s.Stats().Skipped)
	_, _, ok = s.Current()
	assert.False(t, ok)
}
