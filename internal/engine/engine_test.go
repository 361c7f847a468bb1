package engine

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/photo-sorter/internal/inference"
	"github.com/Veraticus/photo-sorter/internal/model"
	"github.com/Veraticus/photo-sorter/internal/service"
	"github.com/Veraticus/photo-sorter/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	green = color.RGBA{G: 200, A: 255}
	tan   = color.RGBA{R: 210, G: 160, B: 120, A: 255}
	grey  = color.RGBA{R: 128, G: 128, B: 128, A: 255}
)

// A fake "ZERO" format whose images decode with no pixels.
func init() {
	image.RegisterFormat("zero", "ZERO",
		func(io.Reader) (image.Image, error) { return image.NewRGBA(image.Rect(0, 0, 0, 0)), nil },
		func(io.Reader) (image.Config, error) { return image.Config{ColorModel: color.RGBAModel}, nil },
	)
}

func newTestEngine(t *testing.T, handle inference.Handle, opts Options) *Engine {
	t.Helper()
	e, err := New(handle, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func scriptedHandle() *MockHandle {
	return NewMockHandle([]float32{0.2, 0.2, 0.2, 0.2, 0.2}).
		On(green, []float32{0.05, 0.8, 0.05, 0.05, 0.05}).
		On(tan, []float32{0.5, 0.2, 0.1, 0.1, 0.1}).
		On(grey, []float32{0.3, 0.3, 0.2, 0.1, 0.1})
}

func TestEngine_Classify(t *testing.T) {
	dir := t.TempDir()
	nature := testutil.WriteSolid(t, dir, "forest.png", 64, 48, green)
	person := testutil.WriteSolid(t, dir, "portrait.png", 48, 64, tan)
	murky := testutil.WriteSolid(t, dir, "murky.png", 32, 32, grey)
	corrupt := testutil.WriteFile(t, dir, "broken.jpg", []byte("not an image at all"))
	empty := testutil.WriteFile(t, dir, "empty.png", []byte("ZERO"))

	tests := []struct {
		name           string
		path           string
		wantCategory   model.Category
		wantReason     model.FailureReason
		wantConfidence float64
	}{
		{name: "nature", path: nature, wantCategory: model.CategoryNature, wantConfidence: 0.8},
		{name: "people", path: person, wantCategory: model.CategoryPeople, wantConfidence: 0.5},
		{name: "arg-max equal to threshold", path: murky, wantReason: model.ReasonLowConfidence},
		{name: "missing file", path: filepath.Join(dir, "nope.jpg"), wantReason: model.ReasonFileNotFound},
		{name: "directory", path: dir, wantReason: model.ReasonFileNotFound},
		{name: "corrupt file", path: corrupt, wantReason: model.ReasonDecodeFailure},
		{name: "zero dimensions", path: empty, wantReason: model.ReasonInvalidDimensions},
	}

	e := newTestEngine(t, scriptedHandle(), DefaultOptions())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Classify(context.Background(), tt.path)

			if tt.wantReason != "" {
				assert.False(t, res.OK())
				assert.Equal(t, tt.wantReason, res.Reason, res.Message)
				assert.Empty(t, res.Category, "failure must not carry a category")
				return
			}
			require.True(t, res.OK(), res.String())
			assert.Equal(t, tt.wantCategory, res.Category)
			assert.InDelta(t, tt.wantConfidence, res.Confidence, 1e-6)
		})
	}
}

func TestEngine_LowConfidenceNeverSucceeds(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteSolid(t, dir, "x.png", 16, 16, green)

	for _, top := range []float32{0.0, 0.1, 0.29, 0.3} {
		handle := NewMockHandle([]float32{top, top / 2, 0, 0, 0})
		e := newTestEngine(t, handle, DefaultOptions())

		res := e.Classify(context.Background(), path)
		assert.Equal(t, model.ReasonLowConfidence, res.Reason, "top score %.2f", top)
		assert.Contains(t, res.Message, "People")
	}

	handle := NewMockHandle([]float32{0.31, 0, 0, 0, 0})
	e := newTestEngine(t, handle, DefaultOptions())
	assert.True(t, e.Classify(context.Background(), path).OK())
}

func TestEngine_ScoreEqualToThresholdIsLowConfidence(t *testing.T) {
	path := testutil.WriteSolid(t, t.TempDir(), "x.png", 16, 16, green)

	tests := []struct {
		name      string
		threshold float64
		top       float32
		wantOK    bool
	}{
		{name: "default threshold exactly", threshold: DefaultThreshold, top: 0.3, wantOK: false},
		{name: "custom threshold exactly", threshold: 0.7, top: 0.7, wantOK: false},
		{name: "next float above threshold", threshold: 0.7, top: math.Nextafter32(float32(0.7), 1), wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Threshold = tt.threshold
			e := newTestEngine(t, NewMockHandle([]float32{tt.top, 0, 0, 0, 0}), opts)

			res := e.Classify(context.Background(), path)
			assert.Equal(t, tt.wantOK, res.OK(), res.String())
			if !tt.wantOK {
				assert.Equal(t, model.ReasonLowConfidence, res.Reason)
			}
		})
	}
}

func TestEngine_MissingFileSkipsInference(t *testing.T) {
	handle := scriptedHandle()
	e := newTestEngine(t, handle, DefaultOptions())

	res := e.Classify(context.Background(), filepath.Join(t.TempDir(), "gone.png"))
	assert.Equal(t, model.ReasonFileNotFound, res.Reason)
	assert.Zero(t, handle.Calls())
}

func TestEngine_InferenceErrors(t *testing.T) {
	path := testutil.WriteSolid(t, t.TempDir(), "x.png", 16, 16, green)

	tests := []struct {
		name       string
		handle     inference.Handle
		wantFatal  bool
		wantSubstr string
	}{
		{
			name:       "handle error",
			handle:     NewMockHandle(nil).FailWith(errors.New("delegate crashed")),
			wantSubstr: "delegate crashed",
		},
		{
			name:      "handle unusable",
			handle:    NewMockHandle(nil).FailWith(inference.ErrUnavailable),
			wantFatal: true,
		},
		{
			name: "panic inside handle",
			handle: inference.HandleFunc(func(context.Context, []byte, []byte) error {
				panic("segfault in delegate")
			}),
			wantSubstr: "segfault in delegate",
		},
		{
			name: "non-finite scores",
			handle: inference.HandleFunc(func(_ context.Context, _, out []byte) error {
				copy(out, inference.EncodeScores([]float32{float32(nan()), 0, 0, 0, 0}))
				return nil
			}),
			wantSubstr: "non-finite",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, tt.handle, DefaultOptions())
			res := e.Classify(context.Background(), path)

			assert.Equal(t, model.ReasonInferenceError, res.Reason)
			assert.Equal(t, tt.wantFatal, errors.Is(res.Err, ErrEngineUnavailable))
			if tt.wantSubstr != "" {
				assert.Contains(t, res.Message, tt.wantSubstr)
			}
		})
	}
}

func TestEngine_ClosedIsFatal(t *testing.T) {
	path := testutil.WriteSolid(t, t.TempDir(), "x.png", 16, 16, green)
	handle := scriptedHandle()

	e, err := New(handle, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	res := e.Classify(context.Background(), path)
	assert.Equal(t, model.ReasonInferenceError, res.Reason)
	assert.ErrorIs(t, res.Err, ErrEngineUnavailable)
	assert.Equal(t, 1, handle.Closes())
}

func TestEngine_Retry(t *testing.T) {
	path := testutil.WriteSolid(t, t.TempDir(), "x.png", 16, 16, green)

	attempts := 0
	handle := scriptedHandle().OnRun(func(context.Context) error {
		attempts++
		if attempts == 1 {
			return errors.New("transient delegate failure")
		}
		return nil
	})

	opts := DefaultOptions()
	opts.Retry = service.RetryOptions{MaxAttempts: 2, InitialDelay: time.Millisecond}
	e := newTestEngine(t, handle, opts)

	res := e.Classify(context.Background(), path)
	require.True(t, res.OK(), res.String())
	assert.Equal(t, 2, attempts)
}

func TestEngine_Timeout(t *testing.T) {
	path := testutil.WriteSolid(t, t.TempDir(), "x.png", 16, 16, green)

	handle := scriptedHandle().OnRun(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	opts := DefaultOptions()
	opts.Timeout = 20 * time.Millisecond
	e := newTestEngine(t, handle, opts)

	res := e.Classify(context.Background(), path)
	assert.Equal(t, model.ReasonInferenceError, res.Reason)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
}

func TestEngine_SerialisesHandle(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteSolid(t, dir, "x.png", 32, 32, green)

	handle := scriptedHandle().OnRun(func(context.Context) error {
		time.Sleep(2 * time.Millisecond)
		return nil
	})
	e := newTestEngine(t, handle, DefaultOptions())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Classify(context.Background(), path)
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, handle.Calls())
	assert.Equal(t, 1, handle.MaxConcurrent())
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, DefaultOptions())
	assert.ErrorIs(t, err, ErrEngineUnavailable)

	_, err = New(scriptedHandle(), Options{Threshold: 1.5})
	assert.Error(t, err)

	e, err := New(scriptedHandle(), Options{Threshold: 0.3})
	require.NoError(t, err)
	assert.Equal(t, DefaultInputSize, e.opts.InputSize)
	assert.Equal(t, 1, e.opts.Retry.MaxAttempts)
}

func TestPreprocess_ChannelOrderRGB(t *testing.T) {
	img := testutil.SolidImage(8, 8, color.RGBA{R: 255, G: 0, B: 128, A: 255})
	tensor := Preprocess(img, 4)

	require.Len(t, tensor, 4*4*3*4)

	// Every pixel is written R, G, B in that order.
	for p := 0; p < 16; p++ {
		assert.InDelta(t, 127.0/128.0, inference.Float32At(tensor, p*3), 0.01, "R at pixel %d", p)
		assert.InDelta(t, -1.0, inference.Float32At(tensor, p*3+1), 0.01, "G at pixel %d", p)
		assert.InDelta(t, 0.0, inference.Float32At(tensor, p*3+2), 0.01, "B at pixel %d", p)
	}
}

func TestPreprocess_RowMajor(t *testing.T) {
	// Left column black, right column white.
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.Black)
	img.Set(0, 1, color.Black)
	img.Set(1, 0, color.White)
	img.Set(1, 1, color.White)

	tensor := Preprocess(img, 2)
	values := make([]float32, 12)
	for i := range values {
		values[i] = inference.Float32At(tensor, i)
	}

	assert.InDeltaSlice(t, []float32{-1, -1, -1, 127.0 / 128, 127.0 / 128, 127.0 / 128}, values[:6], 0.05)
	assert.InDeltaSlice(t, []float32{-1, -1, -1, 127.0 / 128, 127.0 / 128, 127.0 / 128}, values[6:], 0.05)
	assert.False(t, bytes.Equal(tensor[:12], tensor[12:24]))
}

func nan() float64 {
	var zero float64
	return zero / zero
}
