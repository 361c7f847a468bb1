// Package engine turns image files into category decisions using an
// injected inference handle.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"github.com/Veraticus/photo-sorter/internal/common"
	"github.com/Veraticus/photo-sorter/internal/imagecodec"
	"github.com/Veraticus/photo-sorter/internal/inference"
	"github.com/Veraticus/photo-sorter/internal/model"
	"github.com/Veraticus/photo-sorter/internal/service"
)

// ErrEngineUnavailable marks a classification that failed because the
// inference handle can no longer be used. It is fatal for a scan run.
var ErrEngineUnavailable = errors.New("classification engine unavailable")

// Defaults used when Options leave a field zero.
const (
	DefaultThreshold = 0.3
	DefaultInputSize = 224
)

// Options configures an Engine.
type Options struct {
	// Threshold is the score the arg-max must exceed to count as a match.
	Threshold float64
	// InputSize is the square edge length the model expects.
	InputSize int
	// Timeout bounds a single inference call. Zero means no limit. The
	// limit is cooperative: the handle receives the deadline via its context.
	Timeout time.Duration
	// Retry controls retries of failed inference calls. MaxAttempts 1 disables retry.
	Retry service.RetryOptions
}

// DefaultOptions returns the engine defaults: 0.3 threshold, 224px input,
// no timeout and a single attempt.
func DefaultOptions() Options {
	return Options{
		Threshold: DefaultThreshold,
		InputSize: DefaultInputSize,
		Retry:     service.RetryOptions{MaxAttempts: 1},
	}
}

// Engine classifies images. It owns its inference handle and serialises all
// calls to it, so one Engine may be shared across goroutines.
type Engine struct {
	handle inference.Handle
	opts   Options
	mu     sync.Mutex
	closed bool
}

// New creates an engine that takes ownership of handle.
func New(handle inference.Handle, opts Options) (*Engine, error) {
	if handle == nil {
		return nil, fmt.Errorf("%w: nil inference handle", ErrEngineUnavailable)
	}
	if opts.Threshold < 0 || opts.Threshold >= 1 {
		return nil, fmt.Errorf("%w: threshold %.2f outside [0, 1)", common.ErrInvalidConfig, opts.Threshold)
	}
	if opts.InputSize == 0 {
		opts.InputSize = DefaultInputSize
	}
	if opts.InputSize < 0 {
		return nil, fmt.Errorf("%w: input size %d", common.ErrInvalidConfig, opts.InputSize)
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry.MaxAttempts = 1
	}

	return &Engine{handle: handle, opts: opts}, nil
}

// Threshold returns the configured confidence threshold.
func (e *Engine) Threshold() float64 {
	return e.opts.Threshold
}

// Classify decides the category of the image at path. It never panics and
// never returns an error: every failure is a model.Result with a reason.
func (e *Engine) Classify(ctx context.Context, path string) (result model.Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("classification panicked", "path", path, "panic", r)
			result = model.Failed(model.ReasonInferenceError, fmt.Errorf("unexpected failure: %v", r))
		}
	}()

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.Failed(model.ReasonFileNotFound, err)
		}
		return model.Failed(model.ReasonDecodeFailure, err)
	}
	if info.IsDir() {
		return model.Failed(model.ReasonFileNotFound, fmt.Errorf("%s is a directory", path))
	}

	tensor, reason, err := e.load(path)
	if err != nil {
		return model.Failed(reason, err)
	}

	scores, err := e.infer(ctx, tensor)
	if err != nil {
		return model.Failed(model.ReasonInferenceError, err)
	}

	return e.decide(scores)
}

// load decodes the image and converts it to the input tensor. The decoded
// full-size bitmap does not outlive this call.
func (e *Engine) load(path string) ([]byte, model.FailureReason, error) {
	img, err := imagecodec.Decode(path)
	switch {
	case errors.Is(err, imagecodec.ErrInvalidDimensions):
		return nil, model.ReasonInvalidDimensions, err
	case errors.Is(err, fs.ErrNotExist):
		return nil, model.ReasonFileNotFound, err
	case err != nil:
		return nil, model.ReasonDecodeFailure, err
	}
	return Preprocess(img, e.opts.InputSize), "", nil
}

// decide applies the arg-max and the confidence threshold.
func (e *Engine) decide(scores []float32) model.Result {
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}

	category, _ := model.CategoryAt(best)
	confidence := float64(scores[best])

	// Scores are float32; widening first lets float32(0.3) pass a 0.3 threshold.
	if scores[best] <= float32(e.opts.Threshold) {
		r := model.Failed(model.ReasonLowConfidence, nil)
		r.Message = fmt.Sprintf("best guess %s at %.0f%% does not exceed %.0f%%",
			category, confidence*100, e.opts.Threshold*100)
		return r
	}

	return model.Succeeded(category, confidence)
}

// infer runs the handle once (plus configured retries) and validates the output.
func (e *Engine) infer(ctx context.Context, tensor []byte) ([]float32, error) {
	output := make([]byte, model.NumCategories()*inference.FloatSize)

	op := func() error {
		return e.run(ctx, tensor, output)
	}
	if err := common.WithRetry(ctx, op, e.opts.Retry); err != nil {
		return nil, err
	}

	scores, err := inference.DecodeScores(output)
	if err != nil {
		return nil, err
	}
	if len(scores) != model.NumCategories() {
		return nil, fmt.Errorf("%w: %d scores for %d categories", inference.ErrShape, len(scores), model.NumCategories())
	}
	for i, s := range scores {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			return nil, fmt.Errorf("non-finite score at index %d", i)
		}
	}
	return scores, nil
}

func (e *Engine) run(ctx context.Context, input, output []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return common.Permanent(ErrEngineUnavailable)
	}

	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	err := e.handle.Run(ctx, input, output)
	switch {
	case err == nil && ctx.Err() != nil:
		return fmt.Errorf("inference: %w", ctx.Err())
	case errors.Is(err, inference.ErrUnavailable):
		return common.Permanent(fmt.Errorf("%w: %w", ErrEngineUnavailable, err))
	case errors.Is(err, inference.ErrShape):
		return common.Permanent(err)
	case err != nil:
		return fmt.Errorf("inference: %w", err)
	}
	return nil
}

// Close releases the inference handle. It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	return e.handle.Close()
}

// Preprocess converts img into the model input tensor: an edge×edge resize,
// row-major pixels, channels interleaved in R, G, B order, each channel
// mapped to (c-128)/128 as a native-endian float32.
//
// The channel order must match the order the model was trained with; a
// mismatch does not fail, it silently degrades every prediction.
func Preprocess(img image.Image, edge int) []byte {
	square := imagecodec.Square(img, edge)
	tensor := make([]byte, inference.InputBytes(edge))

	i := 0
	for y := 0; y < edge; y++ {
		row := square.Pix[y*square.Stride:]
		for x := 0; x < edge; x++ {
			px := row[x*4 : x*4+3]
			for _, c := range px { // R, G, B
				inference.PutFloat32(tensor, i, (float32(c)-128)/128.0)
				i++
			}
		}
	}
	return tensor
}
