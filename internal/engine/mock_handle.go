package engine

import (
	"context"
	"image/color"
	"math"
	"sync"
	"sync/atomic"

	"github.com/Veraticus/photo-sorter/internal/inference"
)

// MockHandle is a scripted inference handle for tests. It averages the input
// tensor back into an RGB colour and answers with the scores registered for
// the nearest colour, which lets fixtures pick their category by paint.
type MockHandle struct {
	byColour  map[color.RGBA][]float32
	fallback  []float32
	err       error
	onRun     func(ctx context.Context) error
	calls     []color.RGBA
	mu        sync.Mutex
	inFlight  atomic.Int32
	maxFlight atomic.Int32
	closes    atomic.Int32
	closed    atomic.Bool
}

// NewMockHandle creates a handle that answers fallback for unknown colours.
func NewMockHandle(fallback []float32) *MockHandle {
	return &MockHandle{
		byColour: make(map[color.RGBA][]float32),
		fallback: fallback,
	}
}

// On registers the scores returned for images painted c.
func (m *MockHandle) On(c color.RGBA, scores []float32) *MockHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byColour[c] = scores
	return m
}

// FailWith makes every run return err.
func (m *MockHandle) FailWith(err error) *MockHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// OnRun installs a hook executed at the start of every run; a non-nil
// return value becomes the run's error.
func (m *MockHandle) OnRun(hook func(ctx context.Context) error) *MockHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRun = hook
	return m
}

// Run implements inference.Handle.
func (m *MockHandle) Run(ctx context.Context, input, output []byte) error {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		seen := m.maxFlight.Load()
		if n <= seen || m.maxFlight.CompareAndSwap(seen, n) {
			break
		}
	}

	if m.closed.Load() {
		return inference.ErrUnavailable
	}

	m.mu.Lock()
	hook, failure := m.onRun, m.err
	m.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	if failure != nil {
		return failure
	}

	mean := meanColour(input)

	m.mu.Lock()
	m.calls = append(m.calls, mean)
	scores := m.nearest(mean)
	m.mu.Unlock()

	for i := 0; i < len(output)/inference.FloatSize; i++ {
		var s float32
		if i < len(scores) {
			s = scores[i]
		}
		inference.PutFloat32(output, i, s)
	}
	return nil
}

// Close implements inference.Handle.
func (m *MockHandle) Close() error {
	m.closes.Add(1)
	m.closed.Store(true)
	return nil
}

// Calls returns the number of completed inference runs.
func (m *MockHandle) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// MaxConcurrent reports the highest number of simultaneous runs observed.
func (m *MockHandle) MaxConcurrent() int {
	return int(m.maxFlight.Load())
}

// Closes reports how many times Close was called.
func (m *MockHandle) Closes() int {
	return int(m.closes.Load())
}

func (m *MockHandle) nearest(c color.RGBA) []float32 {
	best := m.fallback
	bestDist := math.MaxFloat64
	for k, scores := range m.byColour {
		dr := float64(k.R) - float64(c.R)
		dg := float64(k.G) - float64(c.G)
		db := float64(k.B) - float64(c.B)
		d := dr*dr + dg*dg + db*db
		if d < bestDist && d < 48*48 {
			best, bestDist = scores, d
		}
	}
	return best
}

func meanColour(input []byte) color.RGBA {
	n := len(input) / (3 * inference.FloatSize)
	if n == 0 {
		return color.RGBA{}
	}
	var sum [3]float64
	for p := 0; p < n; p++ {
		for c := 0; c < 3; c++ {
			sum[c] += float64(inference.Float32At(input, p*3+c))*128 + 128
		}
	}
	return color.RGBA{
		R: uint8(math.Round(math.Min(255, sum[0]/float64(n)))),
		G: uint8(math.Round(math.Min(255, sum[1]/float64(n)))),
		B: uint8(math.Round(math.Min(255, sum[2]/float64(n)))),
		A: 255,
	}
}
