package inference

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
)

// Heuristic is a dependency-free Handle that scores images from colour
// statistics of the input tensor. It is the default handle of the CLI when no
// model runtime is configured, and it follows the same tensor contract as a
// real model: R,G,B interleaved values in [-1, 1].
//
// Output order is People, Nature, Documents, Screenshots, Other.
type Heuristic struct {
	closed atomic.Bool
}

// NewHeuristic returns a ready heuristic handle.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

type colourStats struct {
	skin       float64 // share of skin-tone pixels
	foliage    float64 // share of green or sky-blue dominant pixels
	paper      float64 // share of near-white, low-saturation pixels
	ink        float64 // share of near-black pixels
	flat       float64 // share of pixels identical to their left neighbour
	saturation float64 // mean saturation
}

// Run implements Handle.
func (h *Heuristic) Run(ctx context.Context, input, output []byte) error {
	if h.closed.Load() {
		return ErrUnavailable
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(input) == 0 || len(input)%(3*FloatSize) != 0 {
		return fmt.Errorf("%w: input of %d bytes", ErrShape, len(input))
	}
	if len(output) != 5*FloatSize {
		return fmt.Errorf("%w: output of %d bytes, want %d", ErrShape, len(output), 5*FloatSize)
	}

	st := measure(input)

	logits := []float64{
		6*st.skin + 1.5*st.saturation - 2*st.flat,  // People
		6*st.foliage + 2*st.saturation - 2*st.flat, // Nature
		5*st.paper + 3*st.ink - 3*st.saturation,    // Documents
		5*st.flat + 1.5*st.paper - 1*st.foliage,    // Screenshots
		1.2,                                        // Other
	}

	for i, p := range softmax(logits) {
		PutFloat32(output, i, float32(p))
	}
	return nil
}

// Close marks the handle unusable. Subsequent runs return ErrUnavailable.
func (h *Heuristic) Close() error {
	h.closed.Store(true)
	return nil
}

func measure(input []byte) colourStats {
	n := len(input) / (3 * FloatSize)
	edge := int(math.Sqrt(float64(n)))

	var st colourStats
	var prevR, prevG, prevB float64
	for p := 0; p < n; p++ {
		r := byteValue(Float32At(input, p*3))
		g := byteValue(Float32At(input, p*3+1))
		b := byteValue(Float32At(input, p*3+2))

		hi := math.Max(r, math.Max(g, b))
		lo := math.Min(r, math.Min(g, b))
		sat := 0.0
		if hi > 0 {
			sat = (hi - lo) / hi
		}
		st.saturation += sat

		switch {
		case r > 95 && g > 40 && b > 20 && r > g && r > b && r-lo > 15 && math.Abs(r-g) > 15:
			st.skin++
		case g > r && g > b && sat > 0.2, b > r && b > g && sat > 0.25 && hi > 120:
			st.foliage++
		}
		if lo > 200 && sat < 0.1 {
			st.paper++
		}
		if hi < 60 {
			st.ink++
		}
		if edge > 0 && p%edge != 0 && r == prevR && g == prevG && b == prevB {
			st.flat++
		}
		prevR, prevG, prevB = r, g, b
	}

	total := float64(n)
	st.skin /= total
	st.foliage /= total
	st.paper /= total
	st.ink /= total
	st.flat /= total
	st.saturation /= total
	return st
}

// byteValue inverts the (c-128)/128 normalisation.
func byteValue(v float32) float64 {
	return math.Round(float64(v)*128 + 128)
}

func softmax(logits []float64) []float64 {
	hi := math.Inf(-1)
	for _, l := range logits {
		hi = math.Max(hi, l)
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		out[i] = math.Exp(l - hi)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
