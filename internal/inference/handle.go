// Package inference defines the boundary between the classifier and the
// model runtime. A Handle receives a preprocessed float32 tensor and writes
// one float32 score per category; what produces the scores is opaque.
package inference

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrUnavailable means the handle can no longer run inference (closed or broken).
	ErrUnavailable = errors.New("inference handle unavailable")
	// ErrShape means an input or output buffer has the wrong byte length.
	ErrShape = errors.New("tensor shape mismatch")
)

// FloatSize is the byte width of one tensor element.
const FloatSize = 4

// Handle runs a model over a single preprocessed image.
//
// input holds edge*edge*3 float32 values and output receives one float32
// per category, both in native byte order. Implementations are not required
// to be safe for concurrent use.
type Handle interface {
	Run(ctx context.Context, input, output []byte) error
	Close() error
}

// HandleFunc adapts a function to the Handle interface. Close is a no-op.
type HandleFunc func(ctx context.Context, input, output []byte) error

// Run calls f.
func (f HandleFunc) Run(ctx context.Context, input, output []byte) error {
	return f(ctx, input, output)
}

// Close implements Handle.
func (f HandleFunc) Close() error { return nil }

// InputBytes is the tensor byte length for an edge×edge RGB input.
func InputBytes(edge int) int {
	return edge * edge * 3 * FloatSize
}

// PutFloat32 writes v at element index i of buf in native byte order.
func PutFloat32(buf []byte, i int, v float32) {
	binary.NativeEndian.PutUint32(buf[i*FloatSize:], math.Float32bits(v))
}

// Float32At reads element index i of buf in native byte order.
func Float32At(buf []byte, i int) float32 {
	return math.Float32frombits(binary.NativeEndian.Uint32(buf[i*FloatSize:]))
}

// EncodeScores writes scores into a new output-sized buffer.
func EncodeScores(scores []float32) []byte {
	buf := make([]byte, len(scores)*FloatSize)
	for i, s := range scores {
		PutFloat32(buf, i, s)
	}
	return buf
}

// DecodeScores reads every float32 in buf.
func DecodeScores(buf []byte) ([]float32, error) {
	if len(buf)%FloatSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a float32 multiple", ErrShape, len(buf))
	}
	out := make([]float32, len(buf)/FloatSize)
	for i := range out {
		out[i] = Float32At(buf, i)
	}
	return out, nil
}
