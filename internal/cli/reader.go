package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"
)

// ErrInputCancelled is returned when a read is abandoned because its context ended.
var ErrInputCancelled = errors.New("input canceled")

type lineResult struct {
	err  error
	line string
}

// LineReader reads answers typed at the review prompt. A read abandoned by
// a cancelled context keeps running, and its line is handed to the next
// read instead of being lost. It expects a single consumer.
type LineReader struct {
	reader  *bufio.Reader
	mu      sync.Mutex
	pending chan lineResult
}

// NewLineReader wraps r for context-aware line reads.
func NewLineReader(r io.Reader) *LineReader {
	if r == nil {
		panic("reader cannot be nil")
	}
	return &LineReader{reader: bufio.NewReader(r)}
}

// ReadLine returns the next line with surrounding whitespace removed. A last
// line without a trailing newline is returned before io.EOF.
func (r *LineReader) ReadLine(ctx context.Context) (string, error) {
	if ctx.Err() != nil {
		return "", ErrInputCancelled
	}

	r.mu.Lock()
	ch := r.pending
	if ch == nil {
		ch = make(chan lineResult, 1)
		r.pending = ch
		go func() {
			line, err := r.reader.ReadString('\n')
			if errors.Is(err, io.EOF) && line != "" {
				err = nil
			}
			ch <- lineResult{line: line, err: err}
		}()
	}
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case res := <-ch:
		r.mu.Lock()
		r.pending = nil
		r.mu.Unlock()
		if res.err != nil {
			return "", res.err
		}
		return strings.TrimSpace(res.line), nil
	}
}

// ReadChoice reads one answer, lower-cased, and reports whether it is one
// of choices.
func (r *LineReader) ReadChoice(ctx context.Context, choices []string) (string, bool, error) {
	line, err := r.ReadLine(ctx)
	if err != nil {
		return "", false, err
	}
	choice := strings.ToLower(line)
	return choice, slices.Contains(choices, choice), nil
}
