package pipeline

import (
	"context"

	"github.com/Veraticus/photo-sorter/internal/model"
)

// relay hands progress ticks to a consumer goroutine through a one-slot
// mailbox. A tick the consumer has not picked up yet is replaced by the
// newer one, so the sender never blocks.
type relay struct {
	mailbox chan model.Progress
	done    chan struct{}
}

func startRelay(fn func(model.Progress)) *relay {
	if fn == nil {
		return nil
	}
	r := &relay{
		mailbox: make(chan model.Progress, 1),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(r.done)
		for p := range r.mailbox {
			fn(p)
		}
	}()
	return r
}

// send must only be called from a single goroutine.
func (r *relay) send(p model.Progress) {
	if r == nil {
		return
	}
	for {
		select {
		case r.mailbox <- p:
			return
		default:
		}
		select {
		case <-r.mailbox:
		default:
		}
	}
}

// flush stops the relay and waits for the last tick to be delivered.
func (r *relay) flush(ctx context.Context) {
	if r == nil {
		return
	}
	close(r.mailbox)
	select {
	case <-r.done:
	case <-ctx.Done():
	}
}
