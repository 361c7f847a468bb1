// Package watch sorts an inbox directory continuously: new images are
// collected until the inbox has been quiet for a debounce period and then
// scanned as one batch.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/photo-sorter/internal/common"
	"github.com/Veraticus/photo-sorter/internal/model"
	"github.com/Veraticus/photo-sorter/internal/organizer"
	"github.com/Veraticus/photo-sorter/internal/pipeline"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
)

// DefaultDebounce is how long the inbox must stay quiet before a scan.
const DefaultDebounce = 2 * time.Second

// Scanner runs one scan over a batch of files.
type Scanner interface {
	Run(ctx context.Context, files []string, onProgress func(model.Progress)) (*model.ScanSummary, error)
}

// Options configures a Watcher.
type Options struct {
	// OnSummary, when set, receives the summary of every batch.
	OnSummary func(*model.ScanSummary)
	Debounce  time.Duration
	// SkipExisting leaves images already in the inbox at startup alone.
	SkipExisting bool
}

// Watcher feeds settled inbox images to a Scanner.
type Watcher struct {
	scanner Scanner
	inbox   string
	opts    Options
}

// New creates a watcher for inbox.
func New(inbox string, scanner Scanner, opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if abs, err := filepath.Abs(inbox); err == nil {
		inbox = abs
	}
	return &Watcher{inbox: inbox, scanner: scanner, opts: opts}
}

// Run watches until ctx is cancelled, which is not an error. It returns
// early when a scan fails with pipeline.ErrFatalEngine.
func (w *Watcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.inbox)
	if err != nil {
		return fmt.Errorf("inbox %s: %w", w.inbox, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("inbox %s is not a directory", w.inbox)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	if err := watcher.Add(w.inbox); err != nil {
		return fmt.Errorf("watch directory %s: %w", w.inbox, err)
	}
	slog.Info("watching inbox", "inbox", w.inbox, "debounce", w.opts.Debounce)

	batches := make(chan []string, 1)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(batches)

		if !w.opts.SkipExisting {
			existing, err := w.existing()
			if err != nil {
				return err
			}
			if len(existing) > 0 && !send(ctx, batches, existing) {
				return nil
			}
		}
		return w.collect(ctx, watcher, batches)
	})

	g.Go(func() error {
		for batch := range batches {
			if err := w.scan(ctx, batch); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}

// collect gathers image paths from fsnotify events and emits them once no
// new event arrived for the debounce period.
func (w *Watcher) collect(ctx context.Context, watcher *fsnotify.Watcher, batches chan<- []string) error {
	pending := make(map[string]struct{})
	timer := time.NewTimer(w.opts.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher channel closed")
			}
			if !wanted(event.Name) {
				continue
			}
			switch {
			case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
				pending[event.Name] = struct{}{}
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				delete(pending, event.Name)
			default:
				continue
			}
			timer.Reset(w.opts.Debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]string, 0, len(pending))
			for path := range pending {
				batch = append(batch, path)
			}
			sort.Strings(batch)
			clear(pending)
			if !send(ctx, batches, batch) {
				return nil
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			slog.Warn("fsnotify watcher error", "inbox", w.inbox, "error", err)
		}
	}
}

func (w *Watcher) scan(ctx context.Context, batch []string) error {
	files := batch[:0:0]
	for _, path := range batch {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		files = append(files, path)
	}
	if len(files) == 0 {
		return nil
	}

	slog.Info("inbox settled, scanning", "files", len(files))
	summary, err := w.scanner.Run(ctx, files, nil)
	if summary != nil && w.opts.OnSummary != nil {
		w.opts.OnSummary(summary)
	}

	switch {
	case errors.Is(err, pipeline.ErrFatalEngine):
		return err
	case ctx.Err() != nil:
		return nil
	case err != nil:
		common.LogError(err, "inbox scan failed", common.Fields{"inbox": w.inbox, "files": len(files)})
	}
	return nil
}

func (w *Watcher) existing() ([]string, error) {
	entries, err := os.ReadDir(w.inbox)
	if err != nil {
		return nil, fmt.Errorf("read inbox %s: %w", w.inbox, err)
	}
	var paths []string
	for _, e := range entries {
		path := filepath.Join(w.inbox, e.Name())
		if e.Type().IsRegular() && wanted(path) {
			paths = append(paths, path)
		}
	}
	return paths, nil
}

func wanted(path string) bool {
	return organizer.IsImage(path) && !strings.HasPrefix(filepath.Base(path), ".")
}

func send(ctx context.Context, batches chan<- []string, batch []string) bool {
	select {
	case batches <- batch:
		return true
	case <-ctx.Done():
		return false
	}
}
