// Package preview loads downsampled card thumbnails in the background. Each
// slot shows at most one image: a newer request for the same slot supersedes
// the older one, whose result is then dropped.
package preview

import (
	"context"
	"image"
	"log/slog"
	"sync"

	"github.com/Veraticus/photo-sorter/internal/imagecodec"
	"golang.org/x/sync/semaphore"
)

// Defaults for Options fields left zero.
const (
	DefaultMaxEdge = 512
	DefaultWorkers = 2
)

// JobState is the lifecycle state of a preview job.
type JobState int

// Job states.
const (
	StateIdle JobState = iota
	StateLoading
	StateDelivered
	StateCancelled
)

func (s JobState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateDelivered:
		return "delivered"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Loader decodes the preview for path. It is not interrupted by
// cancellation; ctx only tells it that nobody wants the result anymore.
type Loader func(ctx context.Context, path string) (image.Image, error)

// Options configures a Manager.
type Options struct {
	Loader  Loader
	MaxEdge int
	Workers int
}

// Job is one preview request.
type Job struct {
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	state  JobState
}

// State returns the job's current state.
func (j *Job) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// stop invalidates the job. Once it returns, a job that was not yet
// delivered never will be.
func (j *Job) stop() {
	j.mu.Lock()
	if j.state == StateLoading {
		j.state = StateCancelled
	}
	j.mu.Unlock()
	j.cancel()
}

// claim moves a still valid job to delivered and reports whether the
// caller may publish its result.
func (j *Job) claim() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateLoading || j.ctx.Err() != nil {
		return false
	}
	j.state = StateDelivered
	return true
}

// Manager runs preview jobs on a bounded number of workers.
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	load   Loader
	sem    *semaphore.Weighted
	jobs   map[string]*Job
	// slots serialises delivery per slot key. Entries are never removed.
	slots  map[string]*sync.Mutex
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewManager creates a preview manager. Call Close when done.
func NewManager(opts Options) *Manager {
	if opts.MaxEdge <= 0 {
		opts.MaxEdge = DefaultMaxEdge
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Loader == nil {
		maxEdge := opts.MaxEdge
		opts.Loader = func(_ context.Context, path string) (image.Image, error) {
			return imagecodec.DecodeBounded(path, maxEdge)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		ctx:    ctx,
		cancel: cancel,
		load:   opts.Loader,
		sem:    semaphore.NewWeighted(int64(opts.Workers)),
		jobs:   make(map[string]*Job),
		slots:  make(map[string]*sync.Mutex),
	}
}

// Request starts loading path for slotKey, superseding any job the slot
// already has. onLoaded runs on a worker goroutine with the decoded image,
// or nil when decoding failed, and only if the job is still current.
// Callbacks for one slot never overlap. A superseded callback that had
// already started may still be running when Request returns, but it
// finishes before the new job's callback begins. onLoaded must not call
// Request, Cancel, CancelAll or Close for its own slot.
// It returns nil after Close.
func (m *Manager) Request(slotKey, path string, onLoaded func(image.Image)) *Job {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	if old, ok := m.jobs[slotKey]; ok {
		old.stop()
	}
	ctx, cancel := context.WithCancel(m.ctx)
	job := &Job{ctx: ctx, cancel: cancel, state: StateLoading}
	m.jobs[slotKey] = job
	delivery, ok := m.slots[slotKey]
	if !ok {
		delivery = &sync.Mutex{}
		m.slots[slotKey] = delivery
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(job, delivery, slotKey, path, onLoaded)
	return job
}

func (m *Manager) run(job *Job, delivery *sync.Mutex, slotKey, path string, onLoaded func(image.Image)) {
	defer m.wg.Done()

	if err := m.sem.Acquire(job.ctx, 1); err != nil {
		return
	}
	if job.ctx.Err() != nil {
		m.sem.Release(1)
		return
	}

	img, err := m.load(job.ctx, path)
	m.sem.Release(1)
	if err != nil {
		slog.Debug("preview decode failed", "slot", slotKey, "path", path, "error", err)
		img = nil
	}

	delivery.Lock()
	defer delivery.Unlock()
	if !job.claim() {
		return
	}
	if onLoaded != nil {
		onLoaded(img)
	}
}

// Cancel drops the slot's job without waiting for its decode to finish.
// It is a no-op for an empty slot or an already delivered job.
func (m *Manager) Cancel(slotKey string) {
	m.mu.Lock()
	job, ok := m.jobs[slotKey]
	delete(m.jobs, slotKey)
	m.mu.Unlock()

	if ok {
		job.stop()
	}
}

// CancelAll cancels every job.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	jobs := m.jobs
	m.jobs = make(map[string]*Job)
	m.mu.Unlock()

	for _, job := range jobs {
		job.stop()
	}
}

// State reports the state of the slot's current job, or StateIdle.
func (m *Manager) State(slotKey string) JobState {
	m.mu.Lock()
	job, ok := m.jobs[slotKey]
	m.mu.Unlock()
	if !ok {
		return StateIdle
	}
	return job.State()
}

// Close cancels all jobs and waits for their goroutines to exit. Later
// requests are ignored.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.CancelAll()
	m.cancel()
	m.wg.Wait()
}
