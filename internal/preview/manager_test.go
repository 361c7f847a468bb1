package preview

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Veraticus/photo-sorter/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const waitFor = 2 * time.Second

// gatedLoader blocks every load until its gate opens or the job is cancelled.
type gatedLoader struct {
	gate     chan struct{}
	inFlight atomic.Int32
	peak     atomic.Int32
	started  chan string
}

func newGatedLoader() *gatedLoader {
	return &gatedLoader{gate: make(chan struct{}), started: make(chan string, 64)}
}

func (g *gatedLoader) load(ctx context.Context, path string) (image.Image, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	g.started <- path

	select {
	case <-g.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return testutil.SolidImage(4, 4, color.White), nil
}

func (g *gatedLoader) waitStarted(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-g.started:
		require.Equal(t, want, got)
	case <-time.After(waitFor):
		t.Fatalf("load of %s never started", want)
	}
}

type delivery struct {
	img  image.Image
	path string
}

func collector() (func(path string) func(image.Image), <-chan delivery) {
	ch := make(chan delivery, 16)
	return func(path string) func(image.Image) {
		return func(img image.Image) { ch <- delivery{path: path, img: img} }
	}, ch
}

func TestManager_DeliversBoundedImage(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	path := testutil.WriteSolid(t, t.TempDir(), "big.png", 1200, 800, color.RGBA{B: 255, A: 255})
	m := NewManager(Options{MaxEdge: 256})
	defer m.Close()

	onLoaded, got := collector()
	job := m.Request("Nature", path, onLoaded(path))
	require.NotNil(t, job)

	select {
	case d := <-got:
		require.NotNil(t, d.img)
		assert.Equal(t, image.Rect(0, 0, 600, 400), d.img.Bounds())
	case <-time.After(waitFor):
		t.Fatal("preview never delivered")
	}
	assert.Equal(t, StateDelivered, job.State())
	assert.Equal(t, StateDelivered, m.State("Nature"))
}

func TestManager_DecodeFailureDeliversNil(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	path := testutil.WriteFile(t, t.TempDir(), "bad.jpg", []byte("nope"))
	m := NewManager(Options{})
	defer m.Close()

	onLoaded, got := collector()
	m.Request("Other", path, onLoaded(path))

	select {
	case d := <-got:
		assert.Nil(t, d.img)
	case <-time.After(waitFor):
		t.Fatal("failure was not reported")
	}
}

func TestManager_NewerRequestSupersedes(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	loader := newGatedLoader()
	m := NewManager(Options{Loader: loader.load, Workers: 4})
	defer m.Close()

	onLoaded, got := collector()

	first := m.Request("People", "a.jpg", onLoaded("a.jpg"))
	loader.waitStarted(t, "a.jpg")

	second := m.Request("People", "b.jpg", onLoaded("b.jpg"))
	loader.waitStarted(t, "b.jpg")
	assert.Equal(t, StateCancelled, first.State())

	close(loader.gate)

	select {
	case d := <-got:
		assert.Equal(t, "b.jpg", d.path)
	case <-time.After(waitFor):
		t.Fatal("current request was not delivered")
	}
	assert.Equal(t, StateDelivered, second.State())

	m.Close()
	assert.Empty(t, got, "superseded request must never publish")
}

func TestManager_SupersededDeliveryFinishesFirst(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	m := NewManager(Options{Workers: 2, Loader: func(context.Context, string) (image.Image, error) {
		return testutil.SolidImage(2, 2, color.White), nil
	}})
	defer m.Close()

	var mu sync.Mutex
	var order []string
	record := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, path)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	m.Request("People", "a.jpg", func(image.Image) {
		close(entered)
		<-release
		record("a.jpg")
	})
	select {
	case <-entered:
	case <-time.After(waitFor):
		t.Fatal("first preview never delivered")
	}

	newerDone := make(chan struct{})
	newer := m.Request("People", "b.jpg", func(image.Image) {
		record("b.jpg")
		close(newerDone)
	})

	otherDone := make(chan struct{})
	m.Request("Nature", "c.jpg", func(image.Image) { close(otherDone) })
	select {
	case <-otherDone:
	case <-time.After(waitFor):
		t.Fatal("a busy slot blocked delivery to another slot")
	}

	assert.Never(t, func() bool {
		select {
		case <-newerDone:
			return true
		default:
			return false
		}
	}, 100*time.Millisecond, 10*time.Millisecond)

	close(release)
	select {
	case <-newerDone:
	case <-time.After(waitFor):
		t.Fatal("newer preview never delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, order)
	assert.Equal(t, StateDelivered, newer.State())
}

func TestManager_Cancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	t.Run("before delivery", func(t *testing.T) {
		loader := newGatedLoader()
		m := NewManager(Options{Loader: loader.load})

		var called atomic.Bool
		job := m.Request("Documents", "d.jpg", func(image.Image) { called.Store(true) })
		loader.waitStarted(t, "d.jpg")

		m.Cancel("Documents")
		assert.Equal(t, StateCancelled, job.State())
		assert.Equal(t, StateIdle, m.State("Documents"))

		close(loader.gate)
		m.Close()
		assert.False(t, called.Load())
	})

	t.Run("after delivery", func(t *testing.T) {
		loader := newGatedLoader()
		close(loader.gate)
		m := NewManager(Options{Loader: loader.load})
		defer m.Close()

		done := make(chan struct{})
		job := m.Request("Screenshots", "s.png", func(image.Image) { close(done) })
		select {
		case <-done:
		case <-time.After(waitFor):
			t.Fatal("not delivered")
		}

		m.Cancel("Screenshots")
		assert.Equal(t, StateDelivered, job.State())
	})

	t.Run("unknown slot", func(t *testing.T) {
		m := NewManager(Options{})
		defer m.Close()
		assert.NotPanics(t, func() { m.Cancel("nothing here") })
		assert.Equal(t, StateIdle, m.State("nothing here"))
	})
}

func TestManager_BoundsWorkers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	loader := newGatedLoader()
	m := NewManager(Options{Loader: loader.load, Workers: 2})

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		m.Request(fmt.Sprintf("slot-%d", i), fmt.Sprintf("%d.png", i), func(image.Image) { wg.Done() })
	}

	// Two loads start; the rest wait for a worker.
	for i := 0; i < 2; i++ {
		select {
		case <-loader.started:
		case <-time.After(waitFor):
			t.Fatal("workers never started")
		}
	}
	assert.Equal(t, int32(2), loader.inFlight.Load())

	close(loader.gate)
	wg.Wait()
	m.Close()

	assert.LessOrEqual(t, loader.peak.Load(), int32(2))
}

func TestManager_CloseStopsEverything(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	loader := newGatedLoader()
	m := NewManager(Options{Loader: loader.load, Workers: 1})

	var delivered atomic.Int32
	jobs := make([]*Job, 0, 4)
	for i := 0; i < 4; i++ {
		jobs = append(jobs, m.Request(fmt.Sprintf("slot-%d", i), "x.png", func(image.Image) { delivered.Add(1) }))
	}
	loader.waitStarted(t, "x.png")

	m.Close()
	m.Close()

	assert.Zero(t, delivered.Load())
	for _, j := range jobs {
		assert.Equal(t, StateCancelled, j.State())
	}
	assert.Nil(t, m.Request("late", "y.png", nil))
}

func TestManager_CancelAll(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	loader := newGatedLoader()
	m := NewManager(Options{Loader: loader.load})
	defer m.Close()

	a := m.Request("a", "a.png", nil)
	b := m.Request("b", "b.png", nil)
	m.CancelAll()

	assert.Equal(t, StateCancelled, a.State())
	assert.Equal(t, StateCancelled, b.State())
	assert.Equal(t, StateIdle, m.State("a"))
}

func TestJobState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "loading", StateLoading.String())
	assert.Equal(t, "delivered", StateDelivered.String())
	assert.Equal(t, "cancelled", StateCancelled.String())
	assert.Equal(t, "unknown", JobState(42).String())
}
