package capture

import (
	"image"
	"log/slog"
	"sync"

	"scriptrec/internal/region"
)

type job struct {
	rect image.Rectangle
	name string
	done func(region.Shot)
}

// Async runs captures on a single background worker in FIFO order so that
// slow screen grabs do not stall conversion.
type Async struct {
	capturer region.Capturer
	logger   *slog.Logger

	mu      sync.RWMutex
	closed  bool
	jobs    chan job
	pending sync.WaitGroup
	stopped chan struct{}
}

// NewAsync starts a worker for c with a queue of depth entries. Snap blocks
// while the queue is full.
func NewAsync(c region.Capturer, depth int, logger *slog.Logger) *Async {
	if depth <= 0 {
		depth = 16
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Async{
		capturer: c,
		logger:   logger.With(slog.String("component", "capture")),
		jobs:     make(chan job, depth),
		stopped:  make(chan struct{}),
	}
	go a.run()
	return a
}

// Snap queues a capture of rect persisted as name.
func (a *Async) Snap(rect image.Rectangle, name string, done func(region.Shot)) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		done(region.Shot{Name: name, Rect: rect, Err: ErrClosed})
		return
	}
	a.pending.Add(1)
	a.jobs <- job{rect: rect, name: name, done: done}
}

// Flush blocks until every queued capture has completed.
func (a *Async) Flush() {
	a.pending.Wait()
}

// Close drains the queue and stops the worker.
func (a *Async) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.jobs)
	}
	a.mu.Unlock()
	<-a.stopped
	return nil
}

func (a *Async) run() {
	defer close(a.stopped)
	for j := range a.jobs {
		shot := region.Take(a.capturer, j.rect, j.name)
		a.logger.Debug("capture finished",
			slog.String("file", j.name),
			slog.Bool("ok", shot.Err == nil))
		j.done(shot)
		a.pending.Done()
	}
}
