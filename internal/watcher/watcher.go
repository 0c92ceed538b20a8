// Package watcher monitors raw event logs and reports when a recording
// has settled so it can be converted again.
package watcher

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/crypto/blake2b"
)

// ErrNotFile is returned by Start when a watched path is a directory.
var ErrNotFile = errors.New("watched path is not a regular file")

// Event reports a watched file whose content changed and then stayed
// quiet for the debounce interval.
type Event struct {
	Path      string
	Hash      [32]byte
	Size      int64
	Timestamp time.Time
}

// Digest returns the content hash in hex.
func (e Event) Digest() string { return hex.EncodeToString(e.Hash[:]) }

// Watcher monitors a set of files for changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	paths     []string
	debounce  time.Duration
	tick      time.Duration

	// path -> last change time, for files waiting to settle
	pending map[string]time.Time
	// path -> hash of the content last reported
	reported map[string][32]byte
	watched  map[string]bool
	stateMu  sync.Mutex

	events chan Event
	errors chan error

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a watcher for paths. A file must go debounce without
// changes before it is reported.
func New(paths []string, debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	tick := debounce / 2
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		paths:     paths,
		debounce:  debounce,
		tick:      tick,
		pending:   make(map[string]time.Time),
		reported:  make(map[string][32]byte),
		watched:   make(map[string]bool),
		events:    make(chan Event, 16),
		errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}, nil
}

// Events returns the channel of settled-file events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Start begins watching. Every file is reported once at start, so the
// consumer converts the current content before waiting for edits.
func (w *Watcher) Start() error {
	for _, path := range w.paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		info, err := os.Stat(absPath)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return fmt.Errorf("%w: %s", ErrNotFile, path)
		}

		// Recorders rewrite logs by rename, so watch the directory.
		if err := w.fsWatcher.Add(filepath.Dir(absPath)); err != nil {
			return err
		}

		w.stateMu.Lock()
		w.watched[absPath] = true
		w.pending[absPath] = time.Time{}
		w.stateMu.Unlock()
	}

	w.wg.Add(2)
	go w.eventLoop()
	go w.debounceLoop()
	return nil
}

// Stop shuts the watcher down. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		close(w.events)
		close(w.errors)
		err = w.fsWatcher.Close()
	})
	return err
}

func (w *Watcher) sendErr(err error) {
	select {
	case w.errors <- err:
	default:
	}
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			w.stateMu.Lock()
			if w.watched[event.Name] {
				w.pending[event.Name] = time.Now()
			}
			w.stateMu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.sendErr(err)
		}
	}
}

func (w *Watcher) debounceLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case now := <-ticker.C:
			w.checkStableFiles(now)
		}
	}
}

// checkStableFiles reports pending files quiet for the debounce interval.
// The lock is released while hashing so eventLoop is never blocked on I/O.
func (w *Watcher) checkStableFiles(now time.Time) {
	threshold := now.Add(-w.debounce)

	stable := make(map[string]time.Time)
	w.stateMu.Lock()
	for path, changed := range w.pending {
		if !changed.After(threshold) {
			stable[path] = changed
		}
	}
	w.stateMu.Unlock()

	for path, changed := range stable {
		hash, size, err := HashFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				// Mid-rename; the Create event will re-arm it.
				w.stateMu.Lock()
				if w.pending[path] == changed {
					delete(w.pending, path)
				}
				w.stateMu.Unlock()
				continue
			}
			w.sendErr(err)
			continue
		}

		w.stateMu.Lock()
		if w.pending[path] != changed {
			// Modified while hashing; let it settle again.
			w.stateMu.Unlock()
			continue
		}
		if prev, ok := w.reported[path]; ok && prev == hash {
			delete(w.pending, path)
			w.stateMu.Unlock()
			continue
		}

		select {
		case w.events <- Event{Path: path, Hash: hash, Size: size, Timestamp: now}:
			delete(w.pending, path)
			w.reported[path] = hash
		default:
			// Consumer busy, retry next tick.
		}
		w.stateMu.Unlock()
	}
}

// Run starts the watcher and calls fn for every event until ctx is
// cancelled or fn returns an error. Watch errors are passed to onErr
// when it is non-nil.
func (w *Watcher) Run(ctx context.Context, fn func(Event) error, onErr func(error)) error {
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-w.events:
			if err := fn(ev); err != nil {
				return err
			}
		case err := <-w.errors:
			if onErr != nil {
				onErr(err)
			}
		}
	}
}

// HashFile computes the BLAKE2b-256 hash of a file using streaming.
func HashFile(path string) ([32]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return [32]byte{}, 0, err
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return [32]byte{}, 0, err
	}
	size, err := io.Copy(h, f)
	if err != nil {
		return [32]byte{}, 0, err
	}

	var hash [32]byte
	copy(hash[:], h.Sum(nil))
	return hash, size, nil
}

// pendingCount returns the number of files waiting to settle.
func (w *Watcher) pendingCount() int {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	return len(w.pending)
}
