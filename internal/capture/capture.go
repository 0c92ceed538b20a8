// Package capture provides the screen grabbing and image persistence used
// for Shift-drag region captures.
package capture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"scriptrec/internal/region"
)

// Backend names accepted by New.
const (
	BackendScreen    = "screen"
	BackendSynthetic = "synthetic"
	BackendNone      = "none"
)

var (
	// ErrEmptyRegion is returned when asked to capture a rectangle with no
	// area, e.g. a drag along a single row of pixels.
	ErrEmptyRegion = errors.New("empty capture region")

	// ErrNoDisplay is returned when no active display is available.
	ErrNoDisplay = errors.New("no active display")

	// ErrClosed is reported for captures queued after an Async is closed.
	ErrClosed = errors.New("capture queue closed")

	// ErrUnknownBackend is returned by New for unrecognized backend names.
	ErrUnknownBackend = errors.New("unknown capture backend")
)

// Backends lists the backend names accepted by New.
func Backends() []string {
	b := []string{BackendScreen, BackendSynthetic, BackendNone}
	sort.Strings(b)
	return b
}

// New returns the Capturer for backend writing images into dir. The none
// backend returns a nil Capturer: gestures still produce script lines but
// no image files.
func New(backend, dir string) (region.Capturer, error) {
	switch backend {
	case BackendScreen:
		return NewScreen(dir), nil
	case BackendSynthetic:
		return NewSynthetic(dir), nil
	case BackendNone, "":
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
}

// Folder persists images as PNG files in a directory. Rewriting a name
// with pixels identical to the last write is skipped.
type Folder struct {
	Dir string

	mu      sync.Mutex
	written map[string]string
}

// NewFolder returns a Folder writing into dir.
func NewFolder(dir string) *Folder {
	return &Folder{Dir: dir, written: make(map[string]string)}
}

// Persist encodes img as PNG and writes it to Dir/name.
func (f *Folder) Persist(img image.Image, name string) error {
	if img == nil {
		return errors.New("persist: nil image")
	}
	if name == "" || filepath.Base(name) != name {
		return fmt.Errorf("persist: invalid image name %q", name)
	}
	sum := region.Fingerprint(img)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.written == nil {
		f.written = make(map[string]string)
	}
	if f.written[name] == sum {
		return nil
	}

	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return fmt.Errorf("persist: create image dir: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("persist: encode %s: %w", name, err)
	}

	path := filepath.Join(f.Dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("persist: write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("persist: rename %s: %w", name, err)
	}
	f.written[name] = sum
	return nil
}

// Written returns the fingerprint of the last image persisted as name.
func (f *Folder) Written(name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum, ok := f.written[name]
	return sum, ok
}
