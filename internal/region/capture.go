package region

import (
	"fmt"
	"image"
)

// Capturer grabs screen pixels and saves them. It is the only way the
// converter touches the screen or the file system.
type Capturer interface {
	Capture(rect image.Rectangle) (image.Image, error)
	Persist(img image.Image, name string) error
}

// Shot is the outcome of capturing one region.
type Shot struct {
	Seq         int
	Name        string
	Rect        image.Rectangle
	Hover       bool
	Fingerprint string // of the captured pixels, empty when Capture failed
	Err         error
}

// Snapper captures rect and persists it as name, then calls done exactly
// once with the outcome. done may run on another goroutine.
type Snapper interface {
	Snap(rect image.Rectangle, name string, done func(Shot))
}

// Direct adapts a Capturer into a synchronous Snapper.
type Direct struct {
	Capturer Capturer
}

// Snap captures and persists on the calling goroutine.
func (d Direct) Snap(rect image.Rectangle, name string, done func(Shot)) {
	done(Take(d.Capturer, rect, name))
}

// Take captures rect with c and persists it as name.
func Take(c Capturer, rect image.Rectangle, name string) (s Shot) {
	s = Shot{Name: name, Rect: rect}
	defer func() {
		if r := recover(); r != nil {
			s.Err = fmt.Errorf("capture %s: panic: %v", name, r)
		}
	}()
	img, err := c.Capture(rect)
	if err != nil {
		s.Err = fmt.Errorf("capture %s: %w", name, err)
		return s
	}
	s.Fingerprint = Fingerprint(img)
	if err := c.Persist(img, name); err != nil {
		s.Err = fmt.Errorf("persist %s: %w", name, err)
	}
	return s
}
