package capture

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// Screen captures from the active displays.
type Screen struct {
	*Folder
}

// NewScreen returns a Screen persisting into dir.
func NewScreen(dir string) *Screen {
	return &Screen{Folder: NewFolder(dir)}
}

// Capture grabs rect, clipped to the union of the active displays.
func (s *Screen) Capture(rect image.Rectangle) (image.Image, error) {
	rect = rect.Canon()
	if rect.Empty() {
		return nil, fmt.Errorf("%w: %v", ErrEmptyRegion, rect)
	}

	bounds, err := DesktopBounds()
	if err != nil {
		return nil, err
	}
	clipped := rect.Intersect(bounds)
	if clipped.Empty() {
		return nil, fmt.Errorf("%w: %v is outside the desktop %v", ErrEmptyRegion, rect, bounds)
	}

	img, err := screenshot.CaptureRect(clipped)
	if err != nil {
		return nil, fmt.Errorf("capture %v: %w", clipped, err)
	}
	return img, nil
}

// DesktopBounds returns the union of all active display bounds.
func DesktopBounds() (image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if n <= 0 {
		return image.Rectangle{}, ErrNoDisplay
	}
	var all image.Rectangle
	for i := 0; i < n; i++ {
		all = all.Union(screenshot.GetDisplayBounds(i))
	}
	return all, nil
}
