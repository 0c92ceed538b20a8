package capture

import (
	"fmt"
	"image"
	"image/color"
)

// Synthetic renders a deterministic gradient instead of reading the screen.
// The same rectangle always yields the same pixels, so it is usable in
// headless environments and tests.
type Synthetic struct {
	*Folder
}

// NewSynthetic returns a Synthetic persisting into dir.
func NewSynthetic(dir string) *Synthetic {
	return &Synthetic{Folder: NewFolder(dir)}
}

// Capture renders rect.
func (s *Synthetic) Capture(rect image.Rectangle) (image.Image, error) {
	rect = rect.Canon()
	if rect.Empty() {
		return nil, fmt.Errorf("%w: %v", ErrEmptyRegion, rect)
	}
	img := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := 0; y < rect.Dy(); y++ {
		for x := 0; x < rect.Dx(); x++ {
			sx, sy := rect.Min.X+x, rect.Min.Y+y
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(sx % 256),
				G: uint8(sy % 256),
				B: uint8((sx + sy) % 256),
				A: 255,
			})
		}
	}
	return img, nil
}
