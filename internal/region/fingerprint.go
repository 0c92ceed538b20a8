package region

import (
	"encoding/binary"
	"encoding/hex"
	"image"
	"image/draw"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns the hex BLAKE2b-256 digest of img's size and RGBA
// pixels. Images that look the same have the same fingerprint regardless
// of their origin or color model.
func Fingerprint(img image.Image) string {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Rect, img, b.Min, draw.Src)
	}

	h, _ := blake2b.New256(nil)
	var size [8]byte
	binary.BigEndian.PutUint32(size[:4], uint32(b.Dx()))
	binary.BigEndian.PutUint32(size[4:], uint32(b.Dy()))
	h.Write(size[:])

	row := rgba.Rect.Dx() * 4
	for y := 0; y < rgba.Rect.Dy(); y++ {
		off := y * rgba.Stride
		h.Write(rgba.Pix[off : off+row])
	}
	return hex.EncodeToString(h.Sum(nil))
}
