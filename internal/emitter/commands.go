package emitter

import (
	"fmt"
	"image"
	"strconv"
)

// Mouse button constants used in scripts, indexed by recorder button number.
var buttonNames = map[int]string{
	1: "Button.LEFT",
	2: "Button.MIDDLE",
	3: "Button.RIGHT",
	4: "Button.WHEEL_UP",
	5: "Button.WHEEL_DOWN",
}

// ButtonName returns the script constant for a mouse button.
func ButtonName(button int) (string, bool) {
	n, ok := buttonNames[button]
	return n, ok
}

// IsWheel reports whether button is a wheel tick rather than a real button.
func IsWheel(button int) bool { return button == 4 || button == 5 }

// Seconds converts a millisecond interval to seconds.
func Seconds(ms int64) float64 { return float64(ms) / 1000.0 }

// MoveDelay sets the delay applied before the next mouse move.
func MoveDelay(ms int64) string {
	return fmt.Sprintf("Settings.MoveMouseDelay = %f", Seconds(ms))
}

// MouseMove moves the pointer to p.
func MouseMove(p image.Point) string {
	return fmt.Sprintf("mouseMove(Location(%d,%d))", p.X, p.Y)
}

// Hover places the pointer at p.
func Hover(p image.Point) string {
	return fmt.Sprintf("hover(Location(%d, %d))", p.X, p.Y)
}

// Wait pauses for ms milliseconds.
func Wait(ms int64) string {
	return fmt.Sprintf("wait(%f)", Seconds(ms))
}

// MouseDown presses a mouse button.
func MouseDown(button string) string {
	return fmt.Sprintf("mouseDown(%s)", button)
}

// MouseUp releases a mouse button.
func MouseUp(button string) string {
	return fmt.Sprintf("mouseUp(%s)", button)
}

// Wheel scrolls by ticks in the direction encoded by button.
func Wheel(button string, ticks int) string {
	return fmt.Sprintf("wheel(%s, %d)", button, ticks)
}

// TypeDelay sets the delay applied before the next typed key.
func TypeDelay(ms int64) string {
	return "Settings.TypeDelay = " + strconv.FormatFloat(Seconds(ms), 'f', -1, 64)
}

// TypeText types a literal character with an optional modifier prefix.
func TypeText(text, prefix string) string {
	if prefix == "" {
		return fmt.Sprintf("type(%s)", strconv.Quote(text))
	}
	return fmt.Sprintf("type(%s, %s)", strconv.Quote(text), prefix)
}

// TypeKey types a named key with an optional modifier prefix.
func TypeKey(name, prefix string) string {
	if prefix == "" {
		return fmt.Sprintf("type(Key.%s)", name)
	}
	return fmt.Sprintf("type(Key.%s, %s)", name, prefix)
}

// RegionBox assigns the rectangle r to the script variable reg.
func RegionBox(r image.Rectangle) string {
	return fmt.Sprintf("reg = Region(%d, %d, %d, %d)", r.Min.X, r.Min.Y, r.Dx(), r.Dy())
}

// Highlight outlines reg for seconds in color.
func Highlight(seconds float64, color string) string {
	return fmt.Sprintf("reg.highlight(%s, %s)", strconv.FormatFloat(seconds, 'f', -1, 64), strconv.Quote(color))
}

// ImageWaitMarker documents that the script should wait for an image. It is
// a comment because waiting on the image would distort the recorded timing.
func ImageWaitMarker(file string) string {
	return fmt.Sprintf("# wait(%s)", strconv.Quote(file))
}

// PointMarker documents a point the operator marked without dragging.
func PointMarker(p image.Point) string {
	return fmt.Sprintf("# mark_point(Location(%d, %d))", p.X, p.Y)
}

// PatternClick clicks at offset from the center of the image in file. Right
// selects rightClick instead of click.
func PatternClick(file string, similarity float64, offset image.Point, right bool) string {
	fn := "click"
	if right {
		fn = "rightClick"
	}
	return fmt.Sprintf("%s(Pattern(%s).similar(%.2f).targetOffset(%d,%d))",
		fn, strconv.Quote(file), similarity, offset.X, offset.Y)
}
