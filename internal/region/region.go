// Package region recognizes the modifier-drag gestures that turn into image
// captures and highlighted regions.
//
// Holding left Shift while moving the pointer selects a rectangle that is
// captured to an image file; the next click is then expressed as an offset
// from that image's center. Holding left Control while moving the pointer
// selects a rectangle that the script highlights. Holding either without
// moving leaves a point marker.
package region

import (
	"fmt"
	"image"
	"log/slog"

	"scriptrec/internal/emitter"
	"scriptrec/internal/modifier"
)

// Kind identifies the gesture armed by a modifier.
type Kind int

const (
	None Kind = iota
	Shift
	Ctrl
)

func (k Kind) String() string {
	switch k {
	case Shift:
		return "shift"
	case Ctrl:
		return "ctrl"
	default:
		return "none"
	}
}

// Outcome reports what completing a gesture produced.
type Outcome int

const (
	NotArmed Outcome = iota
	Marked
	Captured
	Highlighted
)

func (o Outcome) String() string {
	switch o {
	case Marked:
		return "marked"
	case Captured:
		return "captured"
	case Highlighted:
		return "highlighted"
	default:
		return "not_armed"
	}
}

// Defaults for Options.
const (
	DefaultHighlightSeconds = 2.0
	DefaultHighlightColor   = "#FF0000"
	DefaultSimilarity       = 0.9
	DefaultSnapModulus      = 20
	DefaultSnapThreshold    = 15
)

// GestureFor returns the gesture a modifier key arms. Only the left-hand
// Shift and Control keys arm gestures.
func GestureFor(key string) (Kind, bool) {
	switch key {
	case modifier.ShiftL:
		return Shift, true
	case modifier.ControlL:
		return Ctrl, true
	}
	return None, false
}

// Pending is an armed gesture waiting for its modifier to be released.
type Pending struct {
	Kind   Kind
	Key    string
	Anchor image.Point
	Time   int64
	Mark   emitter.Checkpoint
	Moved  bool
}

// Image describes a captured region.
type Image struct {
	Seq      int
	FileName string
	Box      image.Rectangle
	Center   image.Point
}

// Options configures a Machine.
type Options struct {
	Snapper          Snapper
	Logger           *slog.Logger
	HighlightSeconds float64
	HighlightColor   string
	Similarity       float64
	SnapModulus      int
	SnapThreshold    int
	// OnShot, if set, receives every capture outcome, including hover
	// re-snapshots. It may be called from another goroutine when the
	// Snapper is asynchronous.
	OnShot func(Shot)
}

// Machine is the gesture state machine of one conversion session.
type Machine struct {
	opts   Options
	logger *slog.Logger

	pending *Pending
	seq     int

	image    *Image
	followUp bool
	snapping bool
	held     Held
}

// NewMachine returns a Machine with zero option fields replaced by defaults.
func NewMachine(opts Options) *Machine {
	if opts.HighlightSeconds <= 0 {
		opts.HighlightSeconds = DefaultHighlightSeconds
	}
	if opts.HighlightColor == "" {
		opts.HighlightColor = DefaultHighlightColor
	}
	if opts.Similarity <= 0 {
		opts.Similarity = DefaultSimilarity
	}
	if opts.SnapModulus <= 0 {
		opts.SnapModulus = DefaultSnapModulus
	}
	if opts.SnapThreshold <= 0 {
		opts.SnapThreshold = DefaultSnapThreshold
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{opts: opts, logger: logger.With(slog.String("component", "region"))}
}

// Arm starts a gesture for key pressed at anchor. mark is the log length to
// roll back to if the gesture consumes the motion that follows.
func (m *Machine) Arm(kind Kind, key string, anchor image.Point, t int64, mark emitter.Checkpoint) {
	m.pending = &Pending{Kind: kind, Key: key, Anchor: anchor, Time: t, Mark: mark}
}

// Armed returns the pending gesture, if any.
func (m *Machine) Armed() (Pending, bool) {
	if m.pending == nil {
		return Pending{}, false
	}
	return *m.pending, true
}

// Abort drops the pending gesture.
func (m *Machine) Abort() {
	if m.pending != nil {
		m.logger.Debug("gesture aborted", slog.String("kind", m.pending.Kind.String()))
	}
	m.pending = nil
}

// Captures returns how many Shift captures have been attempted.
func (m *Machine) Captures() int { return m.seq }

// lastImage returns the most recently captured region.
func (m *Machine) lastImage() (Image, bool) {
	if m.image == nil {
		return Image{}, false
	}
	return *m.image, true
}

// NoteMotion records pointer movement at p. While waiting for the click
// that follows a capture, movement far enough from the captured box's
// corner re-captures the same region under the same name.
func (m *Machine) NoteMotion(p image.Point) {
	if m.pending != nil {
		m.pending.Moved = true
	}
	if !m.snapping || m.image == nil {
		return
	}
	d := p.Sub(m.image.Box.Min)
	if floorMod(d.X, m.opts.SnapModulus) > m.opts.SnapThreshold ||
		floorMod(d.Y, m.opts.SnapModulus) > m.opts.SnapThreshold {
		m.snap(*m.image, true)
	}
}

// Complete finishes the gesture armed by key, released at p. Motion commands
// appended since arming are discarded from log. A release that does not
// match the pending gesture is a no-op.
func (m *Machine) Complete(key string, p image.Point, log *emitter.Log) Outcome {
	pend := m.pending
	if pend == nil || pend.Key != key {
		return NotArmed
	}
	m.pending = nil

	if !pend.Moved {
		log.Append(emitter.PointMarker(p))
		return Marked
	}

	if n := log.TruncateTo(pend.Mark); n > 0 {
		m.logger.Debug("discarded drag commands", slog.Int("count", n))
	}
	box := image.Rectangle{Min: pend.Anchor, Max: p}.Canon()

	switch pend.Kind {
	case Shift:
		m.seq++
		img := Image{
			Seq:      m.seq,
			FileName: fmt.Sprintf("%d.png", m.seq),
			Box:      box,
			Center:   image.Pt((box.Min.X+box.Max.X)/2, (box.Min.Y+box.Max.Y)/2),
		}
		m.image = &img
		m.followUp = true
		m.snapping = true
		m.held = Held{}
		m.snap(img, false)
		log.Append(emitter.ImageWaitMarker(img.FileName))
		return Captured
	case Ctrl:
		log.Append(emitter.RegionBox(box))
		log.Append(emitter.Highlight(m.opts.HighlightSeconds, m.opts.HighlightColor))
		return Highlighted
	}
	return NotArmed
}

// FollowUp reports whether the next click is an offset click.
func (m *Machine) FollowUp() bool { return m.followUp }

// Held is a button press that offset-click mode consumed without emitting.
type Held struct {
	Button int
	At     image.Point
	Time   int64
}

// EndFollowUp leaves offset-click mode and stops hover re-snapshots. If a
// consumed press has not been released yet it is returned so the caller
// can emit it as an ordinary press.
func (m *Machine) EndFollowUp() (Held, bool) {
	held, ok := m.held, m.held.Button != 0
	m.followUp = false
	m.snapping = false
	m.held = Held{}
	return held, ok
}

// PressButton offers a button press at p to offset-click mode. The first
// press of button 1 or 3 is consumed and its release becomes the offset
// click. Any other press is not consumed and leaves the mode unchanged;
// the caller decides whether to end it.
func (m *Machine) PressButton(button int, p image.Point, t int64) bool {
	if !m.followUp || m.held.Button != 0 || (button != 1 && button != 3) {
		return false
	}
	m.held = Held{Button: button, At: p, Time: t}
	m.snapping = false
	return true
}

// ClickPending reports whether releasing button completes an offset click.
func (m *Machine) ClickPending(button int) bool {
	return m.followUp && m.held.Button != 0 && m.held.Button == button && m.image != nil
}

// OffsetClick appends the click for a release of button at p relative to
// the center of the last captured image and ends offset-click mode.
func (m *Machine) OffsetClick(button int, p image.Point, log *emitter.Log) bool {
	if !m.ClickPending(button) {
		return false
	}
	img := *m.image
	log.Append(emitter.Hover(p))
	log.Append(emitter.PatternClick(img.FileName, m.opts.Similarity, p.Sub(img.Center), button == 3))
	m.EndFollowUp()
	return true
}

func (m *Machine) snap(img Image, hover bool) {
	if m.opts.Snapper == nil {
		return
	}
	m.opts.Snapper.Snap(img.Box, img.FileName, func(s Shot) {
		s.Seq = img.Seq
		s.Hover = hover
		if s.Err != nil {
			m.logger.Error("capture failed",
				slog.Int("seq", img.Seq),
				slog.String("file", img.FileName),
				slog.String("box", img.Box.String()),
				slog.Any("error", s.Err))
		}
		if m.opts.OnShot != nil {
			m.opts.OnShot(s)
		}
	})
}

// floorMod returns a mod n in [0, n).
func floorMod(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}
