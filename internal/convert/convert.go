// Package convert drives a single conversion session: it feeds raw events
// through the modifier tracker, key translator, motion simplifier and
// gesture machine and collects the resulting script lines.
package convert

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"scriptrec/internal/emitter"
	"scriptrec/internal/event"
	"scriptrec/internal/keymap"
	"scriptrec/internal/modifier"
	"scriptrec/internal/motion"
	"scriptrec/internal/region"
)

// Options configures a Converter. Zero values select the defaults.
type Options struct {
	Precision        float64
	StepSize         int
	Layout           string
	Snapper          region.Snapper
	Logger           *slog.Logger
	HighlightSeconds float64
	HighlightColor   string
	Similarity       float64
	SnapModulus      int
	SnapThreshold    int
	// KeepFraming disables removal of the Enter that started the recorder
	// and the Escape that stopped it.
	KeepFraming bool
}

// Diagnostic describes an event that could not be converted.
type Diagnostic struct {
	Time   int64       `json:"time"`
	Event  event.Event `json:"event"`
	Reason string      `json:"reason"`
}

// Result is the outcome of a conversion session.
type Result struct {
	Lines       []string
	Samples     []emitter.Sample
	Diagnostics []Diagnostic
	Shots       []region.Shot
	Events      int
	Captures    int
}

// Failures returns the shots whose capture or persistence failed.
func (r *Result) Failures() []region.Shot {
	var out []region.Shot
	for _, s := range r.Shots {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

// Converter is one conversion session. It is not safe for concurrent use;
// events must be handled in order from a single goroutine.
type Converter struct {
	opts   Options
	logger *slog.Logger

	keys     *keymap.Translator
	mods     modifier.State
	motion   *motion.Simplifier
	log      *emitter.Log
	gestures *region.Machine

	started     bool
	lastCommand int64
	prev        event.Event
	prevKey     event.Event
	events      int
	diagnostics []Diagnostic

	shotsMu sync.Mutex
	shots   []region.Shot
}

// flusher is implemented by snappers that complete captures in the
// background.
type flusher interface {
	Flush()
}

// New returns a Converter. It fails only for an unknown keyboard layout.
func New(opts Options) (*Converter, error) {
	if opts.Precision <= 0 {
		opts.Precision = motion.DefaultPrecision
	}
	if opts.StepSize <= 0 {
		opts.StepSize = motion.DefaultStepSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	keys, err := keymap.NewTranslator(opts.Layout)
	if err != nil {
		return nil, fmt.Errorf("convert: %w", err)
	}

	c := &Converter{
		opts:   opts,
		logger: logger.With(slog.String("component", "convert")),
		keys:   keys,
		motion: motion.New(opts.Precision, opts.StepSize),
		log:    emitter.New(),
	}
	c.gestures = region.NewMachine(region.Options{
		Snapper:          opts.Snapper,
		Logger:           logger,
		HighlightSeconds: opts.HighlightSeconds,
		HighlightColor:   opts.HighlightColor,
		Similarity:       opts.Similarity,
		SnapModulus:      opts.SnapModulus,
		SnapThreshold:    opts.SnapThreshold,
		OnShot:           c.recordShot,
	})
	return c, nil
}

// Run converts every event produced by src and returns the result. When src
// fails or ctx is cancelled the partial result is returned with the error.
func (c *Converter) Run(ctx context.Context, src event.Source) (*Result, error) {
	err := src.Stream(ctx, func(ev event.Event) error {
		c.Handle(ev)
		return nil
	})
	res := c.Finish()
	if err != nil {
		return res, fmt.Errorf("convert: %w", err)
	}
	return res, nil
}

// Handle converts one event.
func (c *Converter) Handle(ev event.Event) {
	if !c.started {
		c.started = true
		c.lastCommand = ev.Time
	} else if ev.Time < c.prev.Time {
		c.diagnose(ev, fmt.Sprintf("timestamp went backwards from %d", c.prev.Time))
	}
	c.events++

	c.log.Record(emitter.Sample{Time: ev.Time, X: ev.X, Y: ev.Y})
	if ev.Kind != event.KindMotion {
		c.flushMotion()
	}

	switch ev.Kind {
	case event.KindMotion:
		c.onMotion(ev)
	case event.KindButtonPress:
		c.onButtonPress(ev)
	case event.KindButtonRelease:
		c.onButtonRelease(ev)
	case event.KindKeyPress:
		c.onKeyPress(ev)
	case event.KindKeyRelease:
		c.onKeyRelease(ev)
	default:
		c.diagnose(ev, "unknown event kind")
	}

	c.prev = ev
	if ev.Kind.IsKey() {
		c.prevKey = ev
	}
}

// Finish flushes buffered motion and returns the script produced so far.
// It may be called more than once.
func (c *Converter) Finish() *Result {
	c.flushMotion()
	if f, ok := c.opts.Snapper.(flusher); ok {
		f.Flush()
	}

	lines := c.log.Lines()
	if !c.opts.KeepFraming {
		lines = Trim(lines)
	}

	c.shotsMu.Lock()
	shots := append([]region.Shot(nil), c.shots...)
	c.shotsMu.Unlock()

	return &Result{
		Lines:       lines,
		Samples:     c.log.Samples(),
		Diagnostics: append([]Diagnostic(nil), c.diagnostics...),
		Shots:       shots,
		Events:      c.events,
		Captures:    c.gestures.Captures(),
	}
}

// Tune changes the motion tolerances used from the next flush on.
func (c *Converter) Tune(precision float64, stepSize int) {
	c.motion.Tune(precision, stepSize)
}

func (c *Converter) flushMotion() {
	for _, w := range c.motion.Flush() {
		c.log.Append(emitter.MoveDelay(w.Time - c.lastCommand))
		c.log.Append(emitter.MouseMove(image.Pt(w.X, w.Y)))
		c.lastCommand = w.Time
	}
}

func (c *Converter) onMotion(ev event.Event) {
	c.motion.Add(motion.Sample{Time: ev.Time, X: ev.X, Y: ev.Y})
	c.gestures.NoteMotion(image.Pt(ev.X, ev.Y))
}

func (c *Converter) onButtonPress(ev event.Event) {
	name, ok := emitter.ButtonName(ev.Button)
	if !ok {
		c.diagnose(ev, fmt.Sprintf("unknown button %d", ev.Button))
		return
	}
	c.abortGesture("button pressed")
	c.mods.SetButton(ev.Button, true)
	p := image.Pt(ev.X, ev.Y)

	if c.gestures.FollowUp() {
		if c.gestures.PressButton(ev.Button, p, ev.Time) {
			c.lastCommand = ev.Time
			return
		}
		c.endFollowUp()
	}
	if emitter.IsWheel(ev.Button) {
		return
	}
	c.press(name, p, ev.Time)
}

func (c *Converter) onButtonRelease(ev event.Event) {
	name, ok := emitter.ButtonName(ev.Button)
	if !ok {
		c.diagnose(ev, fmt.Sprintf("unknown button %d", ev.Button))
		return
	}
	c.abortGesture("button released")
	c.mods.SetButton(ev.Button, false)
	p := image.Pt(ev.X, ev.Y)

	if c.gestures.ClickPending(ev.Button) {
		c.log.Append(emitter.Wait(ev.Time - c.lastCommand))
		c.gestures.OffsetClick(ev.Button, p, c.log)
		c.lastCommand = ev.Time
		return
	}
	c.endFollowUp()

	c.log.Append(emitter.Wait(ev.Time - c.lastCommand))
	if emitter.IsWheel(ev.Button) {
		c.log.Append(emitter.Wheel(name, 1))
	} else {
		c.log.Append(emitter.Hover(p))
		c.log.Append(emitter.MouseUp(name))
	}
	c.lastCommand = ev.Time
}

// press emits an ordinary button press at p.
func (c *Converter) press(name string, p image.Point, t int64) {
	c.log.Append(emitter.Hover(p))
	c.log.Append(emitter.Wait(t - c.lastCommand))
	c.log.Append(emitter.MouseDown(name))
	c.lastCommand = t
}

// endFollowUp leaves offset-click mode. A press it had consumed is
// emitted late so that its eventual release has a matching mouseDown.
func (c *Converter) endFollowUp() {
	held, ok := c.gestures.EndFollowUp()
	if !ok {
		return
	}
	name, _ := emitter.ButtonName(held.Button)
	c.press(name, held.At, max(held.Time, c.lastCommand))
}

func (c *Converter) onKeyPress(ev event.Event) {
	c.mods.Apply(ev.Key, true)

	if pend, armed := c.gestures.Armed(); armed {
		if ev.Key == pend.Key && c.prevKey.Kind == event.KindKeyPress && c.prevKey.Key == ev.Key {
			// Auto-repeat of the arming key.
			return
		}
		c.abortGesture("key " + ev.Key + " pressed")
	}

	kind, ok := region.GestureFor(ev.Key)
	if !ok {
		return
	}
	if (kind == region.Shift && !c.mods.Control()) || (kind == region.Ctrl && !c.mods.Shift()) {
		c.gestures.Arm(kind, ev.Key, image.Pt(ev.X, ev.Y), ev.Time, c.log.Checkpoint())
	}
}

func (c *Converter) onKeyRelease(ev event.Event) {
	c.endFollowUp()
	isModifier := c.mods.Apply(ev.Key, false)

	if pend, armed := c.gestures.Armed(); armed {
		if ev.Key != pend.Key || c.prevKey.Kind != event.KindKeyPress || c.prevKey.Key != ev.Key {
			c.abortGesture("key " + ev.Key + " released")
		} else {
			out := c.gestures.Complete(ev.Key, image.Pt(ev.X, ev.Y), c.log)
			c.logger.Debug("gesture completed",
				slog.String("kind", pend.Kind.String()),
				slog.String("outcome", out.String()),
				slog.Int64("time", ev.Time))
			c.lastCommand = ev.Time
		}
	}
	if isModifier {
		return
	}

	tok, err := c.keys.Translate(ev.Key, c.mods)
	if err != nil {
		c.diagnose(ev, err.Error())
		return
	}

	var delay int64
	if c.prev.Kind == event.KindKeyPress && c.prev.Key == ev.Key {
		delay = ev.Time - c.prev.Time
	}
	c.log.Append(emitter.TypeDelay(delay))
	if tok.Named() {
		c.log.Append(emitter.TypeKey(tok.Name, tok.Prefix))
	} else {
		c.log.Append(emitter.TypeText(tok.Text, tok.Prefix))
	}
	c.lastCommand = ev.Time
}

func (c *Converter) abortGesture(reason string) {
	if _, armed := c.gestures.Armed(); armed {
		c.logger.Debug("gesture cancelled", slog.String("reason", reason))
		c.gestures.Abort()
	}
}

func (c *Converter) diagnose(ev event.Event, reason string) {
	c.diagnostics = append(c.diagnostics, Diagnostic{Time: ev.Time, Event: ev, Reason: reason})
	c.logger.Warn("event skipped",
		slog.Int64("time", ev.Time),
		slog.String("kind", ev.Kind.String()),
		slog.String("reason", reason))
}

func (c *Converter) recordShot(s region.Shot) {
	c.shotsMu.Lock()
	c.shots = append(c.shots, s)
	c.shotsMu.Unlock()
}
