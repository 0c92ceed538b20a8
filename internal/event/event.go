// Package event defines the raw input events consumed by the converter.
//
// Events arrive in non-decreasing timestamp order from an external recorder.
// The package does not acquire events itself; it only describes them and
// the interfaces through which they are delivered.
package event

import (
	"context"
	"fmt"
)

// Kind identifies which variant an Event is.
type Kind int

const (
	KindMotion Kind = iota + 1
	KindButtonPress
	KindButtonRelease
	KindKeyPress
	KindKeyRelease
)

// String returns the name used by the raw event log.
func (k Kind) String() string {
	switch k {
	case KindMotion:
		return "motion"
	case KindButtonPress:
		return "button_press"
	case KindButtonRelease:
		return "button_release"
	case KindKeyPress:
		return "key_press"
	case KindKeyRelease:
		return "key_release"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "motion":
		return KindMotion, nil
	case "button_press":
		return KindButtonPress, nil
	case "button_release":
		return KindButtonRelease, nil
	case "key_press":
		return KindKeyPress, nil
	case "key_release":
		return KindKeyRelease, nil
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case KindMotion, KindButtonPress, KindButtonRelease, KindKeyPress, KindKeyRelease:
		return []byte(k.String()), nil
	}
	return nil, fmt.Errorf("invalid event kind %d", int(k))
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// IsKey reports whether the kind carries a key identifier.
func (k Kind) IsKey() bool { return k == KindKeyPress || k == KindKeyRelease }

// IsButton reports whether the kind carries a button number.
func (k Kind) IsButton() bool { return k == KindButtonPress || k == KindButtonRelease }

// IsPress reports whether the kind is a press of a key or button.
func (k Kind) IsPress() bool { return k == KindKeyPress || k == KindButtonPress }

// Event is a single raw input event. X and Y are screen coordinates and may
// be negative when the pointer overshoots the screen edge. Key is set only
// for key events and Button only for button events.
type Event struct {
	Time   int64  `json:"time"`
	Kind   Kind   `json:"kind"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Key    string `json:"key,omitempty"`
	Button int    `json:"button,omitempty"`
}

// Motion builds a pointer motion event.
func Motion(t int64, x, y int) Event {
	return Event{Time: t, Kind: KindMotion, X: x, Y: y}
}

// ButtonPress builds a mouse button press event.
func ButtonPress(t int64, button, x, y int) Event {
	return Event{Time: t, Kind: KindButtonPress, X: x, Y: y, Button: button}
}

// ButtonRelease builds a mouse button release event.
func ButtonRelease(t int64, button, x, y int) Event {
	return Event{Time: t, Kind: KindButtonRelease, X: x, Y: y, Button: button}
}

// KeyPress builds a key press event.
func KeyPress(t int64, key string, x, y int) Event {
	return Event{Time: t, Kind: KindKeyPress, X: x, Y: y, Key: key}
}

// KeyRelease builds a key release event.
func KeyRelease(t int64, key string, x, y int) Event {
	return Event{Time: t, Kind: KindKeyRelease, X: x, Y: y, Key: key}
}

// SameKey reports whether e and other are events for the same key.
func (e Event) SameKey(other Event) bool {
	return e.Kind.IsKey() && other.Kind.IsKey() && e.Key == other.Key
}

func (e Event) String() string {
	switch {
	case e.Kind.IsKey():
		return fmt.Sprintf("%d %s %s (%d,%d)", e.Time, e.Kind, e.Key, e.X, e.Y)
	case e.Kind.IsButton():
		return fmt.Sprintf("%d %s %d (%d,%d)", e.Time, e.Kind, e.Button, e.X, e.Y)
	default:
		return fmt.Sprintf("%d %s (%d,%d)", e.Time, e.Kind, e.X, e.Y)
	}
}

// Handler consumes events one at a time, in order.
type Handler interface {
	Handle(Event)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(Event)

// Handle calls f(ev).
func (f HandlerFunc) Handle(ev Event) { f(ev) }

// Source emits events to a single consumer. Stream returns when the source
// is exhausted, emit returns an error, or ctx is cancelled.
type Source interface {
	Stream(ctx context.Context, emit func(Event) error) error
}

// SourceFunc adapts a function literal to the Source interface.
type SourceFunc func(ctx context.Context, emit func(Event) error) error

// Stream calls the underlying function.
func (f SourceFunc) Stream(ctx context.Context, emit func(Event) error) error {
	return f(ctx, emit)
}

// Slice returns a Source that emits the given events in order.
func Slice(events []Event) Source {
	return SourceFunc(func(ctx context.Context, emit func(Event) error) error {
		for _, ev := range events {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := emit(ev); err != nil {
				return err
			}
		}
		return nil
	})
}
