package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestKindRoundTrip(t *testing.T) {
	for _, k := range []Kind{KindMotion, KindButtonPress, KindButtonRelease, KindKeyPress, KindKeyRelease} {
		got, err := ParseKind(k.String())
		if err != nil {
			t.Fatalf("ParseKind(%q): %v", k.String(), err)
		}
		if got != k {
			t.Errorf("expected %v, got %v", k, got)
		}
	}
	if _, err := ParseKind("scroll"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestKindPredicates(t *testing.T) {
	if !KindKeyPress.IsKey() || !KindKeyRelease.IsKey() || KindMotion.IsKey() {
		t.Error("IsKey mismatch")
	}
	if !KindButtonPress.IsButton() || KindKeyPress.IsButton() {
		t.Error("IsButton mismatch")
	}
	if !KindButtonPress.IsPress() || KindButtonRelease.IsPress() {
		t.Error("IsPress mismatch")
	}
}

func TestSameKey(t *testing.T) {
	a := KeyPress(0, "Shift_L", 0, 0)
	b := KeyRelease(5, "Shift_L", 1, 1)
	c := KeyRelease(5, "a", 1, 1)
	if !a.SameKey(b) {
		t.Error("expected same key")
	}
	if a.SameKey(c) {
		t.Error("expected different keys")
	}
	if Motion(0, 0, 0).SameKey(Motion(0, 0, 0)) {
		t.Error("motion events never share a key")
	}
}

func TestSliceSource(t *testing.T) {
	events := []Event{Motion(1, 0, 0), Motion(2, 1, 1), KeyPress(3, "a", 1, 1)}

	var got []Event
	err := Slice(events).Stream(context.Background(), func(ev Event) error {
		got = append(got, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("expected %d events, got %d", len(events), len(got))
	}

	stop := errors.New("stop")
	n := 0
	err = Slice(events).Stream(context.Background(), func(Event) error {
		n++
		return stop
	})
	if !errors.Is(err, stop) || n != 1 {
		t.Errorf("expected stop after first event, got n=%d err=%v", n, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Slice(events).Stream(ctx, func(Event) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestKindJSON(t *testing.T) {
	ev := KeyRelease(12, "a", 3, 4)
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	const want = `{"time":12,"kind":"key_release","x":3,"y":4,"key":"a"}`
	if string(b) != want {
		t.Errorf("Marshal = %s, want %s", b, want)
	}

	var back Event
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back != ev {
		t.Errorf("round trip = %+v, want %+v", back, ev)
	}

	if err := json.Unmarshal([]byte(`{"kind":"scroll"}`), &back); err == nil {
		t.Error("expected error for unknown kind")
	}
	if _, err := json.Marshal(Event{}); err == nil {
		t.Error("expected error for zero kind")
	}
}
