package convert

import (
	"context"
	"image"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scriptrec/internal/event"
	"scriptrec/internal/region"
)

type recordingCapturer struct {
	mu    sync.Mutex
	rects []image.Rectangle
	names []string
}

func (r *recordingCapturer) Capture(rect image.Rectangle) (image.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rects = append(r.rects, rect)
	return image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy())), nil
}

func (r *recordingCapturer) Persist(_ image.Image, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func convert(t *testing.T, cap region.Capturer, events ...event.Event) *Result {
	t.Helper()
	opts := Options{Logger: quietLogger()}
	if cap != nil {
		opts.Snapper = region.Direct{Capturer: cap}
	}
	c, err := New(opts)
	require.NoError(t, err)
	res, err := c.Run(context.Background(), event.Slice(events))
	require.NoError(t, err)
	return res
}

func TestShiftDragCapturesRegion(t *testing.T) {
	rc := &recordingCapturer{}
	res := convert(t, rc,
		event.KeyPress(0, "Shift_L", 0, 0),
		event.Motion(10, 0, 0),
		event.Motion(20, 40, 0),
		event.KeyRelease(30, "Shift_L", 40, 0),
	)

	assert.Equal(t, []string{`# wait("1.png")`}, res.Lines)
	assert.Equal(t, 1, res.Captures)
	require.Len(t, rc.rects, 1)
	assert.Equal(t, image.Rectangle{Min: image.Pt(0, 0), Max: image.Pt(40, 0)}, rc.rects[0])
	assert.Equal(t, []string{"1.png"}, rc.names)
	require.Len(t, res.Shots, 1)
	assert.NoError(t, res.Shots[0].Err)
	assert.Empty(t, res.Failures())
}

func TestShiftDragThenOffsetClick(t *testing.T) {
	res := convert(t, &recordingCapturer{},
		event.KeyPress(0, "Shift_L", 10, 10),
		event.Motion(10, 20, 20),
		event.Motion(20, 50, 40),
		event.KeyRelease(30, "Shift_L", 50, 40),
		event.Motion(40, 30, 20),
		event.ButtonPress(50, 1, 30, 20),
		event.ButtonRelease(60, 1, 30, 20),
	)

	assert.Equal(t, []string{
		`# wait("1.png")`,
		"Settings.MoveMouseDelay = 0.010000",
		"mouseMove(Location(30,20))",
		"wait(0.010000)",
		"hover(Location(30, 20))",
		`click(Pattern("1.png").similar(0.90).targetOffset(0,-5))`,
	}, res.Lines)
}

func TestOffsetClickInterruptedKeepsPressesPaired(t *testing.T) {
	res := convert(t, &recordingCapturer{},
		event.KeyPress(0, "Shift_L", 10, 10),
		event.Motion(10, 50, 40),
		event.KeyRelease(30, "Shift_L", 50, 40),
		event.ButtonPress(50, 1, 30, 20),
		event.ButtonRelease(70, 3, 30, 20),
		event.ButtonRelease(90, 1, 30, 20),
	)

	assert.Equal(t, []string{
		`# wait("1.png")`,
		"hover(Location(30, 20))",
		"wait(0.000000)",
		"mouseDown(Button.LEFT)",
		"wait(0.020000)",
		"hover(Location(30, 20))",
		"mouseUp(Button.RIGHT)",
		"wait(0.020000)",
		"hover(Location(30, 20))",
		"mouseUp(Button.LEFT)",
	}, res.Lines)
}

func TestCtrlDragHighlightsRegion(t *testing.T) {
	res := convert(t, nil,
		event.ButtonPress(0, 1, 5, 5),
		event.ButtonRelease(20, 1, 5, 5),
		event.KeyPress(100, "Control_L", 10, 10),
		event.Motion(110, 20, 15),
		event.Motion(120, 30, 20),
		event.Motion(130, 40, 30),
		event.Motion(140, 50, 40),
		event.KeyRelease(150, "Control_L", 50, 40),
	)

	prefix := []string{
		"hover(Location(5, 5))",
		"wait(0.000000)",
		"mouseDown(Button.LEFT)",
		"wait(0.020000)",
		"hover(Location(5, 5))",
		"mouseUp(Button.LEFT)",
	}
	assert.Equal(t, append(prefix,
		"reg = Region(10, 10, 40, 30)",
		`reg.highlight(2, "#FF0000")`,
	), res.Lines)
	assert.Len(t, res.Lines, len(prefix)+2)
	assert.Equal(t, 0, res.Captures)
}

func TestLoneModifierMarksPoint(t *testing.T) {
	res := convert(t, nil,
		event.KeyPress(0, "Control_L", 7, 8),
		event.KeyRelease(40, "Control_L", 7, 8),
	)
	assert.Equal(t, []string{"# mark_point(Location(7, 8))"}, res.Lines)
}

func TestShiftedCharacter(t *testing.T) {
	res := convert(t, nil,
		event.KeyPress(0, "Shift_L", 0, 0),
		event.KeyPress(10, "1", 0, 0),
		event.KeyRelease(20, "1", 0, 0),
		event.KeyRelease(30, "Shift_L", 0, 0),
	)
	assert.Equal(t, []string{"Settings.TypeDelay = 0.01", `type("!")`}, res.Lines)
}

func TestControlCombo(t *testing.T) {
	res := convert(t, nil,
		event.KeyPress(0, "Control_L", 0, 0),
		event.KeyPress(100, "c", 0, 0),
		event.KeyRelease(180, "c", 0, 0),
		event.KeyRelease(200, "Control_L", 0, 0),
	)
	assert.Equal(t, []string{"Settings.TypeDelay = 0.08", `type("c", Key.CTRL)`}, res.Lines)
}

func TestOverlappingKeysHaveNoTypeDelay(t *testing.T) {
	res := convert(t, nil,
		event.KeyPress(0, "a", 0, 0),
		event.KeyPress(10, "b", 0, 0),
		event.KeyRelease(30, "a", 0, 0),
		event.KeyRelease(40, "b", 0, 0),
	)
	assert.Equal(t, []string{
		"Settings.TypeDelay = 0",
		`type("a")`,
		"Settings.TypeDelay = 0",
		`type("b")`,
	}, res.Lines)
}

func TestOtherModifierCancelsGesture(t *testing.T) {
	rc := &recordingCapturer{}
	res := convert(t, rc,
		event.KeyPress(0, "Shift_L", 0, 0),
		event.KeyPress(5, "Alt_L", 0, 0),
		event.Motion(10, 5, 5),
		event.KeyRelease(15, "Alt_L", 5, 5),
		event.KeyRelease(20, "Shift_L", 5, 5),
	)
	assert.Equal(t, []string{
		"Settings.MoveMouseDelay = 0.010000",
		"mouseMove(Location(5,5))",
	}, res.Lines)
	assert.Empty(t, rc.rects)
}

func TestWheel(t *testing.T) {
	res := convert(t, nil,
		event.ButtonPress(0, 4, 1, 1),
		event.ButtonRelease(30, 4, 1, 1),
		event.ButtonPress(50, 5, 1, 1),
		event.ButtonRelease(60, 5, 1, 1),
	)
	assert.Equal(t, []string{
		"wait(0.030000)",
		"wheel(Button.WHEEL_UP, 1)",
		"wait(0.030000)",
		"wheel(Button.WHEEL_DOWN, 1)",
	}, res.Lines)
}

func TestUnknownInputIsDiagnosed(t *testing.T) {
	res := convert(t, nil,
		event.ButtonPress(0, 9, 1, 1),
		event.KeyPress(10, "XF86AudioPlay", 1, 1),
		event.KeyRelease(20, "XF86AudioPlay", 1, 1),
	)
	assert.Empty(t, res.Lines)
	require.Len(t, res.Diagnostics, 2)
	assert.Equal(t, int64(0), res.Diagnostics[0].Time)
	assert.Contains(t, res.Diagnostics[0].Reason, "unknown button 9")
	assert.Equal(t, int64(20), res.Diagnostics[1].Time)
	assert.Contains(t, res.Diagnostics[1].Reason, "XF86AudioPlay")
	assert.Equal(t, 3, res.Events)
	assert.Len(t, res.Samples, 3)
}

func TestFramingKeysAreTrimmed(t *testing.T) {
	events := []event.Event{
		event.KeyPress(0, "Return", 0, 0),
		event.KeyRelease(50, "Return", 0, 0),
		event.KeyPress(100, "x", 0, 0),
		event.KeyRelease(120, "x", 0, 0),
		event.KeyPress(200, "Escape", 0, 0),
		event.KeyRelease(210, "Escape", 0, 0),
		event.KeyPress(300, "Escape", 0, 0),
		event.KeyRelease(310, "Escape", 0, 0),
	}
	res := convert(t, nil, events...)
	assert.Equal(t, []string{"Settings.TypeDelay = 0.02", `type("x")`}, res.Lines)

	c, err := New(Options{Logger: quietLogger(), KeepFraming: true})
	require.NoError(t, err)
	for _, ev := range events {
		c.Handle(ev)
	}
	assert.Len(t, c.Finish().Lines, 8)
}

func TestTrim(t *testing.T) {
	assert.Empty(t, Trim(nil))
	assert.Equal(t, []string{"type(Key.ENTER)"}, Trim([]string{"type(Key.ENTER)"}))
	assert.Equal(t,
		[]string{"wait(1.000000)", "Settings.TypeDelay = 0", "type(Key.ENTER)"},
		Trim([]string{"wait(1.000000)", "Settings.TypeDelay = 0", "type(Key.ENTER)"}),
		"only a leading Enter is removed")
	assert.Empty(t, Trim([]string{"Settings.TypeDelay = 0.1", "type(Key.ESC)"}))
}

func TestFinishIsRepeatable(t *testing.T) {
	c, err := New(Options{Logger: quietLogger()})
	require.NoError(t, err)
	c.Handle(event.Motion(0, 1, 1))
	first := c.Finish()
	second := c.Finish()
	assert.Equal(t, first.Lines, second.Lines)
	assert.Equal(t, []string{"Settings.MoveMouseDelay = 0.000000", "mouseMove(Location(1,1))"}, first.Lines)
}

func TestRunCancelled(t *testing.T) {
	c, err := New(Options{Logger: quietLogger()})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := c.Run(ctx, event.Slice([]event.Event{event.Motion(0, 1, 1)}))
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, 0, res.Events)
}

func TestUnknownLayout(t *testing.T) {
	_, err := New(Options{Layout: "Klingon"})
	assert.Error(t, err)
}

func TestBackwardsTimestampIsDiagnosed(t *testing.T) {
	res := convert(t, nil,
		event.Motion(100, 1, 1),
		event.Motion(50, 2, 2),
	)
	require.Len(t, res.Diagnostics, 1)
	assert.Contains(t, res.Diagnostics[0].Reason, "backwards")
}
