// Package eventlog reads raw event logs written by the input recorder.
//
// Two encodings are accepted. The text form has one tab separated event
// per line:
//
//	<t>	Motion	<x>	<y>
//	<t>	Button	Press|Release	<n>	<x>	<y>
//	<t>	Key	Press|Release	<keysym>	<x>	<y>
//	<t>	KeyCode	Press|Release	<code>	<x>	<y>
//
// KeyCode lines are emitted by the recorder when a key code has no keysym;
// they are skipped and reported. The JSON form is either an array of text
// lines or an array of event objects, and is checked against an embedded
// JSON Schema before decoding.
package eventlog

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"scriptrec/internal/event"
)

var (
	// ErrMalformed is matched by every parse error.
	ErrMalformed = errors.New("malformed event log")

	// ErrUnresolvedKey is returned by ParseLine for KeyCode lines.
	ErrUnresolvedKey = errors.New("key code without keysym")
)

// LineError locates a parse error.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v: %q", e.Line, e.Err, e.Text)
}

func (e *LineError) Unwrap() error { return e.Err }

// Is makes every LineError match ErrMalformed.
func (e *LineError) Is(target error) bool { return target == ErrMalformed }

// Skip records an input line that was deliberately not converted.
type Skip struct {
	Line   int
	Text   string
	Reason string
}

// Format selects an encoding.
type Format int

const (
	FormatAuto Format = iota
	FormatText
	FormatJSON
)

// FormatForPath picks the format from a file extension.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".txt", ".tsv", ".log":
		return FormatText
	}
	return FormatAuto
}

// Log is a decoded event log.
type Log struct {
	Events  []event.Event
	Skipped []Skip
}

// Source returns a Source replaying the log's events.
func (l *Log) Source() event.Source { return event.Slice(l.Events) }

// Counts returns the number of events of each kind.
func (l *Log) Counts() map[event.Kind]int {
	m := make(map[event.Kind]int)
	for _, ev := range l.Events {
		m[ev.Kind]++
	}
	return m
}

// Span returns the first and last timestamps, or zeros for an empty log.
func (l *Log) Span() (first, last int64) {
	if len(l.Events) == 0 {
		return 0, 0
	}
	return l.Events[0].Time, l.Events[len(l.Events)-1].Time
}

// ReadFile reads the log at path.
func ReadFile(path string) (*Log, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}
	log, err := Decode(data, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return log, nil
}

// Read decodes all of r.
func Read(r io.Reader, format Format) (*Log, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}
	return Decode(data, format)
}

// Decode parses data in the given format. FormatAuto treats input whose
// first non-space byte is '[' as JSON.
func Decode(data []byte, format Format) (*Log, error) {
	if format == FormatAuto {
		format = FormatText
		if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
			format = FormatJSON
		}
	}
	switch format {
	case FormatJSON:
		return decodeJSON(data)
	case FormatText:
		return decodeText(data)
	}
	return nil, fmt.Errorf("unknown event log format %d", format)
}

func decodeText(data []byte) (*Log, error) {
	log := &Log{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	n := 0
	for sc.Scan() {
		n++
		if err := log.addLine(n, sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan event log: %w", err)
	}
	return log, nil
}

func (l *Log) addLine(n int, text string) error {
	line := strings.TrimRight(text, "\r\n")
	if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	ev, err := ParseLine(line)
	if errors.Is(err, ErrUnresolvedKey) {
		l.Skipped = append(l.Skipped, Skip{Line: n, Text: line, Reason: err.Error()})
		return nil
	}
	if err != nil {
		return &LineError{Line: n, Text: line, Err: err}
	}
	l.Events = append(l.Events, ev)
	return nil
}

// ParseLine parses one text-form event.
func ParseLine(line string) (event.Event, error) {
	f := strings.Split(line, "\t")
	if len(f) < 2 {
		return event.Event{}, errors.New("missing fields")
	}
	t, err := strconv.ParseInt(strings.TrimSpace(f[0]), 10, 64)
	if err != nil {
		return event.Event{}, fmt.Errorf("bad timestamp: %w", err)
	}

	switch f[1] {
	case "Motion":
		if len(f) != 4 {
			return event.Event{}, fmt.Errorf("motion wants 4 fields, got %d", len(f))
		}
		x, y, err := coords(f[2], f[3])
		if err != nil {
			return event.Event{}, err
		}
		return event.Motion(t, x, y), nil

	case "Button", "Key", "KeyCode":
		if len(f) != 6 {
			return event.Event{}, fmt.Errorf("%s wants 6 fields, got %d", strings.ToLower(f[1]), len(f))
		}
		press, err := direction(f[2])
		if err != nil {
			return event.Event{}, err
		}
		x, y, err := coords(f[4], f[5])
		if err != nil {
			return event.Event{}, err
		}
		switch f[1] {
		case "Button":
			n, err := strconv.Atoi(f[3])
			if err != nil {
				return event.Event{}, fmt.Errorf("bad button: %w", err)
			}
			if press {
				return event.ButtonPress(t, n, x, y), nil
			}
			return event.ButtonRelease(t, n, x, y), nil
		case "Key":
			if f[3] == "" {
				return event.Event{}, errors.New("empty keysym")
			}
			if press {
				return event.KeyPress(t, f[3], x, y), nil
			}
			return event.KeyRelease(t, f[3], x, y), nil
		default:
			return event.Event{}, fmt.Errorf("%w: code %s", ErrUnresolvedKey, f[3])
		}
	}
	return event.Event{}, fmt.Errorf("unknown event type %q", f[1])
}

func direction(s string) (bool, error) {
	switch s {
	case "Press":
		return true, nil
	case "Release":
		return false, nil
	}
	return false, fmt.Errorf("want Press or Release, got %q", s)
}

func coords(xs, ys string) (int, int, error) {
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return 0, 0, fmt.Errorf("bad x: %w", err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return 0, 0, fmt.Errorf("bad y: %w", err)
	}
	return x, y, nil
}

// FormatLine renders ev in the text form.
func FormatLine(ev event.Event) string {
	switch ev.Kind {
	case event.KindMotion:
		return fmt.Sprintf("%d\tMotion\t%d\t%d", ev.Time, ev.X, ev.Y)
	case event.KindButtonPress, event.KindButtonRelease:
		return fmt.Sprintf("%d\tButton\t%s\t%d\t%d\t%d", ev.Time, pressName(ev.Kind), ev.Button, ev.X, ev.Y)
	default:
		return fmt.Sprintf("%d\tKey\t%s\t%s\t%d\t%d", ev.Time, pressName(ev.Kind), ev.Key, ev.X, ev.Y)
	}
}

func pressName(k event.Kind) string {
	if k.IsPress() {
		return "Press"
	}
	return "Release"
}

// WriteText writes events in the text form.
func WriteText(w io.Writer, events []event.Event) error {
	bw := bufio.NewWriter(w)
	for _, ev := range events {
		if _, err := fmt.Fprintln(bw, FormatLine(ev)); err != nil {
			return err
		}
	}
	return bw.Flush()
}
