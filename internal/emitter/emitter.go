// Package emitter holds the ordered, append-only log of script commands
// produced by a conversion.
//
// Lines are only ever appended. The single other mutation is TruncateTo,
// which discards a suffix back to a previously taken Checkpoint; gestures use
// it to drop speculative motion commands.
package emitter

import (
	"bufio"
	"io"
)

// Sample is a raw pointer position kept for diagnostics.
type Sample struct {
	Time int64 `json:"time"`
	X    int   `json:"x"`
	Y    int   `json:"y"`
}

// Checkpoint marks a log length that can later be truncated back to.
type Checkpoint struct {
	n int
}

// Len returns the log length recorded by the checkpoint.
func (c Checkpoint) Len() int { return c.n }

// Log is the command log of a single conversion session.
type Log struct {
	lines   []string
	samples []Sample
}

// New returns an empty log.
func New() *Log {
	return &Log{}
}

// Append adds a command line.
func (l *Log) Append(line string) {
	l.lines = append(l.lines, line)
}

// Len returns the number of command lines.
func (l *Log) Len() int { return len(l.lines) }

// Checkpoint records the current length.
func (l *Log) Checkpoint() Checkpoint {
	return Checkpoint{n: len(l.lines)}
}

// TruncateTo discards every line appended after c. It returns the number of
// lines removed. A checkpoint beyond the current length removes nothing.
func (l *Log) TruncateTo(c Checkpoint) int {
	if c.n < 0 || c.n >= len(l.lines) {
		return 0
	}
	removed := len(l.lines) - c.n
	clear(l.lines[c.n:])
	l.lines = l.lines[:c.n]
	return removed
}

// Lines returns a copy of the command lines in order.
func (l *Log) Lines() []string {
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

// Record keeps a raw sample for diagnostics.
func (l *Log) Record(s Sample) {
	l.samples = append(l.samples, s)
}

// Samples returns a copy of the recorded diagnostics samples.
func (l *Log) Samples() []Sample {
	out := make([]Sample, len(l.samples))
	copy(out, l.samples)
	return out
}

// WriteTo writes the log, one command per line.
func (l *Log) WriteTo(w io.Writer) (int64, error) {
	return WriteLines(w, l.lines)
}

// WriteLines writes lines to w, each terminated by a newline.
func WriteLines(w io.Writer, lines []string) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for _, line := range lines {
		m, err := bw.WriteString(line)
		n += int64(m)
		if err != nil {
			return n, err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return n, err
		}
		n++
	}
	return n, bw.Flush()
}
