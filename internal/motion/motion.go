// Package motion reduces runs of pointer motion samples to the few
// waypoints where the path visibly changes direction.
package motion

import "math"

// Default tuning values.
const (
	DefaultPrecision = 6.0
	DefaultStepSize  = 15
)

// Sample is one pointer position at a point in time (milliseconds).
type Sample struct {
	Time int64
	X    int
	Y    int
}

// slope is Δy/Δx between two samples. A vertical segment has no numeric
// slope and is marked with vertical set.
type slope struct {
	value    float64
	vertical bool
}

func slopeBetween(a, b Sample) slope {
	dx := b.X - a.X
	if dx == 0 {
		return slope{vertical: true}
	}
	return slope{value: float64(b.Y-a.Y) / float64(dx)}
}

// changed reports whether moving from prev to cur is a direction change.
// Two numeric slopes must differ by more than precision. When exactly one
// side is vertical the other must be flatter than precision; steep meeting
// vertical is not a corner.
func changed(prev, cur slope, precision float64) bool {
	switch {
	case prev.vertical && cur.vertical:
		return false
	case cur.vertical:
		return math.Abs(prev.value) < precision
	case prev.vertical:
		return math.Abs(cur.value) < precision
	default:
		return math.Abs(cur.value-prev.value) > precision
	}
}

// Corners returns the indices n (n >= 2) at which the slope of the segment
// ending at samples[n] differs from the previous segment's slope.
func Corners(samples []Sample, precision float64) []int {
	if len(samples) < 3 {
		return nil
	}
	var idx []int
	prior := slopeBetween(samples[0], samples[1])
	for n := 2; n < len(samples); n++ {
		s := slopeBetween(samples[n-1], samples[n])
		if changed(prior, s, precision) {
			idx = append(idx, n)
		}
		prior = s
	}
	return idx
}

// Waypoints returns, in order, the indices of the samples to keep: the
// first sample, every corner more than stepSize samples past the previously
// accepted corner, and the last sample. Runs shorter than three samples are
// kept whole. A longer run recorded within a single timestamp collapses to
// its last sample.
func Waypoints(samples []Sample, precision float64, stepSize int) []int {
	n := len(samples)
	if n < 3 {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}

	if samples[0].Time == samples[n-1].Time {
		return []int{n - 1}
	}

	keep := []int{0}
	accepted := math.MinInt / 2
	for _, c := range Corners(samples, precision) {
		if c-accepted > stepSize {
			accepted = c
			if c != keep[len(keep)-1] {
				keep = append(keep, c)
			}
		}
	}
	if keep[len(keep)-1] != n-1 {
		keep = append(keep, n-1)
	}
	return keep
}

// Simplifier buffers motion samples between non-motion events.
type Simplifier struct {
	precision float64
	stepSize  int
	buf       []Sample
}

// New returns a Simplifier with the given tolerance and jitter gap.
func New(precision float64, stepSize int) *Simplifier {
	return &Simplifier{precision: precision, stepSize: stepSize}
}

// Add buffers one sample.
func (s *Simplifier) Add(sample Sample) {
	s.buf = append(s.buf, sample)
}

// Len returns the number of buffered samples.
func (s *Simplifier) Len() int { return len(s.buf) }

// Tune changes precision and step size for subsequent flushes.
func (s *Simplifier) Tune(precision float64, stepSize int) {
	s.precision = precision
	s.stepSize = stepSize
}

// Flush returns the waypoints of the buffered run and clears the buffer.
// An empty buffer yields nil.
func (s *Simplifier) Flush() []Sample {
	if len(s.buf) == 0 {
		return nil
	}
	idx := Waypoints(s.buf, s.precision, s.stepSize)
	out := make([]Sample, len(idx))
	for i, j := range idx {
		out[i] = s.buf[j]
	}
	s.buf = s.buf[:0]
	return out
}
