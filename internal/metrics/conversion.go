package metrics

import (
	"time"

	"scriptrec/internal/convert"
)

// Conversion tracks conversion sessions.
type Conversion struct {
	Registry *Registry

	Conversions     *Counter
	Failures        *Counter
	Events          *Counter
	Lines           *Counter
	Captures        *Counter
	CaptureFailures *Counter
	Diagnostics     *Counter
	SkippedLines    *Counter

	Duration       *Histogram
	LastConversion *Gauge
	LastLines      *Gauge
}

// NewConversion registers the conversion metrics in a fresh
// scriptrec_convert registry.
func NewConversion() *Conversion {
	r := NewRegistry("scriptrec", "convert")
	return &Conversion{
		Registry:        r,
		Conversions:     r.Counter("sessions_total", "Conversion sessions started", nil),
		Failures:        r.Counter("failures_total", "Conversion sessions that ended with an error", nil),
		Events:          r.Counter("events_total", "Raw input events consumed", nil),
		Lines:           r.Counter("lines_total", "Script lines emitted", nil),
		Captures:        r.Counter("captures_total", "Screen regions captured", nil),
		CaptureFailures: r.Counter("capture_failures_total", "Screen captures that failed", nil),
		Diagnostics:     r.Counter("diagnostics_total", "Events reported as unhandled", nil),
		SkippedLines:    r.Counter("skipped_lines_total", "Event log lines that could not be parsed", nil),
		Duration:        r.Histogram("duration_seconds", "Wall time of a conversion session", nil, nil),
		LastConversion:  r.Gauge("last_timestamp_seconds", "Unix time of the last finished conversion", nil),
		LastLines:       r.Gauge("last_lines", "Script lines emitted by the last conversion", nil),
	}
}

// Observe records one finished session. res may be nil when the session
// failed before producing output.
func (m *Conversion) Observe(res *convert.Result, skipped int, elapsed time.Duration, err error) {
	m.Conversions.Inc()
	m.SkippedLines.Add(uint64(skipped))
	m.Duration.ObserveDuration(elapsed)
	m.LastConversion.SetTime(time.Now())
	if err != nil {
		m.Failures.Inc()
	}
	if res == nil {
		return
	}

	m.Events.Add(uint64(res.Events))
	m.Lines.Add(uint64(len(res.Lines)))
	m.Captures.Add(uint64(res.Captures))
	m.CaptureFailures.Add(uint64(len(res.Failures())))
	m.Diagnostics.Add(uint64(len(res.Diagnostics)))
	m.LastLines.Set(float64(len(res.Lines)))
}
