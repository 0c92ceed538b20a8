// Package store persists conversion sessions in SQLite so that a script can
// be traced back to the raw samples, captures and diagnostics behind it.
package store

import "time"

// Status of a conversion session.
type Status string

const (
	StatusActive   Status = "active"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Session is one run of the converter over an event log.
type Session struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	SourcePath string
	ScriptPath string
	Precision  float64
	StepSize   int
	Layout     string
	Status     Status
	Error      string

	EventCount   int
	LineCount    int
	CaptureCount int
}

// Sample is a raw pointer position recorded for diagnostics.
type Sample struct {
	Ordinal int
	TimeMs  int64
	X       int
	Y       int
}

// Capture records the outcome of one region capture.
type Capture struct {
	ID          int64
	Seq         int
	FileName    string
	Hover       bool
	X, Y        int
	Width       int
	Height      int
	Fingerprint string
	Error       string
}

// Diagnostic is an event the converter skipped.
type Diagnostic struct {
	TimeMs int64
	Kind   string
	Reason string
}
