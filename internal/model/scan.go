package model

import "time"

// RunState is the completion state of a scan run.
type RunState string

// Run states.
const (
	RunRunning   RunState = "RUNNING"
	RunCompleted RunState = "COMPLETED"
	RunAborted   RunState = "ABORTED"
	RunCancelled RunState = "CANCELLED"
)

// Progress is one tick emitted by the scan pipeline after a file is handled.
type Progress struct {
	Path      string
	Processed int
	Total     int
}

// FileFailure explains why one file was not classified into its own category.
type FileFailure struct {
	Path        string
	Destination string
	Reason      FailureReason
	Message     string
}

// ScanSummary aggregates one scan run.
type ScanSummary struct {
	StartedAt  time.Time
	FinishedAt time.Time
	RunID      string
	State      RunState
	Failures   []FileFailure
	Total      int
	Processed  int
	Succeeded  int
	Failed     int
}

// Duration returns how long the run took.
func (s ScanSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// FailuresByReason counts failures per reason for display.
func (s ScanSummary) FailuresByReason() map[FailureReason]int {
	counts := make(map[FailureReason]int)
	for _, f := range s.Failures {
		counts[f.Reason]++
	}
	return counts
}
