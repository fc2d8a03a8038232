package models

import "time"

// SkipReason records why a file did not produce a record.
type SkipReason struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// RunSummary describes one pass of the extraction pipeline.
type RunSummary struct {
	RunID      string       `json:"runId"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	Found      int          `json:"found"`
	Extracted  int          `json:"extracted"`
	Dumped     int          `json:"dumped"`
	Outputs    []string     `json:"outputs"`
	Skipped    []SkipReason `json:"skipped,omitempty"`
}

// NewRunSummary creates an empty summary for the given run.
func NewRunSummary(runID string, startedAt time.Time) *RunSummary {
	return &RunSummary{
		RunID:     runID,
		StartedAt: startedAt,
		Outputs:   make([]string, 0),
		Skipped:   make([]SkipReason, 0),
	}
}

// Skip appends a skipped file.
func (s *RunSummary) Skip(path, reason string) {
	s.Skipped = append(s.Skipped, SkipReason{Path: path, Reason: reason})
}

// Duration returns the elapsed run time.
func (s *RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
