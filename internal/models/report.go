package models

import (
	"fmt"
	"time"
)

// SourceReport summarizes one source's ingestion.
type SourceReport struct {
	Source     string        `json:"source"`
	Company    string        `json:"company"`
	StopReason string        `json:"stopReason"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	Pages      int           `json:"pages"`
	Candidates int           `json:"candidates"`
	Kept       int           `json:"kept"`
	Unparsed   int           `json:"unparsed"`
	Invalid    int           `json:"invalid"`
	Added      int           `json:"added"`
	Duplicates int           `json:"duplicates"`
	Success    bool          `json:"success"`
}

// RunReport summarizes a whole crawl run.
type RunReport struct {
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Sources    []SourceReport `json:"sources"`
}

// Totals returns the run-wide added and duplicate counts and the number of failed sources.
func (r *RunReport) Totals() (added, duplicates, failed int) {
	for _, s := range r.Sources {
		added += s.Added
		duplicates += s.Duplicates

		if !s.Success {
			failed++
		}
	}

	return added, duplicates, failed
}

// String returns a one-line representation of the run.
func (r *RunReport) String() string {
	added, dups, failed := r.Totals()

	return fmt.Sprintf(
		"Sources: %d (%d failed) | Added: %d | Duplicates: %d | Took: %s",
		len(r.Sources),
		failed,
		added,
		dups,
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
	)
}
