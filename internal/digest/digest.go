// Package digest builds, renders and delivers the periodic e-mail digest
// of recent press releases.
package digest

import (
	"fmt"
	"time"

	"presswatch/internal/models"
	"presswatch/internal/normalizer"
	"presswatch/internal/query"
)

// EmptySummary is used when no record falls inside the window.
const EmptySummary = "No new competitor press releases were detected in this period."

// Digest is the content of one digest e-mail.
type Digest struct {
	Start   time.Time
	End     time.Time
	Label   string
	Summary string
	Records []models.Record
}

// Build selects the records dated within the windowDays days ending at now,
// newest first. Records without an ISO date are never included.
func Build(records []models.Record, now time.Time, windowDays int) Digest {
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, 0, -windowDays)

	selected := make([]models.Record, 0)

	for _, r := range records {
		d, ok := normalizer.ParseISODate(r.Date)
		if !ok || d.Before(start) || d.After(end) {
			continue
		}

		selected = append(selected, r.Clone())
	}

	query.SortByDateDesc(selected)

	d := Digest{
		Start:   start,
		End:     end,
		Label:   Label(start, end),
		Records: selected,
	}

	if len(selected) == 0 {
		d.Summary = EmptySummary
	}

	return d
}

// Label formats a window like "Oct 10 - Oct 17, 2026".
func Label(start, end time.Time) string {
	return fmt.Sprintf("%s - %s", start.Format("Jan 02"), end.Format("Jan 02, 2006"))
}

// Subject returns the e-mail subject. prefix defaults to "PressWatch Weekly Digest".
func (d Digest) Subject(prefix string) string {
	if prefix == "" {
		prefix = "PressWatch Weekly Digest"
	}

	return prefix + ": " + d.Label
}
