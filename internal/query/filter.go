// Package query filters and summarizes master store records for listing,
// exporting and digests.
package query

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"presswatch/internal/models"
	"presswatch/internal/normalizer"
)

// Filter selects records. Zero fields do not restrict.
type Filter struct {
	From time.Time
	To   time.Time
	// Text is matched case-insensitively against the title and TextFields.
	Text string
	// TextFields are derived columns searched in addition to the title.
	TextFields []string
	Companies  []string
}

// Apply returns the matching records sorted by date, newest first, with
// unparsed dates last. records is not modified.
func (f Filter) Apply(records []models.Record) []models.Record {
	out := make([]models.Record, 0, len(records))

	for _, r := range records {
		if f.matches(r) {
			out = append(out, r.Clone())
		}
	}

	SortByDateDesc(out)

	return out
}

func (f Filter) matches(r models.Record) bool {
	if len(f.Companies) > 0 && !slices.ContainsFunc(f.Companies, func(c string) bool {
		return strings.EqualFold(c, r.Company)
	}) {
		return false
	}

	if !f.From.IsZero() || !f.To.IsZero() {
		d, ok := normalizer.ParseISODate(r.Date)
		if !ok {
			return false
		}

		if !f.From.IsZero() && d.Before(f.From) {
			return false
		}

		if !f.To.IsZero() && d.After(f.To) {
			return false
		}
	}

	if text := strings.TrimSpace(f.Text); text != "" {
		return f.containsText(r, strings.ToLower(text))
	}

	return true
}

func (f Filter) containsText(r models.Record, needle string) bool {
	if strings.Contains(strings.ToLower(r.Title), needle) {
		return true
	}

	for _, field := range f.TextFields {
		if strings.Contains(strings.ToLower(r.Field(field)), needle) {
			return true
		}
	}

	return false
}

// SortByDateDesc sorts records newest first. Records without an ISO date
// go last; ties keep their store order.
func SortByDateDesc(records []models.Record) {
	slices.SortStableFunc(records, func(a, b models.Record) int {
		ai, bi := normalizer.IsISODate(a.Date), normalizer.IsISODate(b.Date)

		switch {
		case ai && !bi:
			return -1
		case !ai && bi:
			return 1
		case !ai && !bi:
			return 0
		}

		return cmp.Compare(b.Date, a.Date)
	})
}

// Summary holds headline numbers for a set of records.
type Summary struct {
	TopCompany string
	Earliest   string
	Latest     string
	Count      int
}

// Summarize computes the record count, the company with most records and
// the earliest and latest ISO dates.
func Summarize(records []models.Record) Summary {
	s := Summary{Count: len(records)}
	counts := map[string]int{}

	for _, r := range records {
		counts[r.Company]++

		if counts[r.Company] > counts[s.TopCompany] ||
			(counts[r.Company] == counts[s.TopCompany] && r.Company < s.TopCompany) {
			s.TopCompany = r.Company
		}

		if !normalizer.IsISODate(r.Date) {
			continue
		}

		if s.Earliest == "" || r.Date < s.Earliest {
			s.Earliest = r.Date
		}

		if r.Date > s.Latest {
			s.Latest = r.Date
		}
	}

	return s
}
