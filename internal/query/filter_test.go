package query

import (
	"testing"
	"time"

	"presswatch/internal/models"

	"github.com/stretchr/testify/assert"
)

func rec(company, title, date string, fields map[string]string) models.Record {
	return models.Record{ID: company + title, Company: company, Title: title, Date: date, Fields: fields}
}

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)

	return t
}

func titles(records []models.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Title)
	}

	return out
}

var fixture = []models.Record{
	rec("Nokia", "Nokia 5G core", "2025-02-10", map[string]string{"summary_ai": "Mobile core rollout"}),
	rec("Ciena", "WaveLogic launch", "2025-03-05", nil),
	rec("Calix", "Broadband cloud", "Q1 2025", nil),
	rec("Nokia", "Fiber deal", "2025-01-15", map[string]string{"impact": "Threat to fiber business"}),
	rec("Zhone", "DZS update", "2024-12-20", nil),
}

func TestFilter_SortsNewestFirstWithUnparsedLast(t *testing.T) {
	got := Filter{}.Apply(fixture)

	assert.Equal(t, []string{"WaveLogic launch", "Nokia 5G core", "Fiber deal", "DZS update", "Broadband cloud"}, titles(got))
}

func TestFilter_Criteria(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{
			name:   "companies are case-insensitive",
			filter: Filter{Companies: []string{"nokia"}},
			want:   []string{"Nokia 5G core", "Fiber deal"},
		},
		{
			name:   "date range is inclusive and drops unparsed dates",
			filter: Filter{From: day("2025-01-15"), To: day("2025-02-10")},
			want:   []string{"Nokia 5G core", "Fiber deal"},
		},
		{
			name:   "open-ended range",
			filter: Filter{From: day("2025-03-01")},
			want:   []string{"WaveLogic launch"},
		},
		{
			name:   "text matches title",
			filter: Filter{Text: "  wavelogic "},
			want:   []string{"WaveLogic launch"},
		},
		{
			name:   "text matches derived fields only when listed",
			filter: Filter{Text: "fiber business", TextFields: []string{"summary_ai", "impact"}},
			want:   []string{"Fiber deal"},
		},
		{
			name:   "derived fields not listed are ignored",
			filter: Filter{Text: "rollout"},
			want:   []string{},
		},
		{
			name:   "criteria combine",
			filter: Filter{Companies: []string{"Nokia", "Ciena"}, Text: "core", TextFields: []string{"summary_ai"}},
			want:   []string{"Nokia 5G core"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, titles(tt.filter.Apply(fixture)))
		})
	}
}

func TestFilter_DoesNotMutateInput(t *testing.T) {
	input := []models.Record{
		rec("A", "old", "2024-01-01", map[string]string{"impact": "x"}),
		rec("A", "new", "2025-01-01", nil),
	}

	got := Filter{}.Apply(input)
	got[1].Fields["impact"] = "changed"

	assert.Equal(t, "old", input[0].Title)
	assert.Equal(t, "x", input[0].Fields["impact"])
}

func TestSummarize(t *testing.T) {
	s := Summarize(fixture)

	assert.Equal(t, Summary{Count: 5, TopCompany: "Nokia", Earliest: "2024-12-20", Latest: "2025-03-05"}, s)
	assert.Equal(t, Summary{}, Summarize(nil))
}
