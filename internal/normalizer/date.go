package normalizer

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ISODateLayout is the canonical date layout of the master store.
const ISODateLayout = "2006-01-02"

// dateLayouts are tried in order against the whole date segment.
var dateLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"Jan. 2, 2006",
	ISODateLayout,
	"2006/01/02",
	"1/2/2006",
	"2-Jan-2006",
	"2Jan2006",
	"2 January 2006",
	"2 Jan 2006",
	"2006.01.02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

const (
	fullMonths  = `January|February|March|April|May|June|July|August|September|October|November|December`
	shortMonths = `Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sept|Sep|Oct|Nov|Dec`
)

var (
	septPattern     = regexp.MustCompile(`(?i)\bSept\b`)
	isoDatePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	embeddedPattern = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(` + fullMonths + `)\s+(\d{1,2}),\s*(\d{4})\b`),
		regexp.MustCompile(`(?i)\b(` + shortMonths + `)\.?\s+(\d{1,2}),\s*(\d{4})\b`),
	}
)

// NormalizeDate converts free-form date text into YYYY-MM-DD.
//
// Full-string layouts win over the embedded "Month D, YYYY" scan. When
// nothing parses, the trimmed input is returned unchanged.
func NormalizeDate(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	segment := trimmed
	if idx := strings.Index(segment, "|"); idx >= 0 {
		segment = segment[:idx]
	}

	segment = strings.Join(strings.Fields(segment), " ")
	segment = septPattern.ReplaceAllString(segment, "Sep")

	if t, ok := parseLayouts(segment); ok {
		return t.Format(ISODateLayout)
	}

	if t, ok := parseEmbedded(segment); ok {
		return t.Format(ISODateLayout)
	}

	return trimmed
}

func parseLayouts(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

func parseEmbedded(s string) (time.Time, bool) {
	for _, pattern := range embeddedPattern {
		for _, m := range pattern.FindAllStringSubmatch(s, -1) {
			month := m[1]
			if len(month) > 3 {
				month = month[:3]
			}

			candidate := fmt.Sprintf("%s %s, %s", month, m[2], m[3])
			if t, err := time.Parse("Jan 2, 2006", candidate); err == nil {
				return t, true
			}
		}
	}

	return time.Time{}, false
}

// FindEmbeddedDate returns the first "Month D, YYYY" date found anywhere in
// text, as YYYY-MM-DD.
func FindEmbeddedDate(text string) (string, bool) {
	t, ok := parseEmbedded(septPattern.ReplaceAllString(text, "Sep"))
	if !ok {
		return "", false
	}

	return t.Format(ISODateLayout), true
}

// IsISODate reports whether s is a valid YYYY-MM-DD calendar date.
func IsISODate(s string) bool {
	_, ok := ParseISODate(s)

	return ok
}

// ParseISODate parses a YYYY-MM-DD date at midnight UTC.
func ParseISODate(s string) (time.Time, bool) {
	if !isoDatePattern.MatchString(s) {
		return time.Time{}, false
	}

	t, err := time.Parse(ISODateLayout, s)
	if err != nil {
		return time.Time{}, false
	}

	return t, true
}
