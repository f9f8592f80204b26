package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"presswatch/internal/crawler"
	"presswatch/internal/normalizer"

	"github.com/PuerkitoBio/goquery"
)

// publishedMeta lists meta tags that carry a publication date, most reliable first.
var publishedMeta = []string{
	`meta[property="article:published_time"]`,
	`meta[itemprop="datePublished"]`,
	`meta[name="publish-date"]`,
	`meta[name="date"]`,
	`meta[name="DC.date.issued"]`,
}

// DetailProber looks for a publication date on an article page.
type DetailProber struct {
	fetcher *crawler.Fetcher
}

// NewDetailProber creates a prober using fetcher.
func NewDetailProber(fetcher *crawler.Fetcher) *DetailProber {
	return &DetailProber{fetcher: fetcher}
}

// ProbeDate fetches link and returns the date text it finds, or "".
// Failures are swallowed: the record is kept with an unparsed date.
func (p *DetailProber) ProbeDate(ctx context.Context, link string) string {
	body, err := p.fetcher.Get(ctx, link)
	if err != nil {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	return DateFromDocument(doc)
}

// DateFromDocument extracts a date from, in order: <time datetime>, publish
// meta tags, JSON-LD datePublished, then the first "Month D, YYYY" in the text.
func DateFromDocument(doc *goquery.Document) string {
	if v, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}

	for _, sel := range publishedMeta {
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}

	found := ""

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var v any
		if json.Unmarshal([]byte(s.Text()), &v) != nil {
			return true
		}

		found = findKey(v, "datePublished")

		return found == ""
	})

	if found != "" {
		return found
	}

	if d, ok := normalizer.FindEmbeddedDate(doc.Find("body").Text()); ok {
		return d
	}

	return ""
}

// findKey walks decoded JSON depth-first and returns the first string value of key.
func findKey(v any, key string) string {
	switch t := v.(type) {
	case map[string]any:
		if s, ok := t[key].(string); ok && s != "" {
			return s
		}

		for _, child := range t {
			if s := findKey(child, key); s != "" {
				return s
			}
		}
	case []any:
		for _, child := range t {
			if s := findKey(child, key); s != "" {
				return s
			}
		}
	}

	return ""
}
