package enrich

import (
	"bytes"
	"context"
	"fmt"

	"presswatch/pkg/utils"

	"github.com/PuerkitoBio/goquery"
)

// PageFetcher returns the body of a web page.
type PageFetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// PageText fetches link and returns its visible text with whitespace
// collapsed, truncated to maxChars runes.
func PageText(ctx context.Context, fetcher PageFetcher, link string, maxChars int) (string, error) {
	body, err := fetcher.Get(ctx, link)
	if err != nil {
		return "", err
	}

	return ExtractText(body, maxChars)
}

// ExtractText returns the visible text of an HTML document.
func ExtractText(body []byte, maxChars int) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	strs := utils.NewStringHelper()

	return strs.TruncateString(strs.NormalizeWhitespace(doc.Text()), maxChars), nil
}
