package adapters

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"presswatch/internal/config"
	"presswatch/internal/crawler"
	"presswatch/internal/models"
	"presswatch/pkg/utils"

	"github.com/mmcdole/gofeed"
)

// FeedAdapter reads an RSS or Atom feed as a single page.
type FeedAdapter struct {
	fetcher *crawler.Fetcher
	parser  *gofeed.Parser
	http    *utils.HTTPHelper
	strings *utils.StringHelper
	url     string
}

// NewFeedAdapter creates a feed adapter for one source.
func NewFeedAdapter(src config.SourceConfig, fetcher *crawler.Fetcher) *FeedAdapter {
	return &FeedAdapter{
		fetcher: fetcher,
		parser:  gofeed.NewParser(),
		http:    utils.NewHTTPHelper(""),
		strings: utils.NewStringHelper(),
		url:     src.URL,
	}
}

// ListPage fetches the feed. Feeds have no further pages.
func (a *FeedAdapter) ListPage(ctx context.Context, _ string) (crawler.Page, error) {
	body, err := a.fetcher.Get(ctx, a.url)
	if err != nil {
		return crawler.Page{}, err
	}

	feed, err := a.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return crawler.Page{}, crawler.Permanent(fmt.Errorf("failed to parse feed %s: %w", a.url, err))
	}

	records := make([]models.RawRecord, 0, len(feed.Items))
	for _, item := range feed.Items {
		link := item.Link
		if link == "" {
			link = item.GUID
		}

		link = a.http.ResolveLink(a.url, link)
		if link == "" {
			continue
		}

		records = append(records, models.RawRecord{
			Title:    a.strings.NormalizeWhitespace(item.Title),
			Link:     link,
			DateText: itemDate(item),
		})
	}

	return crawler.Page{Records: records}, nil
}

func itemDate(item *gofeed.Item) string {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.UTC().Format(time.RFC3339)
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.UTC().Format(time.RFC3339)
	case item.Published != "":
		return item.Published
	default:
		return item.Updated
	}
}
