// Package adapters holds the concrete source adapters: HTML listings read
// with CSS selectors, paginated JSON endpoints and RSS/Atom feeds.
package adapters

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"presswatch/internal/config"
	"presswatch/internal/crawler"
	"presswatch/internal/models"
	"presswatch/pkg/utils"

	"github.com/PuerkitoBio/goquery"
)

// HTMLAdapter reads a listing page with CSS selectors.
//
// Tokens are page numbers (query and path modes) or item offsets (offset
// mode). Links already produced earlier in the crawl are skipped, and a page
// that yields nothing new ends pagination.
type HTMLAdapter struct {
	fetcher *crawler.Fetcher
	detail  *DetailProber
	http    *utils.HTTPHelper
	strings *utils.StringHelper
	seen    map[string]bool
	cfg     config.HTMLSourceConfig
	listURL string
}

// NewHTMLAdapter creates an HTML adapter for one source.
func NewHTMLAdapter(src config.SourceConfig, fetcher *crawler.Fetcher) *HTMLAdapter {
	a := &HTMLAdapter{
		fetcher: fetcher,
		http:    utils.NewHTTPHelper(""),
		strings: utils.NewStringHelper(),
		seen:    make(map[string]bool),
		cfg:     src.HTML,
		listURL: src.URL,
	}

	if src.HTML.DetailDate {
		a.detail = NewDetailProber(fetcher)
	}

	return a
}

// ListPage fetches and extracts one listing page.
func (a *HTMLAdapter) ListPage(ctx context.Context, token string) (crawler.Page, error) {
	n, err := a.pageNumber(token)
	if err != nil {
		return crawler.Page{}, crawler.Permanent(err)
	}

	pageURL, err := a.pageURL(token, n)
	if err != nil {
		return crawler.Page{}, crawler.Permanent(err)
	}

	body, err := a.fetcher.Get(ctx, pageURL)
	if err != nil {
		return crawler.Page{}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return crawler.Page{}, crawler.Permanent(fmt.Errorf("failed to parse %s: %w", pageURL, err))
	}

	base := a.cfg.BaseURL
	if base == "" {
		base = pageURL
	}

	items := doc.Find(a.cfg.Item)
	records := make([]models.RawRecord, 0, items.Length())

	items.Each(func(_ int, item *goquery.Selection) {
		raw, ok := a.extract(item, base)
		if !ok || a.seen[raw.Link] {
			return
		}

		a.seen[raw.Link] = true

		if raw.DateText == "" && a.detail != nil {
			raw.DateText = a.detail.ProbeDate(ctx, raw.Link)
		}

		records = append(records, raw)
	})

	page := crawler.Page{Records: records}
	if len(records) > 0 {
		page.Next = a.nextToken(n, items.Length())
	}

	return page, nil
}

func (a *HTMLAdapter) extract(item *goquery.Selection, base string) (models.RawRecord, bool) {
	linkSel := within(item, a.cfg.Link)
	href, _ := linkSel.Attr("href")

	link := a.http.ResolveLink(base, href)
	if link == "" {
		return models.RawRecord{}, false
	}

	title := ""
	if a.cfg.Title != "" {
		title = within(item, a.cfg.Title).Text()
	}

	if strings.TrimSpace(title) == "" {
		title = linkSel.AttrOr("title", linkSel.Text())
	}

	date := ""
	if a.cfg.Date != "" {
		dateSel := within(item, a.cfg.Date)
		if a.cfg.DateAttr != "" {
			date = dateSel.AttrOr(a.cfg.DateAttr, "")
		} else {
			date = dateSel.Text()
		}
	}

	return models.RawRecord{
		Title:    a.strings.NormalizeWhitespace(title),
		Link:     link,
		DateText: a.strings.NormalizeWhitespace(date),
	}, true
}

// within returns the first match of selector inside item, or item itself
// when item matches the selector.
func within(item *goquery.Selection, selector string) *goquery.Selection {
	if found := item.Find(selector).First(); found.Length() > 0 {
		return found
	}

	if item.Is(selector) {
		return item
	}

	return item.Find(selector)
}

func (a *HTMLAdapter) pageNumber(token string) (int, error) {
	if token == "" {
		if a.cfg.Pagination.Mode == config.PaginationPath && a.cfg.Pagination.Start == 0 {
			return 1, nil
		}

		return a.cfg.Pagination.Start, nil
	}

	n, err := strconv.Atoi(token)
	if err != nil {
		return 0, fmt.Errorf("invalid page token %q: %w", token, err)
	}

	return n, nil
}

func (a *HTMLAdapter) pageURL(token string, n int) (string, error) {
	p := a.cfg.Pagination

	switch p.Mode {
	case config.PaginationQuery:
		return withQuery(a.listURL, paramOr(p.Param, "page"), n)
	case config.PaginationOffset:
		if token == "" && n == 0 {
			return a.listURL, nil
		}

		return withQuery(a.listURL, paramOr(p.Param, "start"), n)
	case config.PaginationPath:
		if token == "" {
			return a.listURL, nil
		}

		tmpl := p.PathTemplate
		if tmpl == "" {
			tmpl = "page/%d/"
		}

		return strings.TrimSuffix(a.listURL, "/") + "/" + strings.TrimPrefix(fmt.Sprintf(tmpl, n), "/"), nil
	default:
		return a.listURL, nil
	}
}

func (a *HTMLAdapter) nextToken(n, items int) string {
	p := a.cfg.Pagination

	switch p.Mode {
	case config.PaginationQuery, config.PaginationPath:
		step := p.Step
		if step <= 0 {
			step = 1
		}

		return strconv.Itoa(n + step)
	case config.PaginationOffset:
		step := p.Step
		if step <= 0 {
			step = items
		}

		return strconv.Itoa(n + step)
	default:
		return ""
	}
}

func paramOr(param, fallback string) string {
	if param == "" {
		return fallback
	}

	return param
}

func withQuery(raw, param string, value int) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid listing url %q: %w", raw, err)
	}

	q := u.Query()
	q.Set(param, strconv.Itoa(value))
	u.RawQuery = q.Encode()

	return u.String(), nil
}
