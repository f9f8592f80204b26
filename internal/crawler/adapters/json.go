package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"presswatch/internal/config"
	"presswatch/internal/crawler"
	"presswatch/internal/models"
	"presswatch/pkg/utils"
)

// JSONAdapter reads a page-numbered JSON listing endpoint. Page parameters
// go into the request body for POST and into the query string otherwise.
type JSONAdapter struct {
	fetcher *crawler.Fetcher
	http    *utils.HTTPHelper
	strings *utils.StringHelper
	cfg     config.JSONSourceConfig
	url     string
}

// NewJSONAdapter creates a JSON adapter for one source.
func NewJSONAdapter(src config.SourceConfig, fetcher *crawler.Fetcher) *JSONAdapter {
	return &JSONAdapter{
		fetcher: fetcher,
		http:    utils.NewHTTPHelper(""),
		strings: utils.NewStringHelper(),
		cfg:     src.JSON,
		url:     src.URL,
	}
}

// ListPage requests one page. An empty result list ends pagination.
func (a *JSONAdapter) ListPage(ctx context.Context, token string) (crawler.Page, error) {
	page := a.cfg.PageStart
	if token != "" {
		n, err := strconv.Atoi(token)
		if err != nil {
			return crawler.Page{}, crawler.Permanent(fmt.Errorf("invalid page token %q: %w", token, err))
		}

		page = n
	}

	req, err := a.request(page)
	if err != nil {
		return crawler.Page{}, crawler.Permanent(err)
	}

	body, err := a.fetcher.Do(ctx, req)
	if err != nil {
		return crawler.Page{}, err
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return crawler.Page{}, crawler.Permanent(fmt.Errorf("failed to decode %s: %w", a.url, err))
	}

	items, _ := lookup(doc, a.cfg.Results).([]any)

	records := make([]models.RawRecord, 0, len(items))
	for _, item := range items {
		link := a.link(stringAt(item, a.cfg.Link))
		if link == "" {
			continue
		}

		records = append(records, models.RawRecord{
			Title:    a.strings.NormalizeWhitespace(stringAt(item, a.cfg.Title)),
			Link:     link,
			DateText: strings.TrimSpace(stringAt(item, a.cfg.Date)),
		})
	}

	out := crawler.Page{Records: records}
	if len(items) > 0 && a.cfg.PageParam != "" {
		out.Next = strconv.Itoa(page + 1)
	}

	return out, nil
}

func (a *JSONAdapter) request(page int) (crawler.Request, error) {
	method := strings.ToUpper(a.cfg.Method)
	if method == "" {
		method = http.MethodGet
	}

	params := map[string]any{}
	if a.cfg.PageParam != "" {
		params[a.cfg.PageParam] = page
	}

	if a.cfg.SizeParam != "" && a.cfg.PageSize > 0 {
		params[a.cfg.SizeParam] = a.cfg.PageSize
	}

	if method == http.MethodGet {
		u, err := url.Parse(a.url)
		if err != nil {
			return crawler.Request{}, fmt.Errorf("invalid listing url %q: %w", a.url, err)
		}

		q := u.Query()
		for k, v := range params {
			q.Set(k, fmt.Sprint(v))
		}

		u.RawQuery = q.Encode()

		return crawler.Request{Method: method, URL: u.String()}, nil
	}

	body := make(map[string]any, len(a.cfg.Body)+len(params))
	maps.Copy(body, a.cfg.Body)
	maps.Copy(body, params)

	return crawler.Request{
		Method:  method,
		URL:     a.url,
		Body:    body,
		Headers: map[string]string{"Accept": "application/json, text/plain, */*"},
	}, nil
}

func (a *JSONAdapter) link(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if a.cfg.LinkPrefix != "" && !strings.HasPrefix(raw, "http") && !strings.HasPrefix(raw, "/") {
		raw = a.cfg.LinkPrefix + raw
	}

	return a.http.ResolveLink(a.url, raw)
}

// lookup follows a dotted path ("data.results") through decoded JSON.
// Numeric segments index arrays.
func lookup(v any, path string) any {
	if path == "" {
		return v
	}

	for _, part := range strings.Split(path, ".") {
		switch t := v.(type) {
		case map[string]any:
			v = t[part]
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(t) {
				return nil
			}

			v = t[i]
		default:
			return nil
		}
	}

	return v
}

func stringAt(v any, path string) string {
	switch t := lookup(v, path).(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
