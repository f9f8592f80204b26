package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"presswatch/internal/config"
	"presswatch/internal/logger"
	"presswatch/internal/store"
)

const listingPage = `<html><body><ul>
<li class="pr"><a href="/pr/%[1]d-a">Release %[1]d A</a><span class="date">%[2]s</span></li>
<li class="pr"><a href="/pr/%[1]d-b">Release %[1]d B</a><span class="date">%[3]s</span></li>
</ul></body></html>`

const feedXML = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Ciena</title>
<item><title>Feed one</title><link>%[1]s/feed/1</link><pubDate>Mon, 03 Mar 2025 10:00:00 GMT</pubDate></item>
<item><title>Feed two</title><guid>%[1]s/feed/2</guid><pubDate>Tue, 04 Feb 2025 10:00:00 GMT</pubDate></item>
</channel></rss>`

// pressSite serves one HTML listing, one RSS feed and one JSON API.
type pressSite struct {
	*httptest.Server

	mu       sync.Mutex
	requests []string
}

func newPressSite(t *testing.T) *pressSite {
	t.Helper()

	site := &pressSite{}
	mux := http.NewServeMux()

	mux.HandleFunc("/news", func(w http.ResponseWriter, r *http.Request) {
		site.record(r.URL.RequestURI())

		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprintf(w, listingPage, 1, "March 1, 2025", "February 1, 2025")
		case "2":
			fmt.Fprintf(w, listingPage, 2, "January 5, 2025", "Dec 1, 2024")
		default:
			t.Errorf("unexpected listing request %s", r.URL.RequestURI())
			http.NotFound(w, r)
		}
	})

	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		site.record(r.URL.RequestURI())
		fmt.Fprintf(w, feedXML, site.URL)
	})

	mux.HandleFunc("/api/news", func(w http.ResponseWriter, r *http.Request) {
		site.record(r.URL.RequestURI())

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)

			return
		}

		results := []map[string]string{}
		if body["pageNum"] == float64(1) {
			results = append(results,
				map[string]string{"title": "Api one", "pageUrl": site.URL + "/api/1", "releaseFormatTime": "2025-04-01"},
				map[string]string{"title": "Api two", "pageUrl": site.URL + "/api/2", "releaseFormatTime": "2025-03-15"},
			)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"results": results}})
	})

	site.Server = httptest.NewServer(mux)
	t.Cleanup(site.Close)

	return site
}

func (s *pressSite) record(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, uri)
}

func TestPipeline_CrawlsAllSourceKinds(t *testing.T) {
	site := newPressSite(t)
	storePath := filepath.Join(t.TempDir(), "master.csv")

	cfg := &config.Config{
		Crawler: config.CrawlerConfig{
			Cutoff:      "2025-01-01",
			MaxPages:    10,
			Concurrency: 2,
			Retry:       config.RetryPolicy{MaxAttempts: 1, BackoffMultiplier: 1, TimeoutSec: 5},
			Store:       config.StoreConfig{Backend: config.BackendCSV, Path: storePath},
			Sources: []config.SourceConfig{
				{
					Name: "ribbon", Company: "Ribbon", Kind: config.KindHTML, URL: site.URL + "/news",
					Enabled: true, SortedDesc: true,
					HTML: config.HTMLSourceConfig{
						Item: "li.pr", Link: "a", Date: "span.date",
						Pagination: config.PaginationConfig{Mode: config.PaginationQuery, Param: "page", Start: 1},
					},
				},
				{Name: "ciena", Company: "Ciena", Kind: config.KindRSS, URL: site.URL + "/feed.xml", Enabled: true},
				{
					Name: "huawei", Company: "Huawei", Kind: config.KindJSON, URL: site.URL + "/api/news",
					Enabled: true, SortedDesc: true,
					JSON: config.JSONSourceConfig{
						Method: http.MethodPost, PageParam: "pageNum", SizeParam: "pageSize", PageStart: 1, PageSize: 12,
						Results: "data.results", Title: "title", Link: "pageUrl", Date: "releaseFormatTime",
					},
				},
			},
		},
	}

	sources, err := BuildSources(cfg)
	if err != nil {
		t.Fatalf("BuildSources failed: %v", err)
	}

	s, err := store.Open(cfg.Crawler.Store, logger.NewNop())
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}

	merger := store.NewMerger(s, logger.NewNop())
	p := NewPipeline(merger, logger.NewNop(), cfg.Crawler.Concurrency)

	report, err := p.Run(context.Background(), sources)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	added, _, failed := report.Totals()
	if failed != 0 {
		t.Fatalf("expected no failed sources, got %d: %+v", failed, report.Sources)
	}

	if added != 7 {
		t.Errorf("expected 7 records added, got %d", added)
	}

	snap, err := merger.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	got := map[string]string{}
	for _, r := range snap.Records {
		got[r.Company+"/"+r.Title] = r.Date
	}

	want := map[string]string{
		"Ribbon/Release 1 A": "2025-03-01",
		"Ribbon/Release 1 B": "2025-02-01",
		"Ribbon/Release 2 A": "2025-01-05",
		"Ciena/Feed one":     "2025-03-03",
		"Ciena/Feed two":     "2025-02-04",
		"Huawei/Api one":     "2025-04-01",
		"Huawei/Api two":     "2025-03-15",
	}

	if len(got) != len(want) {
		t.Errorf("expected %d records, got %d: %v", len(want), len(got), got)
	}

	for k, v := range want {
		if got[k] != v {
			t.Errorf("record %s: expected date %q, got %q", k, v, got[k])
		}
	}

	// The listing stops on the page holding the first pre-cutoff release.
	site.mu.Lock()
	requests := append([]string(nil), site.requests...)
	site.mu.Unlock()

	sort.Strings(requests)

	wantRequests := []string{"/api/news", "/api/news", "/feed.xml", "/news?page=1", "/news?page=2"}
	if fmt.Sprint(requests) != fmt.Sprint(wantRequests) {
		t.Errorf("requests = %v, want %v", requests, wantRequests)
	}

	// A second run adds nothing.
	sources, err = BuildSources(cfg)
	if err != nil {
		t.Fatalf("BuildSources failed: %v", err)
	}

	report, err = p.Run(context.Background(), sources)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	if added, dups, _ := report.Totals(); added != 0 || dups != 7 {
		t.Errorf("second run: expected 0 added and 7 duplicates, got %d and %d", added, dups)
	}
}
