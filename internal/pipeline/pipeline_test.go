package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"presswatch/internal/config"
	"presswatch/internal/crawler"
	"presswatch/internal/models"
	"presswatch/internal/normalizer"
	"presswatch/internal/store"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cutoff = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func testProcessor() *normalizer.Processor {
	var n atomic.Int64

	return normalizer.NewProcessorWithCanonicalizer(normalizer.NewCanonicalizerWithDeps(
		func() string { return "id-" + strconv.FormatInt(n.Add(1), 10) },
		func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) },
	))
}

func newTestPipeline(s store.Store, metrics *Metrics, concurrency int) (*Pipeline, *store.Merger) {
	merger := store.NewMerger(s, nil)

	return NewPipelineWithDeps(crawler.NewController(nil), testProcessor(), merger, metrics, nil, concurrency), merger
}

// pages serves fixed pages, then reports the end of the listing.
func pages(p ...[]models.RawRecord) crawler.Adapter {
	return crawler.AdapterFunc(func(_ context.Context, token string) (crawler.Page, error) {
		idx := 0
		if token != "" {
			idx, _ = strconv.Atoi(token)
		}

		page := crawler.Page{Records: p[idx]}
		if idx+1 < len(p) {
			page.Next = strconv.Itoa(idx + 1)
		}

		return page, nil
	})
}

func raw(title, date string) models.RawRecord {
	return models.RawRecord{Title: title, Link: "https://acme.example/" + title, DateText: date}
}

func TestRun_ExistingRowUntouchedAndNewRowAppended(t *testing.T) {
	ctx := context.Background()
	s := store.NewCSVStore(filepath.Join(t.TempDir(), "master.csv"), true)

	original := models.Record{
		ID:        "orig-1",
		Company:   "Acme",
		Title:     "Q1 Results",
		Link:      "https://acme.example/q1",
		Date:      "2025-01-01",
		FetchedAt: "2025-01-02 09:00:00",
		Fields:    map[string]string{"summary_ai": "Strong quarter."},
	}
	require.NoError(t, s.Replace(ctx, models.Snapshot{Columns: []string{"summary_ai"}, Records: []models.Record{original}}))

	p, merger := newTestPipeline(s, nil, 1)

	report, err := p.Run(ctx, []Source{{
		Name:    "acme",
		Company: "Acme",
		Adapter: pages([]models.RawRecord{raw("Q1 Results", "2025-01-01"), raw("New Product", "2025-02-10")}),
	}})
	require.NoError(t, err)

	require.Len(t, report.Sources, 1)
	assert.True(t, report.Sources[0].Success)
	assert.Equal(t, 2, report.Sources[0].Candidates)
	assert.Equal(t, 1, report.Sources[0].Added)
	assert.Equal(t, 1, report.Sources[0].Duplicates)

	snap, err := merger.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Records, 2)

	if diff := cmp.Diff(original, snap.Records[0]); diff != "" {
		t.Errorf("existing row changed (-want +got):\n%s", diff)
	}

	assert.Equal(t, models.Record{
		ID:        "id-2",
		Company:   "Acme",
		Title:     "New Product",
		Link:      "https://acme.example/New Product",
		Date:      "2025-02-10",
		FetchedAt: "2025-03-04 05:06:07",
	}, snap.Records[1])
}

func TestRun_CutoffStopsPaginationAndStoresOnlyRecentRecords(t *testing.T) {
	ctx := context.Background()

	var requested []string

	adapter := crawler.AdapterFunc(func(_ context.Context, token string) (crawler.Page, error) {
		requested = append(requested, token)

		switch token {
		case "":
			return crawler.Page{Records: []models.RawRecord{raw("march", "2025-03-01"), raw("february", "2025-02-01")}, Next: "2"}, nil
		case "2":
			return crawler.Page{Records: []models.RawRecord{raw("december", "2024-12-01")}, Next: "3"}, nil
		default:
			t.Fatalf("page %q must not be requested", token)

			return crawler.Page{}, nil
		}
	})

	s, err := store.OpenInMemoryBadgerStore()
	require.NoError(t, err)
	defer s.Close()

	p, merger := newTestPipeline(s, nil, 1)

	report, err := p.Run(ctx, []Source{{
		Name:    "acme",
		Company: "Acme",
		Adapter: adapter,
		Policy:  crawler.Policy{Cutoff: cutoff, SortedDescending: true},
	}})
	require.NoError(t, err)

	assert.Equal(t, []string{"", "2"}, requested)
	assert.Equal(t, crawler.StopCutoff, report.Sources[0].StopReason)
	assert.Equal(t, 2, report.Sources[0].Pages)

	snap, err := merger.Snapshot(ctx)
	require.NoError(t, err)

	var dates []string
	for _, r := range snap.Records {
		dates = append(dates, r.Date)
	}

	assert.Equal(t, []string{"2025-03-01", "2025-02-01"}, dates)
}

func TestRun_SourceFailuresAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := store.NewCSVStore(filepath.Join(t.TempDir(), "master.csv"), false)
	metrics := NewMetrics()
	p, merger := newTestPipeline(s, metrics, 3)

	broken := crawler.AdapterFunc(func(context.Context, string) (crawler.Page, error) {
		return crawler.Page{}, crawler.Permanent(errors.New("unexpected page structure"))
	})
	panicking := crawler.AdapterFunc(func(context.Context, string) (crawler.Page, error) {
		panic("nil selection")
	})

	report, err := p.Run(ctx, []Source{
		{Name: "broken", Company: "Broken", Adapter: broken},
		{Name: "panicking", Company: "Panicking", Adapter: panicking},
		{Name: "healthy", Company: "Healthy", Adapter: pages([]models.RawRecord{raw("ok", "2025-05-05"), {Title: "", Link: "https://x"}})},
		{Name: "unwired", Company: "Unwired"},
	})
	require.NoError(t, err)

	byName := map[string]models.SourceReport{}
	for _, sr := range report.Sources {
		byName[sr.Source] = sr
	}

	assert.False(t, byName["broken"].Success)
	assert.Contains(t, byName["broken"].Error, "unexpected page structure")
	assert.False(t, byName["panicking"].Success)
	assert.Contains(t, byName["panicking"].Error, "nil selection")
	assert.False(t, byName["unwired"].Success)
	assert.True(t, byName["healthy"].Success)
	assert.Equal(t, 1, byName["healthy"].Added)
	assert.Equal(t, 1, byName["healthy"].Invalid)

	_, _, failed := report.Totals()
	assert.Equal(t, 3, failed)

	snap, err := merger.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, "Healthy", snap.Records[0].Company)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RecordsAdded.WithLabelValues("healthy")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SourceFailures.WithLabelValues("panicking")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.LastRunFailed), 0)
}

func TestRun_PartialResultsAreIngested(t *testing.T) {
	ctx := context.Background()
	s := store.NewCSVStore(filepath.Join(t.TempDir(), "master.csv"), false)
	p, merger := newTestPipeline(s, nil, 1)

	flaky := crawler.AdapterFunc(func(_ context.Context, token string) (crawler.Page, error) {
		if token == "" {
			return crawler.Page{Records: []models.RawRecord{raw("first", "2025-04-01")}, Next: "2"}, nil
		}

		return crawler.Page{}, &crawler.StatusError{URL: "https://acme.example/?page=2", Code: 503}
	})

	retry := config.RetryPolicy{MaxAttempts: 2, BackoffMultiplier: 1, TimeoutSec: 1}

	report, err := p.Run(ctx, []Source{{Name: "flaky", Company: "Acme", Adapter: flaky, Policy: crawler.Policy{Retry: &retry}}})
	require.NoError(t, err)

	sr := report.Sources[0]
	assert.False(t, sr.Success)
	assert.Equal(t, crawler.StopError, sr.StopReason)
	assert.Equal(t, 1, sr.Added)

	snap, err := merger.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Records, 1)
}

// failingStore loads fine but cannot be written.
type failingStore struct{}

func (failingStore) Load(context.Context) (models.Snapshot, error) { return models.Snapshot{}, nil }

func (failingStore) Replace(context.Context, models.Snapshot) error {
	return errors.Join(store.ErrPersist, os.ErrPermission)
}

func (failingStore) Close() error { return nil }

func TestRun_PersistenceFailureHaltsRun(t *testing.T) {
	p, _ := newTestPipeline(failingStore{}, nil, 1)

	var secondCalled atomic.Bool

	second := crawler.AdapterFunc(func(context.Context, string) (crawler.Page, error) {
		secondCalled.Store(true)

		return crawler.Page{Records: []models.RawRecord{raw("b", "2025-01-02")}}, nil
	})

	report, err := p.Run(context.Background(), []Source{
		{Name: "first", Company: "Acme", Adapter: pages([]models.RawRecord{raw("a", "2025-01-02")})},
		{Name: "second", Company: "Acme", Adapter: second},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrPersist)
	assert.False(t, report.Sources[0].Success)
	assert.False(t, secondCalled.Load(), "remaining sources must not run after a persistence failure")
}

func TestRun_ConcurrentSourcesShareOneStore(t *testing.T) {
	ctx := context.Background()
	s := store.NewCSVStore(filepath.Join(t.TempDir(), "master.csv"), false)
	p, merger := newTestPipeline(s, nil, 4)

	var sources []Source

	for i := range 8 {
		company := "Company" + strconv.Itoa(i)
		sources = append(sources, Source{
			Name:    company,
			Company: company,
			Adapter: pages(
				[]models.RawRecord{raw("one", "2025-06-01"), raw("two", "2025-06-02")},
				[]models.RawRecord{raw("three", "2025-06-03")},
			),
		})
	}

	report, err := p.Run(ctx, sources)
	require.NoError(t, err)

	added, _, failed := report.Totals()
	assert.Equal(t, 24, added)
	assert.Zero(t, failed)

	snap, err := merger.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Records, 24)
}

func TestMetrics_WriteTextfile(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveSource(models.SourceReport{Source: "nokia", Added: 3, Pages: 2, Success: true})

	path := filepath.Join(t.TempDir(), "presswatch.prom")
	require.NoError(t, metrics.WriteTextfile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `presswatch_crawl_records_added_total{source="nokia"} 3`)
	assert.Contains(t, string(content), `presswatch_crawl_pages_fetched_total{source="nokia"} 2`)
}

func TestBuildSources(t *testing.T) {
	cfg := &config.Config{
		Crawler: config.CrawlerConfig{
			Cutoff:   "2025-01-01",
			MaxPages: 50,
			Retry:    config.DefaultRetryPolicy(),
			Sources: []config.SourceConfig{
				{Name: "nokia", Company: "Nokia", Kind: config.KindRSS, URL: "https://nokia.example/rss", Enabled: true, SortedDesc: true, MaxPages: 5},
				{Name: "zte", Company: "ZTE", Kind: config.KindHTML, URL: "https://zte.example", HTML: config.HTMLSourceConfig{Item: "dd", Link: "a"}},
			},
		},
	}

	sources, err := BuildSources(cfg)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "Nokia", sources[0].Company)
	assert.True(t, sources[0].Policy.SortedDescending)
	assert.Equal(t, 5, sources[0].Policy.MaxPages)
	assert.True(t, sources[0].Policy.Cutoff.Equal(cutoff))
	assert.NotNil(t, sources[0].Fetcher)

	sources, err = BuildSources(cfg, "zte")
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, 50, sources[0].Policy.MaxPages)

	_, err = BuildSources(cfg, "missing")
	assert.ErrorIs(t, err, ErrUnknownSource)
}
