// Package pipeline wires adapters, the pagination controller, the
// canonicalizer and the store merger into one crawl run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"presswatch/internal/config"
	"presswatch/internal/crawler"
	"presswatch/internal/crawler/adapters"
	"presswatch/internal/logger"
	"presswatch/internal/models"
	"presswatch/internal/normalizer"
	"presswatch/internal/store"

	"golang.org/x/sync/errgroup"
)

// Pipeline errors.
var (
	ErrSourcePanic   = errors.New("source panicked")
	ErrUnknownSource = errors.New("unknown source")
)

// Source is one crawlable source with its adapter and stop policy.
type Source struct {
	Adapter crawler.Adapter
	// Fetcher is optional; when set its failed attempts are logged after the crawl.
	Fetcher *crawler.Fetcher
	Name    string
	Company string
	Policy  crawler.Policy
}

// Pipeline runs sources and merges their records into one store.
type Pipeline struct {
	controller  *crawler.Controller
	processor   *normalizer.Processor
	merger      *store.Merger
	metrics     *Metrics
	log         *logger.Logger
	concurrency int
}

// NewPipeline creates a pipeline with default collaborators.
func NewPipeline(merger *store.Merger, l *logger.Logger, concurrency int) *Pipeline {
	return NewPipelineWithDeps(crawler.NewController(l), normalizer.NewProcessor(), merger, nil, l, concurrency)
}

// NewPipelineWithDeps creates a pipeline with injected collaborators.
// metrics may be nil.
func NewPipelineWithDeps(
	controller *crawler.Controller,
	processor *normalizer.Processor,
	merger *store.Merger,
	metrics *Metrics,
	l *logger.Logger,
	concurrency int,
) *Pipeline {
	if l == nil {
		l = logger.NewNop()
	}

	if concurrency < 1 {
		concurrency = 1
	}

	return &Pipeline{
		controller:  controller,
		processor:   processor,
		merger:      merger,
		metrics:     metrics,
		log:         l,
		concurrency: concurrency,
	}
}

// Run crawls every source and ingests its records.
//
// Source failures are recorded in the report and do not stop other
// sources. A persistence failure cancels the remaining work and is
// returned together with the partial report.
func (p *Pipeline) Run(ctx context.Context, sources []Source) (models.RunReport, error) {
	report := models.RunReport{
		StartedAt: time.Now(),
		Sources:   make([]models.SourceReport, len(sources)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, src := range sources {
		g.Go(func() error {
			sr, err := p.runSource(gctx, src)
			report.Sources[i] = sr

			if p.metrics != nil {
				p.metrics.ObserveSource(sr)
			}

			return err
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	report.FinishedAt = time.Now()

	if p.metrics != nil {
		p.metrics.ObserveRun(report)
	}

	if err != nil {
		p.log.Error("run halted", "error", err)

		return report, err
	}

	p.log.Info("run finished", "summary", report.String())

	return report, nil
}

func (p *Pipeline) runSource(ctx context.Context, src Source) (sr models.SourceReport, err error) {
	start := time.Now()
	log := p.log.With("source", src.Name)

	sr = models.SourceReport{Source: src.Name, Company: src.Company}

	defer func() {
		if r := recover(); r != nil {
			sr.Success = false
			sr.Error = fmt.Sprintf("%v: %v", ErrSourcePanic, r)
			log.Error("source failed", "error", sr.Error)
		}

		sr.Duration = time.Since(start)
	}()

	if src.Adapter == nil {
		sr.Error = "no adapter"
		log.Error("source failed", "error", sr.Error)

		return sr, nil
	}

	res := p.controller.Collect(ctx, src.Adapter, src.Policy)

	if src.Fetcher != nil {
		src.Fetcher.Attempts().LogAttemptSummary(log)
	}

	sr.Pages = res.Pages
	sr.Candidates = res.Seen
	sr.Kept = len(res.Records)
	sr.Unparsed = res.Unparsed
	sr.StopReason = res.StopReason
	sr.Success = res.Err == nil

	if res.Err != nil {
		sr.Error = res.Err.Error()
		log.Warn("source stopped early", "error", res.Err, "pages", res.Pages, "kept", sr.Kept)
	}

	// The run was canceled or halted by another source's persistence failure.
	if ctx.Err() != nil {
		sr.Success = false
		sr.Error = ctx.Err().Error()

		return sr, nil
	}

	processed := p.processor.Process(res.Records, src.Company)
	sr.Invalid = len(processed.Invalid)

	for _, invalid := range processed.Invalid {
		log.Debug("record rejected", "error", invalid)
	}

	stats, err := p.merger.Ingest(ctx, processed.Records)
	if err != nil {
		sr.Success = false
		sr.Error = err.Error()

		return sr, fmt.Errorf("source %s: %w", src.Name, err)
	}

	sr.Added = stats.Added
	sr.Duplicates = stats.Duplicates

	log.Info("source done",
		"pages", sr.Pages,
		"candidates", sr.Candidates,
		"kept", sr.Kept,
		"added", sr.Added,
		"duplicates", sr.Duplicates,
		"stop", sr.StopReason,
	)

	return sr, nil
}

// BuildSources creates an adapter, fetcher and policy for every enabled
// source. Named sources are built even when disabled.
func BuildSources(cfg *config.Config, only ...string) ([]Source, error) {
	selected := cfg.GetEnabledSources()

	if len(only) > 0 {
		selected = nil

		for _, name := range only {
			sc, ok := cfg.GetSource(name)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
			}

			selected = append(selected, sc)
		}
	}

	sources := make([]Source, 0, len(selected))

	for _, sc := range selected {
		fetcher := crawler.NewFetcherWithConfig(&cfg.Crawler.Retry, cfg.Crawler.UserAgent, cfg.Crawler.RatePerSecond, sc.Headers)

		adapter, err := adapters.New(sc, fetcher)
		if err != nil {
			return nil, err
		}

		sources = append(sources, Source{
			Adapter: adapter,
			Fetcher: fetcher,
			Name:    sc.Name,
			Company: sc.Company,
			Policy: crawler.Policy{
				Cutoff:           cfg.EffectiveCutoff(sc),
				Retry:            &cfg.Crawler.Retry,
				MaxPages:         cfg.EffectiveMaxPages(sc),
				StopWindow:       sc.StopWindow,
				SortedDescending: sc.SortedDesc,
				DropUnparsed:     sc.DropUnparsed,
			},
		})
	}

	return sources, nil
}
