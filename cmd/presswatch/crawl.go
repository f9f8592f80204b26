package main

import (
	"context"
	"fmt"

	"presswatch/internal/config"
	"presswatch/internal/crawler"
	"presswatch/internal/models"
	"presswatch/internal/normalizer"
	"presswatch/internal/pipeline"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type crawlOptions struct {
	cutoff      string
	metricsFile string
	sources     []string
}

func newCrawlCmd(a *app) *cobra.Command {
	opts := crawlOptions{}

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl enabled sources and append new press releases to the master store.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := a.crawl(cmd.Context(), opts)
			printRunReport(report)

			return err
		},
	}

	cmd.Flags().StringSliceVarP(&opts.sources, "source", "s", nil, "crawl only these sources (runs them even when disabled)")
	cmd.Flags().StringVar(&opts.cutoff, "cutoff", "", "global cutoff date YYYY-MM-DD; overrides config")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus textfile metrics here; overrides config")

	return cmd
}

func (a *app) crawl(ctx context.Context, opts crawlOptions) (models.RunReport, error) {
	if opts.cutoff != "" {
		if _, err := config.ParseCutoff(opts.cutoff); err != nil {
			return models.RunReport{}, err
		}

		a.cfg.Crawler.Cutoff = opts.cutoff
	}

	sources, err := pipeline.BuildSources(a.cfg, opts.sources...)
	if err != nil {
		return models.RunReport{}, err
	}

	if len(sources) == 0 {
		return models.RunReport{}, config.ErrNoEnabledSources
	}

	merger, release, err := a.openMerger()
	if err != nil {
		return models.RunReport{}, err
	}
	defer release()

	metrics := pipeline.NewMetrics()

	p := pipeline.NewPipelineWithDeps(
		crawler.NewController(a.log),
		normalizer.NewProcessor(),
		merger,
		metrics,
		a.log,
		a.cfg.Crawler.Concurrency,
	)

	a.log.Info("crawl started", "sources", len(sources), "cutoff", a.cfg.Crawler.Cutoff)

	report, runErr := p.Run(ctx, sources)

	metricsFile := a.cfg.Crawler.MetricsFile
	if opts.metricsFile != "" {
		metricsFile = opts.metricsFile
	}

	if metricsFile != "" {
		if err := metrics.WriteTextfile(metricsFile); err != nil {
			a.log.Warn("metrics not written", "error", err)
		}
	}

	return report, runErr
}

func printRunReport(report models.RunReport) {
	if len(report.Sources) == 0 {
		return
	}

	t := newTable()
	t.AppendHeader(table.Row{"Source", "Pages", "Kept", "Added", "Dups", "Stop", "Status"})

	for _, s := range report.Sources {
		status := "ok"
		if !s.Success {
			status = "failed: " + s.Error
		}

		t.AppendRow(table.Row{s.Source, s.Pages, s.Kept, s.Added, s.Duplicates, s.StopReason, status})
	}

	added, dups, failed := report.Totals()
	t.AppendFooter(table.Row{"Total", "", "", added, dups, "", fmt.Sprintf("%d failed", failed)})
	t.Render()
}
