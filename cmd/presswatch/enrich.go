package main

import (
	"context"
	"fmt"

	"presswatch/internal/crawler"
	"presswatch/internal/enrich"

	"github.com/spf13/cobra"
)

func newEnrichCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Fill AI summary and impact columns for records that have none.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := a.enrich(cmd.Context(), limit)
			fmt.Println(stats)

			return err
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "enrich at most n records (0 means all)")

	return cmd
}

func (a *app) enrich(ctx context.Context, limit int) (enrich.Stats, error) {
	chat, err := enrich.NewChatClient(a.cfg.Enrich)
	if err != nil {
		return enrich.Stats{}, err
	}

	merger, release, err := a.openMerger()
	if err != nil {
		return enrich.Stats{}, err
	}
	defer release()

	fetcher := crawler.NewFetcherWithConfig(&a.cfg.Crawler.Retry, a.cfg.Crawler.UserAgent, a.cfg.Crawler.RatePerSecond, nil)

	stats, err := enrich.NewEnricher(chat, fetcher, merger, a.cfg.Enrich, a.log).Run(ctx, limit)

	fetcher.Attempts().LogAttemptSummary(a.log)

	return stats, err
}
