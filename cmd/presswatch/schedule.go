package main

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

// ErrNothingScheduled is returned when no schedule entry is configured.
var ErrNothingScheduled = errors.New("no schedule configured")

func newScheduleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run crawl, enrich and digest on their cron schedules until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.schedule(cmd.Context())
		},
	}
}

func (a *app) schedule(ctx context.Context) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	scheduled := 0

	for _, job := range a.scheduledJobs() {
		if job.spec == "" {
			continue
		}

		if _, err := c.AddFunc(job.spec, func() {
			if err := job.run(ctx); err != nil {
				a.log.Error("scheduled job failed", "job", job.name, "error", err)
			}
		}); err != nil {
			return err
		}

		scheduled++

		a.log.Info("job scheduled", "job", job.name, "spec", job.spec)
	}

	if scheduled == 0 {
		return ErrNothingScheduled
	}

	// Jobs may overlap each other; they must write through one Merger.
	release, err := a.shareMerger()
	if err != nil {
		return err
	}
	defer release()

	c.Start()
	<-ctx.Done()

	a.log.Info("stopping scheduler")
	<-c.Stop().Done()

	return nil
}

type scheduledJob struct {
	name string
	spec string
	run  func(context.Context) error
}

func (a *app) scheduledJobs() []scheduledJob {
	return []scheduledJob{
		{"crawl", a.cfg.Schedule.Crawl, func(ctx context.Context) error {
			report, err := a.crawl(ctx, crawlOptions{})
			a.log.Info("scheduled crawl finished", "summary", report.String())

			return err
		}},
		{"enrich", a.cfg.Schedule.Enrich, func(ctx context.Context) error {
			stats, err := a.enrich(ctx, 0)
			a.log.Info("scheduled enrich finished", "summary", stats.String())

			return err
		}},
		{"digest", a.cfg.Schedule.Digest, func(ctx context.Context) error {
			return a.sendDigest(ctx, digestOptions{dryRun: a.cfg.Digest.DryRun})
		}},
	}
}
