package main

import (
	"context"
	"time"

	"presswatch/internal/digest"
	"presswatch/internal/enrich"

	"github.com/spf13/cobra"
)

type digestOptions struct {
	days   int
	dryRun bool
}

func newDigestCmd(a *app) *cobra.Command {
	opts := digestOptions{}

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "E-mail the press releases of the last days to subscribers.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("dry-run") {
				opts.dryRun = a.cfg.Digest.DryRun
			}

			return a.sendDigest(cmd.Context(), opts)
		},
	}

	cmd.Flags().IntVar(&opts.days, "days", 0, "window length in days; overrides config")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "render and log the digest without sending it")

	return cmd
}

func (a *app) sendDigest(ctx context.Context, opts digestOptions) error {
	days := a.cfg.Digest.WindowDays
	if opts.days > 0 {
		days = opts.days
	}

	merger, release, err := a.openMerger()
	if err != nil {
		return err
	}
	defer release()

	snap, err := merger.Snapshot(ctx)
	if err != nil {
		return err
	}

	d := digest.Build(snap.Records, time.Now().UTC(), days)
	a.log.Info("digest built", "window", d.Label, "records", len(d.Records))

	if len(d.Records) > 0 && a.cfg.Enrich.Endpoint != "" {
		a.summarizeDigest(ctx, &d)
	}

	recipients, err := digest.Recipients(a.cfg.Digest.Recipients, a.cfg.Digest.SubscribersFile)
	if err != nil {
		return err
	}

	if len(recipients) == 0 {
		a.log.Warn("no recipients, digest not sent")

		return nil
	}

	html, err := digest.RenderHTML(d, digest.Links{
		Dashboard:   a.cfg.Digest.DashboardURL,
		Unsubscribe: a.cfg.Digest.UnsubscribeURL,
	})
	if err != nil {
		return err
	}

	msg := digest.Message{
		From:    a.cfg.Digest.From,
		Subject: d.Subject(a.cfg.Digest.Subject),
		HTML:    html,
		Text:    digest.RenderText(d),
		To:      recipients,
	}

	var sender digest.Sender = digest.NewSMTPSender(a.cfg.Digest.SMTP)
	if opts.dryRun {
		sender = digest.NewDryRunSender(a.log)
	}

	if err := sender.Send(ctx, msg); err != nil {
		return err
	}

	a.log.Info("digest delivered", "recipients", len(recipients), "dry_run", opts.dryRun)

	return nil
}

// summarizeDigest adds an AI overview. Failures only cost the overview.
func (a *app) summarizeDigest(ctx context.Context, d *digest.Digest) {
	chat, err := enrich.NewChatClient(a.cfg.Enrich)
	if err != nil {
		a.log.Warn("digest summary unavailable", "error", err)

		return
	}

	summary, err := enrich.SummarizeDigest(ctx, chat, d.Records)
	if err != nil {
		a.log.Warn("digest summary unavailable", "error", err)

		return
	}

	d.Summary = summary
}
