package enrich

import (
	"context"
	"fmt"
	"strings"

	"presswatch/internal/config"
	"presswatch/internal/logger"
	"presswatch/internal/models"
	"presswatch/internal/store"
	"presswatch/pkg/utils"
)

// retryChars bounds the page text of the second summary attempt.
const retryChars = 8000

const defaultPerspective = "our company"

// Stats counts what an enrichment run did.
type Stats struct {
	Candidates int
	Enriched   int
	Skipped    int
	Failed     int
}

func (s Stats) String() string {
	return fmt.Sprintf("Candidates: %d | Enriched: %d | Skipped: %d | Failed: %d",
		s.Candidates, s.Enriched, s.Skipped, s.Failed)
}

// Enricher summarizes stored records that have no summary yet.
type Enricher struct {
	chat    Completer
	pages   PageFetcher
	merger  *store.Merger
	log     *logger.Logger
	strings *utils.StringHelper
	cfg     config.EnrichConfig
}

// NewEnricher creates an enricher. l may be nil.
func NewEnricher(chat Completer, pages PageFetcher, merger *store.Merger, cfg config.EnrichConfig, l *logger.Logger) *Enricher {
	if l == nil {
		l = logger.NewNop()
	}

	return &Enricher{
		chat:    chat,
		pages:   pages,
		merger:  merger,
		log:     l,
		strings: utils.NewStringHelper(),
		cfg:     cfg,
	}
}

// Candidates returns the stored records whose summary field is blank.
func (e *Enricher) Candidates(snap models.Snapshot) []models.Record {
	var out []models.Record

	for _, r := range snap.Records {
		if strings.TrimSpace(r.Field(e.cfg.SummaryField)) == "" {
			out = append(out, r)
		}
	}

	return out
}

// Run enriches up to limit candidates (all when limit <= 0). Each record is
// written as soon as it is enriched, so an interrupted run keeps its progress.
// Per-record failures are logged and counted; only store errors are returned.
func (e *Enricher) Run(ctx context.Context, limit int) (Stats, error) {
	snap, err := e.merger.Snapshot(ctx)
	if err != nil {
		return Stats{}, err
	}

	candidates := e.Candidates(snap)
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	stats := Stats{Candidates: len(candidates)}

	for _, r := range candidates {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		log := e.log.With("company", r.Company, "title", r.Title)

		summary, impact, err := e.enrich(ctx, r)
		if err != nil {
			stats.Failed++
			log.Warn("enrichment failed", "error", err)

			continue
		}

		if summary == "" {
			stats.Skipped++
			log.Debug("no page text, skipped")

			continue
		}

		fields := map[string]string{e.cfg.SummaryField: summary}
		if impact != "" {
			fields[e.cfg.ImpactField] = impact
		}

		if _, err := e.merger.Annotate(ctx, []store.Annotation{{Key: r.Key(), Fields: fields}}); err != nil {
			return stats, err
		}

		stats.Enriched++
		log.Info("record enriched")
	}

	return stats, nil
}

func (e *Enricher) enrich(ctx context.Context, r models.Record) (summary, impact string, err error) {
	text, err := PageText(ctx, e.pages, r.Link, e.cfg.MaxChars)
	if err != nil {
		return "", "", err
	}

	if text == "" {
		return "", "", nil
	}

	summary, err = e.chat.Complete(ctx, SummaryPrompt(text))
	if err != nil {
		// Long pages sometimes exceed the model context; retry shorter.
		summary, err = e.chat.Complete(ctx, "Summarize this text in 3 sentences:\n\n"+e.strings.TruncateString(text, retryChars))
		if err != nil {
			return "", "", err
		}
	}

	perspective := e.cfg.Perspective
	if perspective == "" {
		perspective = defaultPerspective
	}

	impact, err = e.chat.Complete(ctx, ImpactPrompt(r.Company, summary, perspective))
	if err != nil {
		e.log.Warn("impact analysis failed", "title", r.Title, "error", err)

		return summary, "", nil
	}

	return summary, impact, nil
}

// SummaryPrompt asks for a short summary of a press release.
func SummaryPrompt(text string) string {
	return "Summarize the following press release in about 3 concise sentences. " +
		"Start with the summary directly.\n\nPress release:\n" + text
}

// ImpactPrompt asks how a summarized announcement affects perspective.
func ImpactPrompt(company, summary, perspective string) string {
	return fmt.Sprintf("The following is a summarized version of a press release from %s:\n\n%s\n\n"+
		"Based on this summary, analyze how this announcement could impact %s "+
		"competitively, strategically or technologically. Write 3 to 5 sentences "+
		"focusing on relevance, risks or opportunities.", company, summary, perspective)
}

// digestItems bounds the releases listed in a digest summary prompt.
const digestItems = 20

// SummarizeDigest asks for a short thematic overview of a digest's records.
func SummarizeDigest(ctx context.Context, chat Completer, records []models.Record) (string, error) {
	if len(records) == 0 {
		return "", nil
	}

	var sb strings.Builder

	sb.WriteString("Summarize these competitor press releases for an internal weekly digest. " +
		"Be specific and concise (1 to 2 short paragraphs) and group them by theme.\n\n")

	for i, r := range records {
		if i == digestItems {
			break
		}

		fmt.Fprintf(&sb, "- %s: %s (%s) %s\n", r.Company, r.Title, r.Date, r.Link)
	}

	return chat.Complete(ctx, sb.String())
}
