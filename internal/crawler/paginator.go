package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"presswatch/internal/config"
	"presswatch/internal/logger"
	"presswatch/internal/models"
	"presswatch/internal/normalizer"
)

// ErrPageFetch wraps the error of a page that could not be fetched.
var ErrPageFetch = errors.New("page fetch failed")

// DefaultMaxPages bounds a crawl whose policy does not set MaxPages.
const DefaultMaxPages = config.DefaultMaxPages

// Stop reasons.
const (
	StopCutoff        = "cutoff"
	StopExhausted     = "exhausted"
	StopMaxPages      = "max_pages"
	StopRepeatedToken = "repeated_token"
	StopError         = "error"
	StopCanceled      = "canceled"
)

// Policy controls how far back a crawl goes.
type Policy struct {
	// Cutoff is the oldest date kept. The zero time keeps everything.
	Cutoff time.Time
	// Retry bounds the attempts made for each page. Nil means one attempt.
	Retry *config.RetryPolicy
	// MaxPages bounds every crawl; <= 0 means DefaultMaxPages.
	MaxPages int
	// StopWindow is how many trailing records of a page may trigger a stop.
	// 0 means any record on the page.
	StopWindow int
	// SortedDescending enables stopping once an old record is seen.
	SortedDescending bool
	// DropUnparsed discards records whose date could not be parsed when a
	// cutoff is set.
	DropUnparsed bool
}

// Result is the outcome of one Collect call. Records gathered before an
// error are kept.
type Result struct {
	Err        error
	StopReason string
	Records    []models.RawRecord
	Pages      int
	Seen       int
	Discarded  int
	Unparsed   int
}

// Controller drives an adapter across its pages.
type Controller struct {
	log *logger.Logger
}

// NewController creates a controller.
func NewController(l *logger.Logger) *Controller {
	if l == nil {
		l = logger.NewNop()
	}

	return &Controller{log: l}
}

// Collect requests pages from a until the policy says stop, the adapter runs
// out of pages, a page fails after its retries, or ctx is done.
func (c *Controller) Collect(ctx context.Context, a Adapter, policy Policy) Result {
	var res Result

	maxPages := policy.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	seenTokens := map[string]bool{"": true}
	token := ""

	for {
		if err := ctx.Err(); err != nil {
			res.StopReason = StopCanceled
			res.Err = err

			return res
		}

		var page Page

		err := Retry(ctx, policy.Retry, func(attempt int) error {
			var err error

			page, err = a.ListPage(ctx, token)
			if err != nil {
				c.log.Debug("page attempt failed", "page", res.Pages+1, "attempt", attempt, "error", err)
			}

			return err
		})
		if err != nil {
			res.StopReason = StopError
			if ctx.Err() != nil {
				res.StopReason = StopCanceled
			}

			res.Err = fmt.Errorf("%w: page %d: %w", ErrPageFetch, res.Pages+1, err)

			return res
		}

		res.Pages++

		stop := c.evaluate(page.Records, policy, &res)

		c.log.Debug("page evaluated",
			"page", res.Pages,
			"records", len(page.Records),
			"kept", len(res.Records),
			"stop", stop,
		)

		switch {
		case stop:
			res.StopReason = StopCutoff
		case page.Next == "":
			res.StopReason = StopExhausted
		case seenTokens[page.Next]:
			res.StopReason = StopRepeatedToken
		case res.Pages >= maxPages:
			res.StopReason = StopMaxPages
		}

		if res.StopReason != "" {
			return res
		}

		seenTokens[page.Next] = true
		token = page.Next
	}
}

// evaluate classifies every record of a page, appending the kept ones to res,
// and reports whether the crawl should stop after this page.
func (c *Controller) evaluate(records []models.RawRecord, policy Policy, res *Result) bool {
	stop := false
	n := len(records)

	for i, raw := range records {
		res.Seen++

		date, parsed := normalizer.ParseISODate(normalizer.NormalizeDate(raw.DateText))
		if !parsed {
			res.Unparsed++
		}

		switch {
		case policy.Cutoff.IsZero():
		case !parsed:
			if policy.DropUnparsed {
				res.Discarded++

				continue
			}
		case date.Before(policy.Cutoff):
			res.Discarded++

			if policy.SortedDescending && inStopWindow(i, n, policy.StopWindow) {
				stop = true
			}

			continue
		}

		res.Records = append(res.Records, raw)
	}

	return stop
}

func inStopWindow(i, n, window int) bool {
	return window <= 0 || i >= n-window
}
