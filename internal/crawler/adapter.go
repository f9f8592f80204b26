// Package crawler drives source adapters page by page and decides when a
// crawl has gone far enough back in time.
package crawler

import (
	"context"

	"presswatch/internal/models"
)

// Adapter is a paginated producer of raw records for one source.
//
// The first page is requested with the empty token. A page with an empty
// Next token is the last one. Adapters know nothing about cutoffs,
// deduplication or persistence.
type Adapter interface {
	ListPage(ctx context.Context, token string) (Page, error)
}

// Page is one listing page as returned by an adapter.
type Page struct {
	Records []models.RawRecord
	Next    string
}

// AdapterFunc adapts a plain function to the Adapter interface.
type AdapterFunc func(ctx context.Context, token string) (Page, error)

// ListPage calls f.
func (f AdapterFunc) ListPage(ctx context.Context, token string) (Page, error) {
	return f(ctx, token)
}
