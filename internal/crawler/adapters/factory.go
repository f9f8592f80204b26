package adapters

import (
	"errors"
	"fmt"

	"presswatch/internal/config"
	"presswatch/internal/crawler"
)

// ErrUnknownKind is returned for a source kind with no adapter.
var ErrUnknownKind = errors.New("unknown source kind")

// New builds the adapter variant configured for src.
func New(src config.SourceConfig, fetcher *crawler.Fetcher) (crawler.Adapter, error) {
	switch src.Kind {
	case config.KindHTML:
		return NewHTMLAdapter(src, fetcher), nil
	case config.KindJSON:
		return NewJSONAdapter(src, fetcher), nil
	case config.KindRSS:
		return NewFeedAdapter(src, fetcher), nil
	default:
		return nil, fmt.Errorf("%w: %q (source %s)", ErrUnknownKind, src.Kind, src.Name)
	}
}
