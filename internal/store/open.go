package store

import (
	"fmt"

	"presswatch/internal/config"
	"presswatch/internal/logger"
)

// Open returns the store configured by cfg. l may be nil.
func Open(cfg config.StoreConfig, l *logger.Logger) (Store, error) {
	switch cfg.Backend {
	case config.BackendCSV, "":
		return NewCSVStore(cfg.Path, cfg.WriteBOM), nil
	case config.BackendBadger:
		return OpenBadgerStore(cfg.Path, l)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidStoreBackend, cfg.Backend)
	}
}
