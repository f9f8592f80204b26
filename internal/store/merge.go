// Package store persists the master record set and merges new crawl
// results into it without ever rewriting existing rows.
package store

import (
	"context"
	"errors"

	"presswatch/internal/models"
)

// ErrPersist wraps every failure to read or write a store.
var ErrPersist = errors.New("store persistence failed")

// Store holds one master snapshot. Replace must be atomic with respect to Load.
type Store interface {
	Load(ctx context.Context) (models.Snapshot, error)
	Replace(ctx context.Context, snap models.Snapshot) error
	Close() error
}

// MergeStats counts the outcome of one merge.
type MergeStats struct {
	Incoming int
	Added    int
	// Duplicates counts incoming rows whose key was already stored or
	// appeared earlier in the same batch.
	Duplicates int
}

// Merge appends the incoming records whose (company, title) key is not yet
// present. Existing rows keep their order and values; within incoming the
// first occurrence of a key wins. Neither argument is modified.
func Merge(existing, incoming []models.Record) ([]models.Record, MergeStats) {
	stats := MergeStats{Incoming: len(incoming)}

	keys := make(map[models.Key]struct{}, len(existing)+len(incoming))
	for _, r := range existing {
		keys[r.Key()] = struct{}{}
	}

	merged := make([]models.Record, len(existing), len(existing)+len(incoming))
	copy(merged, existing)

	for _, r := range incoming {
		k := r.Key()
		if _, dup := keys[k]; dup {
			stats.Duplicates++

			continue
		}

		keys[k] = struct{}{}
		merged = append(merged, r.Clone())
		stats.Added++
	}

	return merged, stats
}
