package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"presswatch/internal/logger"
	"presswatch/internal/models"
)

// Annotation sets derived fields on the stored row with the given key.
type Annotation struct {
	Fields map[string]string
	Key    models.Key
}

// Merger serializes every read-modify-write of one store.
type Merger struct {
	store Store
	log   *logger.Logger
	mu    sync.Mutex
}

// NewMerger creates a merger over store.
func NewMerger(store Store, l *logger.Logger) *Merger {
	if l == nil {
		l = logger.NewNop()
	}

	return &Merger{store: store, log: l}
}

// Snapshot returns the current store contents.
func (m *Merger) Snapshot(ctx context.Context) (models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.store.Load(ctx)
}

// Ingest merges incoming into the store. Nothing is written when no record
// survives deduplication.
func (m *Merger) Ingest(ctx context.Context, incoming []models.Record) (MergeStats, error) {
	if len(incoming) == 0 {
		return MergeStats{}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap, err := m.store.Load(ctx)
	if err != nil {
		return MergeStats{Incoming: len(incoming)}, err
	}

	merged, stats := Merge(snap.Records, incoming)
	if stats.Added == 0 {
		m.log.Debug("no new records, store left untouched", "incoming", stats.Incoming)

		return stats, nil
	}

	next := models.Snapshot{
		Columns: slices.Clone(snap.Columns),
		Records: merged,
	}

	for _, r := range merged[len(snap.Records):] {
		for name := range r.Fields {
			next.AddColumn(name)
		}
	}

	if err := m.store.Replace(ctx, next); err != nil {
		return stats, err
	}

	m.log.Info("store updated", "added", stats.Added, "duplicates", stats.Duplicates, "total", len(merged))

	return stats, nil
}

// Annotate writes derived fields onto existing rows. Core columns are never
// touched and unknown keys are ignored. It returns the number of rows changed.
func (m *Merger) Annotate(ctx context.Context, annotations []Annotation) (int, error) {
	if len(annotations) == 0 {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap, err := m.store.Load(ctx)
	if err != nil {
		return 0, err
	}

	index := make(map[models.Key]int, len(snap.Records))
	for i, r := range snap.Records {
		index[r.Key()] = i
	}

	changed := 0

	for _, a := range annotations {
		i, ok := index[a.Key]
		if !ok {
			continue
		}

		rec := snap.Records[i].Clone()
		if applyFields(&rec, a.Fields, &snap) {
			snap.Records[i] = rec
			changed++
		}
	}

	if changed == 0 {
		return 0, nil
	}

	if err := m.store.Replace(ctx, snap); err != nil {
		return 0, err
	}

	m.log.Info("store annotated", "rows", changed)

	return changed, nil
}

func applyFields(rec *models.Record, fields map[string]string, snap *models.Snapshot) bool {
	changed := false

	for name, value := range fields {
		if slices.Contains(models.CoreColumns, name) {
			continue
		}

		if rec.Fields == nil {
			rec.Fields = make(map[string]string)
		}

		if rec.Fields[name] == value {
			continue
		}

		rec.Fields[name] = value
		snap.AddColumn(name)
		changed = true
	}

	return changed
}

// Close closes the underlying store.
func (m *Merger) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Close(); err != nil {
		return fmt.Errorf("%w: close: %w", ErrPersist, err)
	}

	return nil
}
