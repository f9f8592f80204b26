package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"presswatch/internal/logger"
	"presswatch/internal/models"

	"github.com/dgraph-io/badger/v4"
)

var (
	generationKey  = []byte("meta/generation")
	generationsKey = []byte("gen/")
)

// BadgerStore keeps the master snapshot in an embedded badger database.
//
// Every Replace writes a new generation of rows under its own key prefix,
// then switches meta/generation in a single transaction and drops every
// older prefix. Readers always see one complete generation.
type BadgerStore struct {
	db   *badger.DB
	log  *logger.Logger
	drop func(prefixes ...[]byte) error
}

// OpenBadgerStore opens (or creates) a database in dir.
func OpenBadgerStore(dir string, l *logger.Logger) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("%w: open badger %s: %w", ErrPersist, dir, err)
	}

	return newBadgerStore(db, l), nil
}

func newBadgerStore(db *badger.DB, l *logger.Logger) *BadgerStore {
	if l == nil {
		l = logger.NewNop()
	}

	return &BadgerStore{db: db, log: l, drop: db.DropPrefix}
}

// OpenInMemoryBadgerStore opens a database that lives only in memory.
func OpenInMemoryBadgerStore() (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("%w: open in-memory badger: %w", ErrPersist, err)
	}

	return newBadgerStore(db, nil), nil
}

func generationPrefix(gen uint64) []byte {
	return fmt.Appendf(nil, "gen/%020d/", gen)
}

func columnsKey(gen uint64) []byte {
	return append(generationPrefix(gen), "columns"...)
}

func rowPrefix(gen uint64) []byte {
	return append(generationPrefix(gen), "row/"...)
}

func rowKey(gen uint64, i int) []byte {
	return fmt.Appendf(rowPrefix(gen), "%010d", i)
}

func currentGeneration(txn *badger.Txn) (uint64, bool, error) {
	item, err := txn.Get(generationKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}

	if err != nil {
		return 0, false, err
	}

	val, err := item.ValueCopy(nil)
	if err != nil {
		return 0, false, err
	}

	if len(val) != 8 {
		return 0, false, fmt.Errorf("corrupt generation value of %d bytes", len(val))
	}

	return binary.BigEndian.Uint64(val), true, nil
}

// Load reads the current generation. An uninitialized database is an empty snapshot.
func (s *BadgerStore) Load(_ context.Context) (models.Snapshot, error) {
	var snap models.Snapshot

	err := s.db.View(func(txn *badger.Txn) error {
		gen, ok, err := currentGeneration(txn)
		if err != nil || !ok {
			return err
		}

		item, err := txn.Get(columnsKey(gen))
		if err != nil {
			return err
		}

		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap.Columns)
		}); err != nil {
			return err
		}

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := rowPrefix(gen)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec models.Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}

			snap.Records = append(snap.Records, rec)
		}

		return nil
	})
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("%w: badger load: %w", ErrPersist, err)
	}

	return snap, nil
}

// Replace writes snap as a new generation and switches to it. Once the switch
// has committed, failing to drop older generations only logs a warning; they
// are retried on the next Replace.
func (s *BadgerStore) Replace(_ context.Context, snap models.Snapshot) error {
	var prev uint64

	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		prev, _, err = currentGeneration(txn)

		return err
	})
	if err != nil {
		return fmt.Errorf("%w: badger read generation: %w", ErrPersist, err)
	}

	next := prev + 1

	// Leftovers of an interrupted write would otherwise leak into this generation.
	if err := s.db.DropPrefix(generationPrefix(next)); err != nil {
		return fmt.Errorf("%w: badger clear generation %d: %w", ErrPersist, next, err)
	}

	if err := s.writeGeneration(next, snap); err != nil {
		return fmt.Errorf("%w: badger write generation %d: %w", ErrPersist, next, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		val := make([]byte, 8)
		binary.BigEndian.PutUint64(val, next)

		return txn.Set(generationKey, val)
	})
	if err != nil {
		return fmt.Errorf("%w: badger switch generation: %w", ErrPersist, err)
	}

	s.dropStale(next)

	return nil
}

// dropStale removes every generation other than current.
func (s *BadgerStore) dropStale(current uint64) {
	stale, err := s.generations()
	if err != nil {
		s.log.Warn("badger stale generations not listed", "error", err)

		return
	}

	for _, gen := range stale {
		if gen == current {
			continue
		}

		if err := s.drop(generationPrefix(gen)); err != nil {
			s.log.Warn("badger stale generation not dropped", "generation", gen, "error", err)
		}
	}
}

// generations lists the generation numbers that still have keys.
func (s *BadgerStore) generations() ([]uint64, error) {
	var gens []uint64

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = generationsKey

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			if len(key) < len(generationsKey)+20 {
				continue
			}

			gen, err := strconv.ParseUint(string(key[len(generationsKey):len(generationsKey)+20]), 10, 64)
			if err != nil {
				continue
			}

			if len(gens) == 0 || gens[len(gens)-1] != gen {
				gens = append(gens, gen)
			}
		}

		return nil
	})

	return gens, err
}

func (s *BadgerStore) writeGeneration(gen uint64, snap models.Snapshot) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	columns := snap.Columns
	if columns == nil {
		columns = []string{}
	}

	cols, err := json.Marshal(columns)
	if err != nil {
		return err
	}

	if err := wb.Set(columnsKey(gen), cols); err != nil {
		return err
	}

	for i, rec := range snap.Records {
		val, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		if err := wb.Set(rowKey(gen, i), val); err != nil {
			return err
		}
	}

	return wb.Flush()
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
