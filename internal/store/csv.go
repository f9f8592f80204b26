package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"presswatch/internal/models"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVStore keeps the master snapshot in one CSV file.
//
// Files are read as UTF-8 (with or without BOM) and fall back to
// Windows-1252 when the bytes are not valid UTF-8. Writes always produce
// UTF-8 and replace the file through a rename.
type CSVStore struct {
	path     string
	writeBOM bool
}

// NewCSVStore creates a store for path. When writeBOM is set, files start
// with a UTF-8 byte order mark so spreadsheet tools detect the encoding.
func NewCSVStore(path string, writeBOM bool) *CSVStore {
	return &CSVStore{path: path, writeBOM: writeBOM}
}

// Path returns the file path.
func (s *CSVStore) Path() string {
	return s.path
}

// Load reads the file. A missing or empty file is an empty snapshot.
func (s *CSVStore) Load(_ context.Context) (models.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return models.Snapshot{}, nil
	}

	if err != nil {
		return models.Snapshot{}, fmt.Errorf("%w: read %s: %w", ErrPersist, s.path, err)
	}

	text, err := decode(data)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("%w: decode %s: %w", ErrPersist, s.path, err)
	}

	snap, err := parseCSV(text)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("%w: parse %s: %w", ErrPersist, s.path, err)
	}

	return snap, nil
}

func decode(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), nil
	}

	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}

	return string(out), nil
}

func parseCSV(text string) (models.Snapshot, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return models.Snapshot{}, nil
	}

	if err != nil {
		return models.Snapshot{}, err
	}

	var snap models.Snapshot

	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.TrimSpace(h)
		if !isCore(names[i]) && names[i] != "" {
			snap.AddColumn(names[i])
		}
	}

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return models.Snapshot{}, err
		}

		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}

		snap.Records = append(snap.Records, recordFromRow(names, row))
	}

	return snap, nil
}

func recordFromRow(names, row []string) models.Record {
	var rec models.Record

	for i, name := range names {
		if i >= len(row) || name == "" {
			continue
		}

		value := row[i]

		switch name {
		case models.ColumnID:
			rec.ID = value
		case models.ColumnCompany:
			rec.Company = value
		case models.ColumnTitle:
			rec.Title = value
		case models.ColumnLink:
			rec.Link = value
		case models.ColumnDate:
			rec.Date = value
		case models.ColumnFetchedAt:
			rec.FetchedAt = value
		default:
			if value == "" {
				continue
			}

			if rec.Fields == nil {
				rec.Fields = make(map[string]string)
			}

			rec.Fields[name] = value
		}
	}

	return rec
}

func isCore(name string) bool {
	for _, c := range models.CoreColumns {
		if c == name {
			return true
		}
	}

	return false
}

// Replace writes snap to a temporary file next to the store, syncs it and
// renames it over the store.
func (s *CSVStore) Replace(_ context.Context, snap models.Snapshot) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrPersist, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", ErrPersist, err)
	}

	tmpName := tmp.Name()

	if err := s.writeTo(tmp, snap); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("%w: write %s: %w", ErrPersist, tmpName, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("%w: close %s: %w", ErrPersist, tmpName, err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("%w: rename onto %s: %w", ErrPersist, s.path, err)
	}

	return nil
}

func (s *CSVStore) writeTo(f *os.File, snap models.Snapshot) error {
	buf := bufio.NewWriter(f)

	if s.writeBOM {
		if _, err := buf.Write(utf8BOM); err != nil {
			return err
		}
	}

	w := csv.NewWriter(buf)

	header := append(append([]string{}, models.CoreColumns...), snap.Columns...)
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range snap.Records {
		row := []string{r.ID, r.Company, r.Title, r.Link, r.Date, r.FetchedAt}
		for _, col := range snap.Columns {
			row = append(row, r.Field(col))
		}

		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()

	if err := w.Error(); err != nil {
		return err
	}

	if err := buf.Flush(); err != nil {
		return err
	}

	return f.Sync()
}

// Close is a no-op; the file is only open during Load and Replace.
func (s *CSVStore) Close() error {
	return nil
}
