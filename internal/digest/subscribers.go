package digest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// ErrNoEmailColumn is returned when a subscribers file has no email column.
var ErrNoEmailColumn = errors.New("subscribers file has no email column")

// LoadSubscribers reads an "email,active" CSV and returns the active
// addresses, sorted and without duplicates. A missing active column or an
// empty active cell counts as active.
func LoadSubscribers(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open subscribers file: %w", err)
	}
	defer f.Close()

	return readSubscribers(f)
}

func readSubscribers(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read subscribers header: %w", err)
	}

	emailIdx, activeIdx := -1, -1

	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "email":
			emailIdx = i
		case "active":
			activeIdx = i
		}
	}

	if emailIdx < 0 {
		return nil, ErrNoEmailColumn
	}

	var emails []string

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("failed to read subscribers: %w", err)
		}

		if emailIdx >= len(row) {
			continue
		}

		addr := strings.TrimSpace(row[emailIdx])
		if addr == "" {
			continue
		}

		if activeIdx >= 0 && activeIdx < len(row) && !isActive(row[activeIdx]) {
			continue
		}

		emails = append(emails, addr)
	}

	return dedupe(emails), nil
}

func isActive(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "1", "true", "yes", "active":
		return true
	default:
		return false
	}
}

// Recipients merges fixed recipients with the subscribers file, if any.
func Recipients(fixed []string, subscribersFile string) ([]string, error) {
	all := slices.Clone(fixed)

	if subscribersFile != "" {
		subs, err := LoadSubscribers(subscribersFile)
		if err != nil {
			return nil, err
		}

		all = append(all, subs...)
	}

	return dedupe(all), nil
}

func dedupe(emails []string) []string {
	seen := make(map[string]bool, len(emails))
	out := make([]string, 0, len(emails))

	for _, e := range emails {
		e = strings.TrimSpace(e)
		key := strings.ToLower(e)

		if e == "" || seen[key] {
			continue
		}

		seen[key] = true
		out = append(out, e)
	}

	slices.Sort(out)

	return out
}
