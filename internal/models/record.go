// Package models defines data structures shared by the crawler, normalizer and store.
package models

// Core store columns, in file order.
const (
	ColumnID        = "id"
	ColumnCompany   = "company"
	ColumnTitle     = "title"
	ColumnLink      = "link"
	ColumnDate      = "date"
	ColumnFetchedAt = "fetched_at"
)

// FetchedAtLayout is the layout of Record.FetchedAt.
const FetchedAtLayout = "2006-01-02 15:04:05"

// CoreColumns lists the columns every store row carries.
var CoreColumns = []string{ColumnID, ColumnCompany, ColumnTitle, ColumnLink, ColumnDate, ColumnFetchedAt}

// RawRecord is a candidate announcement as produced by a source adapter.
type RawRecord struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	DateText string `json:"dateText"`
}

// Record is a canonical press release as persisted in the master store.
type Record struct {
	Fields    map[string]string `json:"fields,omitempty"`
	ID        string            `json:"id"`
	Company   string            `json:"company"`
	Title     string            `json:"title"`
	Link      string            `json:"link"`
	Date      string            `json:"date"`
	FetchedAt string            `json:"fetchedAt"`
}

// Key is the deduplication identity of a record.
type Key struct {
	Company string
	Title   string
}

// Key returns the (company, title) pair of the record.
func (r Record) Key() Key {
	return Key{Company: r.Company, Title: r.Title}
}

// Field returns a derived field value, or "" when absent.
func (r Record) Field(name string) string {
	if r.Fields == nil {
		return ""
	}

	return r.Fields[name]
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r.Fields != nil {
		fields := make(map[string]string, len(r.Fields))
		for k, v := range r.Fields {
			fields[k] = v
		}

		r.Fields = fields
	}

	return r
}

// Snapshot is the whole content of a master store at one point in time.
type Snapshot struct {
	// Columns holds the derived column names in file order.
	Columns []string
	Records []Record
}

// HasColumn reports whether the snapshot carries the derived column.
func (s *Snapshot) HasColumn(name string) bool {
	for _, c := range s.Columns {
		if c == name {
			return true
		}
	}

	return false
}

// AddColumn appends a derived column if it is not present yet.
func (s *Snapshot) AddColumn(name string) {
	if !s.HasColumn(name) {
		s.Columns = append(s.Columns, name)
	}
}
