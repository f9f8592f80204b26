package normalizer

import (
	"strings"
	"time"

	"presswatch/internal/models"

	"github.com/google/uuid"
)

// Canonicalizer turns raw adapter records into canonical store records.
type Canonicalizer struct {
	newID func() string
	now   func() time.Time
}

// NewCanonicalizer creates a canonicalizer using random UUIDs and the wall clock.
func NewCanonicalizer() *Canonicalizer {
	return &Canonicalizer{
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// NewCanonicalizerWithDeps creates a canonicalizer with injected id and clock sources.
func NewCanonicalizerWithDeps(newID func() string, now func() time.Time) *Canonicalizer {
	return &Canonicalizer{
		newID: newID,
		now:   now,
	}
}

// Canonicalize builds a record for raw under the given company. raw is not modified.
func (c *Canonicalizer) Canonicalize(raw models.RawRecord, company string) models.Record {
	return models.Record{
		ID:        c.newID(),
		Company:   ResolveCompany(company),
		Title:     strings.TrimSpace(raw.Title),
		Link:      strings.TrimSpace(raw.Link),
		Date:      NormalizeDate(raw.DateText),
		FetchedAt: c.now().Format(models.FetchedAtLayout),
	}
}

// ResolveCompany collapses whitespace in a configured company name.
func ResolveCompany(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
