// Package normalizer converts raw announcements into canonical records.
package normalizer

import (
	"fmt"

	"presswatch/internal/models"
)

// Processor validates and canonicalizes batches of raw records.
type Processor struct {
	validator     *Validator
	canonicalizer *Canonicalizer
}

// ProcessResult holds the canonical records of a batch and the rejected rows.
type ProcessResult struct {
	Records []models.Record
	Invalid []error
}

// NewProcessor creates a new processor instance.
func NewProcessor() *Processor {
	return &Processor{
		validator:     NewValidator(),
		canonicalizer: NewCanonicalizer(),
	}
}

// NewProcessorWithCanonicalizer creates a processor around an existing canonicalizer.
func NewProcessorWithCanonicalizer(c *Canonicalizer) *Processor {
	return &Processor{
		validator:     NewValidator(),
		canonicalizer: c,
	}
}

// Process canonicalizes every valid raw record, preserving input order.
func (p *Processor) Process(raws []models.RawRecord, company string) ProcessResult {
	result := ProcessResult{
		Records: make([]models.Record, 0, len(raws)),
	}

	for i, raw := range raws {
		if err := p.validator.Validate(raw); err != nil {
			result.Invalid = append(result.Invalid, fmt.Errorf("%w at index %d", err, i))

			continue
		}

		result.Records = append(result.Records, p.canonicalizer.Canonicalize(raw, company))
	}

	return result
}
