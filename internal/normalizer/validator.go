package normalizer

import (
	"errors"
	"strings"

	"presswatch/internal/models"
)

// Validation errors.
var (
	ErrMissingTitle = errors.New("raw record missing title")
	ErrMissingLink  = errors.New("raw record missing link")
)

// Validator checks raw records before canonicalization.
type Validator struct{}

// NewValidator creates a new validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks that the record carries a title and a link.
func (v *Validator) Validate(raw models.RawRecord) error {
	if strings.TrimSpace(raw.Title) == "" {
		return ErrMissingTitle
	}

	if strings.TrimSpace(raw.Link) == "" {
		return ErrMissingLink
	}

	return nil
}
