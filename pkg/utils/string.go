package utils

import "strings"

// StringHelper provides string utility functions.
type StringHelper struct{}

// NewStringHelper creates a new string helper.
func NewStringHelper() *StringHelper {
	return &StringHelper{}
}

// NormalizeWhitespace replaces multiple whitespace with single space.
func (s *StringHelper) NormalizeWhitespace(str string) string {
	return strings.Join(strings.Fields(str), " ")
}

// TruncateString truncates str to at most maxRunes runes, appending "..." when cut.
func (s *StringHelper) TruncateString(str string, maxRunes int) string {
	runes := []rune(str)
	if maxRunes <= 0 || len(runes) <= maxRunes {
		return str
	}

	return string(runes[:maxRunes]) + "..."
}
