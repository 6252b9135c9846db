package utils

import "strings"

// NormalizeLabel trims a user supplied label and collapses inner whitespace.
func NormalizeLabel(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// MatchOption returns the entry of options equal to raw ignoring case and
// surrounding whitespace.
func MatchOption(raw string, options []string) (string, bool) {
	normalized := NormalizeLabel(raw)
	for _, option := range options {
		if strings.EqualFold(option, normalized) {
			return option, true
		}
	}
	return "", false
}
