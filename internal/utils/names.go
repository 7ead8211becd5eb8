package utils

import (
	"strings"
	"unicode"
)

// CollapseSpaces trims s and folds internal whitespace runs to one space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// HeaderKey normalizes a spreadsheet column title: "Monthly Due " -> "monthly_due".
func HeaderKey(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(CollapseSpaces(h))
	return strings.Map(func(r rune) rune {
		switch {
		case r == ' ' || r == '-':
			return '_'
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			return r
		}
		return -1
	}, h)
}

// NullIfEmpty returns nil for blank strings and the trimmed value otherwise.
func NullIfEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
