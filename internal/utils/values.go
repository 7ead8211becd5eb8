package utils

import (
	"strings"
)

// NormalizeAmount accepts "1234.5", "1,234.50", "1.234,50", "$ 100" and
// returns a plain decimal string. Blank input yields "0".
func NormalizeAmount(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "$€ ")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return "0"
	}

	dot, comma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case dot >= 0 && comma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0 && strings.Count(s, ",") == 1:
		s = strings.Replace(s, ",", ".", 1)
	case comma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	}
	return s
}

// ParseBoolLoose reads spreadsheet flags. ok is false for unrecognized input.
func ParseBoolLoose(s string) (v, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "si", "sí", "x", "active":
		return true, true
	case "0", "false", "no", "n", "inactive":
		return false, true
	}
	return false, false
}
