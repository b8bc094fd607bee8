package utils

import "strings"

// NormalizeID canonicalizes a DL or RC identifier: strips whitespace and
// hyphens, uppercases the rest. Must be applied identically at write time and
// lookup time or registry lookups silently miss.
func NormalizeID(raw string) string {
	normalized := strings.TrimSpace(raw)
	normalized = strings.ReplaceAll(normalized, " ", "")
	normalized = strings.ReplaceAll(normalized, "\t", "")
	normalized = strings.ReplaceAll(normalized, "-", "")
	return strings.ToUpper(normalized)
}
