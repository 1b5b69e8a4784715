package normalize

import (
	"regexp"
	"strings"
)

var multiSpace = regexp.MustCompile(`\s+`)

// NormalizeName lowercases, collapses whitespace, and trims the input.
// It is the key used to correlate remitted patient names with encounters.
func NormalizeName(v string) string {
	s := strings.TrimSpace(v)
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)
	return multiSpace.ReplaceAllString(s, " ")
}

// PersonName joins NM1 name parts (last, first, middle) into display order
// "FIRST MIDDLE LAST", skipping blanks.
func PersonName(last, first, middle string) string {
	var parts []string
	for _, p := range []string{first, middle, last} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return multiSpace.ReplaceAllString(strings.Join(parts, " "), " ")
}
