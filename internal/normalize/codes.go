package normalize

import (
	"regexp"
	"strings"
)

var nonAlphanumeric = regexp.MustCompile(`[^A-Za-z0-9]`)

// NormalizeCode trims whitespace, uppercases, and strips non-alphanumeric
// characters from a procedure code. Returns "" when nothing is left.
func NormalizeCode(v string) string {
	s := strings.TrimSpace(v)
	if s == "" {
		return ""
	}
	s = strings.ToUpper(s)
	return nonAlphanumeric.ReplaceAllString(s, "")
}

// procedureQualifiers are the SVC01-1 product/service id qualifiers that
// carry a CPT/HCPCS code.
var procedureQualifiers = map[string]bool{
	"HC": true, // HCPCS / CPT
	"AD": true, // ADA
	"ER": true, // jurisdiction specific
	"WK": true, // advanced billing concepts
	"N4": true, // NDC
	"NU": true, // revenue code
}

// SplitProcedure splits composite SVC01 parts ("HC", "99490", "25") into a
// normalized code and its modifiers. A leading qualifier is optional.
func SplitProcedure(parts []string) (code string, modifiers []string) {
	if len(parts) == 0 {
		return "", nil
	}
	if len(parts) > 1 && procedureQualifiers[strings.ToUpper(strings.TrimSpace(parts[0]))] {
		parts = parts[1:]
	}
	code = NormalizeCode(parts[0])
	for _, m := range parts[1:] {
		if m = NormalizeCode(m); m != "" {
			modifiers = append(modifiers, m)
		}
	}
	return code, modifiers
}
