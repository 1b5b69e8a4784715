package normalize

import (
	"strings"
	"time"
)

// X12 date qualifiers: D8 is CCYYMMDD, RD8 a CCYYMMDD-CCYYMMDD range.
const (
	layoutD8  = "20060102"
	layoutISO = "2006-01-02"
)

// ParseDate reads a DTM/DTP date value. A D8 date, the start of an RD8
// range and an ISO date are accepted; anything else yields nil.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if start, _, ok := strings.Cut(s, "-"); ok && len(start) == len(layoutD8) {
		s = start
	}
	for _, layout := range []string{layoutD8, layoutISO} {
		if len(s) != len(layout) {
			continue
		}
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
