package model

import (
	"fmt"
	"strings"
)

// Month is one of the twelve three-letter billing month codes.
type Month string

var months = []Month{"JAN", "FEB", "MAR", "APR", "MAY", "JUN", "JUL", "AUG", "SEP", "OCT", "NOV", "DEC"}

// AllMonths returns the month codes in calendar order.
func AllMonths() []Month {
	out := make([]Month, len(months))
	copy(out, months)
	return out
}

// ParseMonth accepts a month code in any case.
func ParseMonth(s string) (Month, error) {
	m := Month(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range months {
		if m == known {
			return m, nil
		}
	}
	return "", &ValidationError{Field: "month", Msg: fmt.Sprintf("must be one of JAN..DEC, got %q", s)}
}

// Number returns 1..12, or 0 for an invalid month.
func (m Month) Number() int {
	for i, known := range months {
		if m == known {
			return i + 1
		}
	}
	return 0
}

// Period is a billing month within a year.
type Period struct {
	Month Month `json:"month"`
	Year  int   `json:"year"`
}

// NewPeriod validates month and year.
func NewPeriod(month string, year int) (Period, error) {
	m, err := ParseMonth(month)
	if err != nil {
		return Period{}, err
	}
	p := Period{Month: m, Year: year}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// Validate checks that the period has a known month and a four-digit year.
func (p Period) Validate() error {
	if p.Month.Number() == 0 {
		return &ValidationError{Field: "month", Msg: fmt.Sprintf("must be one of JAN..DEC, got %q", p.Month)}
	}
	if p.Year < 1900 || p.Year > 9999 {
		return &ValidationError{Field: "year", Msg: fmt.Sprintf("must be a four-digit year, got %d", p.Year)}
	}
	return nil
}

func (p Period) String() string {
	return fmt.Sprintf("%s %d", p.Month, p.Year)
}

// ValidationError reports a malformed request field. It is raised before
// any processing begins.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}
