package money

import (
	"math"
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want Cents
	}{
		{"62", 6200},
		{"62.00", 6200},
		{"62.5", 6250},
		{"0", 0},
		{"-15.00", -1500},
		{" 100.10 ", 10010},
		{"0.005", 1},
		{"12.344", 1234},
		{"1234567.89", 123456789},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		if err != nil {
			t.Errorf("ParseAmount(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAmount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	for _, in := range []string{"", "  ", "abc", "12.3.4", "$5", "100000000000000000", "-100000000000000000", "1e30"} {
		if _, err := ParseAmount(in); err == nil {
			t.Errorf("ParseAmount(%q): expected error", in)
		}
	}
}

func TestParseAmount_Bounds(t *testing.T) {
	c, err := ParseAmount("92233720368547758.07")
	if err != nil || c != Cents(math.MaxInt64) {
		t.Errorf("max: got %d %v", c, err)
	}
	c, err = ParseAmount("-92233720368547758.08")
	if err != nil || c != Cents(math.MinInt64) {
		t.Errorf("min: got %d %v", c, err)
	}
	if _, err := ParseAmount("92233720368547758.08"); err == nil {
		t.Error("one cent past max: expected error")
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		c    Cents
		want string
	}{
		{6200, "62.00"},
		{5, "0.05"},
		{-1500, "-15.00"},
		{0, "0.00"},
		{123456789, "1234567.89"},
	}
	for _, tt := range tests {
		if got := tt.c.String(); got != tt.want {
			t.Errorf("Cents(%d).String() = %q, want %q", tt.c, got, tt.want)
		}
	}
}

func TestNullableRoundTrip(t *testing.T) {
	if FromNullable(nil) != nil {
		t.Error("FromNullable(nil) should be nil")
	}
	if ToNullable(nil) != nil {
		t.Error("ToNullable(nil) should be nil")
	}
	v := int64(4200)
	c := FromNullable(&v)
	if c == nil || *c != 4200 {
		t.Fatalf("FromNullable: got %v", c)
	}
	if back := ToNullable(c); back == nil || *back != 4200 {
		t.Errorf("ToNullable: got %v", back)
	}
	if Format(nil) != "" {
		t.Error("Format(nil) should be empty")
	}
}

func TestSum(t *testing.T) {
	if got := Sum(6200, 1500, -200); got != 7500 {
		t.Errorf("Sum = %d, want 7500", got)
	}
	if got := Sum(); got != 0 {
		t.Errorf("Sum() = %d, want 0", got)
	}
}
