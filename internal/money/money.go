package money

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Cents is a fixed-point amount in hundredths of a dollar. All engine
// arithmetic happens on Cents; dollars exist only in String/Dollars output.
type Cents int64

var (
	minCents = decimal.NewFromInt(math.MinInt64)
	maxCents = decimal.NewFromInt(math.MaxInt64)
)

// ParseAmount converts a remittance decimal string ("62", "62.5", "-15.00")
// into Cents. Values with more than two fractional digits are rounded half
// away from zero. Amounts that do not fit in int64 cents are rejected.
func ParseAmount(s string) (Cents, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return FromDecimal(d)
}

// FromDecimal converts a dollar decimal into Cents.
func FromDecimal(d decimal.Decimal) (Cents, error) {
	c := d.Round(2).Shift(2)
	if c.LessThan(minCents) || c.GreaterThan(maxCents) {
		return 0, fmt.Errorf("amount %s out of range", d.String())
	}
	return Cents(c.IntPart()), nil
}

// Decimal returns the amount as a dollar decimal.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// String renders the amount as dollars with two decimals, e.g. "-15.00".
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// Int64 returns the raw cent count.
func (c Cents) Int64() int64 {
	return int64(c)
}

// Ptr returns a pointer to a copy of c.
func Ptr(c Cents) *Cents {
	return &c
}

// FromNullable converts a nullable int64 column value.
func FromNullable(v *int64) *Cents {
	if v == nil {
		return nil
	}
	c := Cents(*v)
	return &c
}

// ToNullable converts back to a nullable int64 for persistence.
func ToNullable(c *Cents) *int64 {
	if c == nil {
		return nil
	}
	v := int64(*c)
	return &v
}

// Format renders a nullable amount; nil renders as "".
func Format(c *Cents) string {
	if c == nil {
		return ""
	}
	return c.String()
}

// Sum adds all amounts.
func Sum(vals ...Cents) Cents {
	var total Cents
	for _, v := range vals {
		total += v
	}
	return total
}
