package normalize

import (
	"fmt"

	"github.com/gyeh/eraload/internal/money"
)

// Amount converts a remittance monetary element to cents. A blank element
// is zero; an unparseable one is zero plus a non-nil error describing it so
// the caller can flag the item without failing it.
func Amount(field, raw string) (money.Cents, error) {
	if raw == "" {
		return 0, nil
	}
	c, err := money.ParseAmount(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return c, nil
}
