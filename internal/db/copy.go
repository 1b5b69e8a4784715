package db

import (
	"github.com/jackc/pgx/v5"

	"github.com/gyeh/eraload/internal/model"
)

// LineItemSource implements pgx.CopyFromSource over decoded line items,
// emitting values in model.LineItemColumns order.
type LineItemSource struct {
	items []model.LineItem
	idx   int
}

// NewLineItemSource creates a CopyFromSource over items. The slice is read,
// never modified.
func NewLineItemSource(items []model.LineItem) *LineItemSource {
	return &LineItemSource{items: items, idx: -1}
}

// Next advances to the next item.
func (s *LineItemSource) Next() bool {
	s.idx++
	return s.idx < len(s.items)
}

// Values returns the current item's values.
func (s *LineItemSource) Values() ([]any, error) {
	return s.items[s.idx].CopyValues(), nil
}

// Err always returns nil; the source is in memory.
func (s *LineItemSource) Err() error {
	return nil
}

var _ pgx.CopyFromSource = (*LineItemSource)(nil)
