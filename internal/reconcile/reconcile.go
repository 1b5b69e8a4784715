// Package reconcile reduces persisted line items into period summaries.
package reconcile

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gyeh/eraload/internal/model"
	"github.com/gyeh/eraload/internal/money"
	"github.com/gyeh/eraload/internal/store"
)

// Summarize reduces items into a Summary. The result does not depend on
// item order, apart from the order of Discrepancies, which follows the
// input and carries no meaning.
//
// TotalPaid covers every item. TotalSystemRevenue and TotalVariance cover
// only items with a known expected amount, so unknown codes never count as
// zero expected revenue.
func Summarize(items []model.LineItem) model.Summary {
	s := model.Summary{Discrepancies: []model.Discrepancy{}}
	uploads := make(map[uuid.UUID]struct{})

	var paidKnown money.Cents
	for i := range items {
		it := &items[i]
		uploads[it.UploadID] = struct{}{}
		s.LineItemCount++
		s.TotalPaid += it.PaidCents

		if it.SystemRevenueCents == nil {
			continue
		}
		s.TotalSystemRevenue += *it.SystemRevenueCents
		paidKnown += it.PaidCents

		if it.VarianceCents != nil && *it.VarianceCents != 0 {
			s.Discrepancies = append(s.Discrepancies, model.Discrepancy{
				UploadID:    it.UploadID,
				LineItemID:  it.ID,
				PatientName: it.PatientName,
				CPTCode:     it.CPTCode,
				ProgramType: it.ProgramType,
				Paid:        it.PaidCents,
				Expected:    *it.SystemRevenueCents,
				Variance:    *it.VarianceCents,
			})
		}
	}
	s.TotalVariance = paidKnown - s.TotalSystemRevenue
	s.DiscrepancyCount = len(s.Discrepancies)
	s.UploadCount = len(uploads)
	return s
}

// LineItemSource reads the line items of processed uploads in scope.
// *store.Store implements it.
type LineItemSource interface {
	PeriodLineItems(ctx context.Context, f store.Filter) ([]model.LineItem, error)
}

// Aggregator produces summaries from persisted uploads.
type Aggregator struct {
	src LineItemSource
	log zerolog.Logger
}

// NewAggregator creates an Aggregator over src.
func NewAggregator(src LineItemSource, log zerolog.Logger) *Aggregator {
	return &Aggregator{src: src, log: log.With().Str("component", "reconcile").Logger()}
}

// Reconcile summarizes all processed uploads matching f. Pending and
// parse_errors uploads are never in scope.
func (a *Aggregator) Reconcile(ctx context.Context, f store.Filter) (model.Summary, error) {
	items, err := a.src.PeriodLineItems(ctx, f)
	if err != nil {
		return model.Summary{}, fmt.Errorf("reconcile: %w", err)
	}
	s := Summarize(items)
	a.log.Debug().
		Int("uploads", s.UploadCount).
		Int("line_items", s.LineItemCount).
		Int("discrepancies", s.DiscrepancyCount).
		Str("total_variance", s.TotalVariance.String()).
		Msg("reconciliation computed")
	return s, nil
}

// Items returns the in-scope line items, for exports.
func (a *Aggregator) Items(ctx context.Context, f store.Filter) ([]model.LineItem, error) {
	items, err := a.src.PeriodLineItems(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("reconcile items: %w", err)
	}
	return items, nil
}
