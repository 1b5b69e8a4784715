package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gyeh/eraload/internal/model"
)

// Finalize persists line items and totals and marks the upload processed,
// atomically. The totals are checked against the items before writing.
func Finalize(ctx context.Context, st UploadStore, log zerolog.Logger, id uuid.UUID, totals model.Totals, warnings []string, items []model.LineItem) (time.Time, error) {
	if totals.MatchedClaims+totals.UnmatchedClaims != len(items) {
		return time.Time{}, fmt.Errorf("totals cover %d items, have %d",
			totals.MatchedClaims+totals.UnmatchedClaims, len(items))
	}

	processedAt, err := st.Finalize(ctx, id, totals, warnings, items)
	if err != nil {
		return time.Time{}, fmt.Errorf("finalize upload: %w", err)
	}
	log.Debug().Int("line_items", len(items)).Msg("line items committed")
	return processedAt, nil
}
