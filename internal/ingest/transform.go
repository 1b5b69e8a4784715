package ingest

import (
	"context"

	"github.com/gyeh/eraload/internal/matcher"
	"github.com/gyeh/eraload/internal/model"
)

// Transform annotates items with expected revenue, variance and match
// status for the upload's practice and period.
func Transform(ctx context.Context, m *matcher.Matcher, u *model.EraUpload, items []model.LineItem) (matcher.Stats, error) {
	return m.Match(ctx, u.PracticeID, u.Period(), items)
}
