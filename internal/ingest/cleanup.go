package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/gyeh/eraload/internal/feeschedule"
	"github.com/gyeh/eraload/internal/model"
	"github.com/gyeh/eraload/internal/store"
)

// GetUpload returns an upload with its line items in decode order.
func (s *Service) GetUpload(ctx context.Context, id uuid.UUID) (*model.EraUpload, []model.LineItem, error) {
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.store.LineItems(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return u, items, nil
}

// ListUploads returns uploads in scope, newest first.
func (s *Service) ListUploads(ctx context.Context, f store.Filter) ([]model.EraUpload, error) {
	return s.store.List(ctx, f)
}

// DeleteUpload removes an upload and, by cascade, its line items.
func (s *Service) DeleteUpload(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("upload_id", id.String()).Msg("upload deleted")
	return nil
}

// RetryReport summarizes a RetryPending sweep.
type RetryReport struct {
	Attempted    int
	Processed    int
	ParseErrors  int
	StillPending int
}

// RetryPending retries every upload pending for at least olderThan. The
// sweep stops early once the oracle is found unavailable; the remaining
// uploads are counted as still pending.
func (s *Service) RetryPending(ctx context.Context, olderThan time.Duration) (RetryReport, error) {
	var report RetryReport
	ids, err := s.store.ListPending(ctx, olderThan)
	if err != nil {
		return report, err
	}

	var errs []error
	for i, id := range ids {
		report.Attempted++
		u, err := s.RetryUpload(ctx, id)
		switch {
		case err == nil:
			if u.Status == model.StatusProcessed {
				report.Processed++
			} else {
				report.ParseErrors++
			}
		case errors.Is(err, store.ErrNotPending):
			// Finalized by a concurrent run.
		case errors.Is(err, feeschedule.ErrUnavailable):
			report.StillPending += len(ids) - i
			s.log.Warn().Int("remaining", len(ids)-i).Msg("fee schedule unavailable, stopping retry sweep")
			return report, err
		default:
			if u != nil && u.Status == model.StatusParseErrors {
				report.ParseErrors++
			}
			errs = append(errs, err)
		}
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
	}

	s.log.Info().
		Int("attempted", report.Attempted).
		Int("processed", report.Processed).
		Int("parse_errors", report.ParseErrors).
		Msg("retry sweep complete")
	return report, errors.Join(errs...)
}
