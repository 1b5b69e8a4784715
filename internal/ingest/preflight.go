package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gyeh/eraload/internal/model"
	"github.com/gyeh/eraload/internal/normalize"
)

// Preflight validates the request, hashes the content and records a pending
// upload. Identical content already uploaded for the same practice and
// period is reported in the log only; uploads are an append-only log.
func (s *Service) Preflight(ctx context.Context, f model.RemittanceFile) (*model.EraUpload, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	u := &model.EraUpload{
		ID:            uuid.New(),
		Filename:      strings.TrimSpace(f.Filename),
		PracticeID:    strings.TrimSpace(f.PracticeID),
		Month:         f.Period.Month,
		Year:          f.Period.Year,
		ContentSHA256: normalize.ContentHash(f.Content),
	}
	if err := s.store.CreatePending(ctx, u, f.Content); err != nil {
		return nil, &PipelineError{Phase: PhasePreflight, Err: fmt.Errorf("register upload: %w", err)}
	}

	log := s.log.With().Str("upload_id", u.ID.String()).Logger()
	log.Info().
		Str("file", u.Filename).
		Str("practice_id", u.PracticeID).
		Str("period", f.Period.String()).
		Str("sha256", u.ContentSHA256).
		Int("bytes", len(f.Content)).
		Msg("upload registered")

	dups, err := s.store.FindDuplicates(ctx, u.PracticeID, f.Period, u.ContentSHA256, u.ID)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("duplicate check failed (non-fatal)")
	case len(dups) > 0:
		ids := make([]string, len(dups))
		for i, id := range dups {
			ids[i] = id.String()
		}
		log.Warn().Strs("previous_uploads", ids).Msg("identical file already uploaded for this practice and period")
	}
	return u, nil
}
