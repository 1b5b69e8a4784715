package ingest

import (
	"context"

	"github.com/gyeh/eraload/internal/matcher"
	"github.com/gyeh/eraload/internal/model"
	"github.com/gyeh/eraload/internal/remit"
)

// PlanResult is what an upload would produce, computed without touching
// the store.
type PlanResult struct {
	Status model.UploadStatus
	Detail []string
	Result *remit.Result
	Stats  matcher.Stats
	Totals model.Totals
}

// Plan decodes and matches f without persisting anything. Oracle
// unavailability is returned as an error, as in Process.
func (s *Service) Plan(ctx context.Context, f model.RemittanceFile) (*PlanResult, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	res, _, err := Stage(f.Content, s.cfg)
	if err != nil {
		return &PlanResult{Status: model.StatusParseErrors, Detail: []string{err.Error()}}, nil
	}
	plan := &PlanResult{Status: res.Status(), Detail: res.WarningStrings(), Result: res}
	if plan.Status == model.StatusParseErrors {
		return plan, nil
	}

	stats, err := s.matcher.Match(ctx, f.PracticeID, f.Period, res.LineItems)
	if err != nil {
		return nil, &PipelineError{Phase: PhaseMatch, Err: err}
	}
	plan.Stats = stats
	plan.Totals = model.ComputeTotals(len(res.Claims), res.ClaimAdjustments(), res.LineItems)
	return plan, nil
}
