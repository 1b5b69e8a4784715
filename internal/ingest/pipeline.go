// Package ingest runs remittance files through the upload lifecycle:
// register pending, read, decode, match and finalize.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gyeh/eraload/internal/config"
	"github.com/gyeh/eraload/internal/feeschedule"
	"github.com/gyeh/eraload/internal/matcher"
	"github.com/gyeh/eraload/internal/model"
	"github.com/gyeh/eraload/internal/store"
)

// Pipeline phases, as reported in PipelineError and metrics.
const (
	PhasePreflight = "preflight"
	PhaseRead      = "read"
	PhaseDecode    = "decode"
	PhaseMatch     = "match"
	PhaseFinalize  = "finalize"
)

// detachedTimeout bounds the parse_errors write made after the caller's
// context is gone.
const detachedTimeout = 10 * time.Second

// PipelineError wraps an error with the phase where it occurred.
type PipelineError struct {
	Phase string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// UploadStore is the persistence the pipeline needs. *store.Store
// implements it.
type UploadStore interface {
	CreatePending(ctx context.Context, u *model.EraUpload, content []byte) error
	Finalize(ctx context.Context, id uuid.UUID, totals model.Totals, warnings []string, items []model.LineItem) (time.Time, error)
	MarkParseErrors(ctx context.Context, id uuid.UUID, claims int, detail []string) (time.Time, error)
	Get(ctx context.Context, id uuid.UUID) (*model.EraUpload, error)
	LineItems(ctx context.Context, id uuid.UUID) ([]model.LineItem, error)
	List(ctx context.Context, f store.Filter) ([]model.EraUpload, error)
	LoadPending(ctx context.Context, id uuid.UUID) (*model.EraUpload, []byte, error)
	ListPending(ctx context.Context, olderThan time.Duration) ([]uuid.UUID, error)
	FindDuplicates(ctx context.Context, practiceID string, p model.Period, sha256 string, exclude uuid.UUID) ([]uuid.UUID, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

var _ UploadStore = (*store.Store)(nil)

// Service is the upload lifecycle manager. Uploads are independent; the
// Service holds no per-upload state and is safe for concurrent use.
type Service struct {
	store   UploadStore
	matcher *matcher.Matcher
	cfg     *config.Config
	log     zerolog.Logger
}

// NewService wires a Service. cfg supplies the decode policy, the program
// types accepted from the oracle and the per-run timeout.
func NewService(st UploadStore, oracle feeschedule.Oracle, log zerolog.Logger, cfg *config.Config) *Service {
	return &Service{
		store:   st,
		matcher: matcher.New(oracle, log, matcher.WithPrograms(cfg.Programs())),
		cfg:     cfg,
		log:     log.With().Str("component", "ingest").Logger(),
	}
}

// CreateUpload validates f, records it as pending and processes it.
//
// A file that cannot be decoded is not an error: the returned upload has
// status parse_errors. When the fee schedule oracle is unavailable the
// pending upload is returned together with an error matching
// feeschedule.ErrUnavailable; RetryUpload picks it up later.
func (s *Service) CreateUpload(ctx context.Context, f model.RemittanceFile) (*model.EraUpload, error) {
	u, err := s.Preflight(ctx, f)
	if err != nil {
		return nil, err
	}
	if _, err := s.Process(ctx, u, f.Content); err != nil {
		return u, err
	}
	return u, nil
}

// RetryUpload re-runs the pipeline for a pending upload from its stored
// content. Uploads in any other state yield store.ErrNotPending.
func (s *Service) RetryUpload(ctx context.Context, id uuid.UUID) (*model.EraUpload, error) {
	u, content, err := s.store.LoadPending(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("upload_id", id.String()).Msg("retrying pending upload")
	if _, err := s.Process(ctx, u, content); err != nil {
		return u, err
	}
	return u, nil
}

// Process runs read, decode, match and finalize for a pending upload and
// updates u to reflect the outcome.
func (s *Service) Process(ctx context.Context, u *model.EraUpload, content []byte) (*model.ProcessSummary, error) {
	totalStart := time.Now()
	if s.cfg.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ProcessTimeout)
		defer cancel()
	}
	log := s.log.With().Str("upload_id", u.ID.String()).Logger()
	summary := &model.ProcessSummary{UploadID: u.ID, Status: model.StatusPending}

	// Phase 1+2: Read and decode
	decodeStart := time.Now()
	res, phase, err := Stage(content, s.cfg)
	summary.DurationDecode = time.Since(decodeStart)
	observePhase(PhaseDecode, summary.DurationDecode)
	if err != nil {
		log.Warn().Err(err).Str("phase", phase).Msg("remittance file rejected")
		return s.finishParseErrors(ctx, u, summary, 0, []string{err.Error()}, phase, totalStart)
	}
	summary.Claims = len(res.Claims)
	summary.LineItems = len(res.LineItems)
	summary.Warnings = len(res.Warnings)
	if len(res.LineItems) == 0 {
		log.Warn().Int("claims", len(res.Claims)).Msg("no line items decoded")
		return s.finishParseErrors(ctx, u, summary, len(res.Claims), res.WarningStrings(), PhaseDecode, totalStart)
	}

	items := res.LineItems
	for i := range items {
		items[i].ID = uuid.New()
		items[i].UploadID = u.ID
	}

	// Phase 3: Match
	matchStart := time.Now()
	stats, err := Transform(ctx, s.matcher, u, items)
	summary.DurationMatch = time.Since(matchStart)
	observePhase(PhaseMatch, summary.DurationMatch)
	if err != nil {
		if ctx.Err() != nil {
			return s.abandon(ctx, u, summary, len(res.Claims), PhaseMatch, err)
		}
		oracleUnavailable.Inc()
		log.Warn().Err(err).Msg("fee schedule unavailable, upload left pending")
		return summary, &PipelineError{Phase: PhaseMatch, Err: err}
	}
	summary.Matched = stats.Matched
	summary.Unmatched = stats.Unmatched
	summary.DistinctCodes = stats.DistinctCodes

	// Phase 4: Finalize
	finalizeStart := time.Now()
	totals := model.ComputeTotals(len(res.Claims), res.ClaimAdjustments(), items)
	warnings := res.WarningStrings()
	processedAt, err := Finalize(ctx, s.store, log, u.ID, totals, warnings, items)
	summary.DurationFinalize = time.Since(finalizeStart)
	observePhase(PhaseFinalize, summary.DurationFinalize)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, store.ErrNotPending) {
			return s.abandon(ctx, u, summary, len(res.Claims), PhaseFinalize, err)
		}
		return summary, &PipelineError{Phase: PhaseFinalize, Err: err}
	}

	applyTotals(u, totals)
	u.Status = model.StatusProcessed
	u.ErrorDetail = warnings
	if len(u.ErrorDetail) == 0 {
		u.ErrorDetail = nil
	}
	u.ProcessedAt = &processedAt
	summary.Status = model.StatusProcessed
	summary.DurationTotal = time.Since(totalStart)
	recordOutcome(summary)

	log.Info().
		Int("claims", summary.Claims).
		Int("line_items", summary.LineItems).
		Int("warnings", summary.Warnings).
		Int("matched", summary.Matched).
		Int("unmatched", summary.Unmatched).
		Str("total_paid", u.TotalPaidCents.String()).
		Str("total_duration", summary.DurationTotal.String()).
		Msg("upload processed")

	return summary, nil
}

// finishParseErrors moves u to parse_errors. The outcome itself is not an
// error; only a failed status write is.
func (s *Service) finishParseErrors(ctx context.Context, u *model.EraUpload, summary *model.ProcessSummary, claims int, detail []string, phase string, start time.Time) (*model.ProcessSummary, error) {
	if err := s.markParseErrors(ctx, u, claims, detail); err != nil {
		return summary, &PipelineError{Phase: phase, Err: err}
	}
	summary.Status = model.StatusParseErrors
	summary.DurationTotal = time.Since(start)
	recordOutcome(summary)
	return summary, nil
}

// abandon records a cancelled or timed-out run as parse_errors. The write
// uses a context detached from the expired one.
func (s *Service) abandon(ctx context.Context, u *model.EraUpload, summary *model.ProcessSummary, claims int, phase string, cause error) (*model.ProcessSummary, error) {
	reason := "processing cancelled"
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		reason = "processing timed out"
	}
	reason = fmt.Sprintf("%s during %s", reason, phase)

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detachedTimeout)
	defer cancel()
	if err := s.markParseErrors(dctx, u, claims, []string{reason}); err != nil {
		s.log.Error().Err(err).Str("upload_id", u.ID.String()).Msg("could not record abandoned upload")
	} else {
		summary.Status = model.StatusParseErrors
		recordOutcome(summary)
	}
	s.log.Warn().Str("upload_id", u.ID.String()).Str("phase", phase).Msg(reason)
	return summary, &PipelineError{Phase: phase, Err: cause}
}

func (s *Service) markParseErrors(ctx context.Context, u *model.EraUpload, claims int, detail []string) error {
	processedAt, err := s.store.MarkParseErrors(ctx, u.ID, claims, detail)
	if err != nil {
		return err
	}
	u.Status = model.StatusParseErrors
	u.TotalClaims = claims
	u.ErrorDetail = detail
	u.ProcessedAt = &processedAt
	return nil
}

func applyTotals(u *model.EraUpload, t model.Totals) {
	u.TotalClaims = t.TotalClaims
	u.MatchedClaims = t.MatchedClaims
	u.UnmatchedClaims = t.UnmatchedClaims
	u.TotalBilledCents = t.TotalBilledCents
	u.TotalPaidCents = t.TotalPaidCents
	u.TotalAdjustmentCents = t.TotalAdjustmentCents
}
