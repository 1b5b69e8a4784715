// Package matcher ties remitted line items to expected reimbursement.
//
// Matching is two-staged: a rate lookup per distinct CPT code decides the
// program type and expected amount, then an encounter lookup per distinct
// (patient, code) pair decides whether the payment belongs to an enrolled
// patient. An item is matched only when both succeed.
package matcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gyeh/eraload/internal/feeschedule"
	"github.com/gyeh/eraload/internal/model"
	"github.com/gyeh/eraload/internal/normalize"
)

// Stats reports oracle traffic and outcomes for one Match call.
type Stats struct {
	DistinctCodes    int
	RateLookups      int
	EncounterLookups int
	RatesFound       int
	Matched          int
	Unmatched        int
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithPrograms restricts the program types accepted from the oracle. A rate
// carrying any other program is treated as not found.
func WithPrograms(programs []model.ProgramType) Option {
	return func(m *Matcher) {
		if len(programs) == 0 {
			return
		}
		m.programs = make(map[model.ProgramType]bool, len(programs))
		for _, p := range programs {
			m.programs[p] = true
		}
	}
}

// Matcher annotates line items using a fee schedule oracle. It holds no
// per-upload state and is safe for concurrent use.
type Matcher struct {
	oracle   feeschedule.Oracle
	programs map[model.ProgramType]bool
	log      zerolog.Logger
}

// New creates a Matcher. By default every known program type is accepted.
func New(oracle feeschedule.Oracle, log zerolog.Logger, opts ...Option) *Matcher {
	m := &Matcher{
		oracle:   oracle,
		programs: make(map[model.ProgramType]bool, len(model.AllProgramTypes)),
		log:      log.With().Str("component", "matcher").Logger(),
	}
	for _, p := range model.AllProgramTypes {
		m.programs[p.Type] = true
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type encounterKey struct {
	name string
	code string
}

// Match fills ProgramType, SystemRevenueCents, VarianceCents, PatientMatched
// and MatchStatus on every item in place. Items are modified only after all
// oracle calls succeed, so a failed Match leaves them untouched.
//
// Errors either wrap feeschedule.ErrUnavailable or are the context's error.
func (m *Matcher) Match(ctx context.Context, practiceID string, period model.Period, items []model.LineItem) (Stats, error) {
	var stats Stats

	rates := make(map[string]*feeschedule.Rate)
	for i := range items {
		code := normalize.NormalizeCode(items[i].CPTCode)
		if code == "" {
			continue
		}
		if _, seen := rates[code]; seen {
			continue
		}
		stats.RateLookups++
		r, err := m.oracle.LookupRate(ctx, feeschedule.RateQuery{PracticeID: practiceID, CPTCode: code, Period: period})
		switch {
		case err == nil:
			if !m.programs[r.ProgramType] {
				m.log.Warn().Str("cpt", code).Str("program_type", string(r.ProgramType)).Msg("oracle returned unsupported program type")
				rates[code] = nil
				continue
			}
			rates[code] = &r
			stats.RatesFound++
		case errors.Is(err, feeschedule.ErrNotFound):
			rates[code] = nil
		default:
			return Stats{}, m.classify(ctx, err, "rate lookup", code)
		}
	}
	stats.DistinctCodes = len(rates)

	encounters := make(map[encounterKey]bool)
	for i := range items {
		code := normalize.NormalizeCode(items[i].CPTCode)
		if rates[code] == nil {
			continue
		}
		name := normalize.NormalizeName(items[i].PatientName)
		if name == "" {
			continue
		}
		key := encounterKey{name, code}
		if _, seen := encounters[key]; seen {
			continue
		}
		stats.EncounterLookups++
		ok, err := m.oracle.HasEncounter(ctx, feeschedule.EncounterQuery{
			PracticeID:  practiceID,
			PatientName: name,
			CPTCode:     code,
			Period:      period,
		})
		if err != nil {
			return Stats{}, m.classify(ctx, err, "encounter lookup", code)
		}
		encounters[key] = ok
	}

	for i := range items {
		it := &items[i]
		code := normalize.NormalizeCode(it.CPTCode)
		r := rates[code]
		if r == nil {
			it.ProgramType = model.ProgramUnknown
			it.SystemRevenueCents = nil
			it.VarianceCents = nil
			it.PatientMatched = false
			it.MatchStatus = model.MatchUnmatched
			stats.Unmatched++
			continue
		}
		expected := r.ExpectedCents
		variance := it.PaidCents - expected
		it.ProgramType = r.ProgramType
		it.SystemRevenueCents = &expected
		it.VarianceCents = &variance
		it.PatientMatched = encounters[encounterKey{normalize.NormalizeName(it.PatientName), code}]
		if it.PatientMatched {
			it.MatchStatus = model.MatchMatched
			stats.Matched++
		} else {
			it.MatchStatus = model.MatchUnmatched
			stats.Unmatched++
		}
	}

	m.log.Debug().
		Int("items", len(items)).
		Int("distinct_codes", stats.DistinctCodes).
		Int("rate_lookups", stats.RateLookups).
		Int("encounter_lookups", stats.EncounterLookups).
		Int("matched", stats.Matched).
		Msg("matched line items")
	return stats, nil
}

func (m *Matcher) classify(ctx context.Context, err error, op, code string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s %s: %w", op, code, ctxErr)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// Oracle-side timeout while the caller's context is still live.
		return fmt.Errorf("%w: %s %s: %v", feeschedule.ErrUnavailable, op, code, err)
	}
	if errors.Is(err, feeschedule.ErrUnavailable) {
		return fmt.Errorf("%s %s: %w", op, code, err)
	}
	return fmt.Errorf("%w: %s %s: %v", feeschedule.ErrUnavailable, op, code, err)
}
