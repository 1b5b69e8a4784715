// Package feeschedule defines the query contract for the external fee
// schedule (expected reimbursement per practice, code and period) and the
// adapters used to reach it.
package feeschedule

import (
	"context"
	"errors"

	"github.com/gyeh/eraload/internal/model"
	"github.com/gyeh/eraload/internal/money"
)

var (
	// ErrNotFound is the normal outcome for a code with no contracted rate.
	ErrNotFound = errors.New("fee schedule: rate not found")
	// ErrUnavailable marks a transient dependency failure. Callers retry the
	// whole matching stage later.
	ErrUnavailable = errors.New("fee schedule: oracle unavailable")
)

// RateQuery identifies one expected-rate lookup.
type RateQuery struct {
	PracticeID string
	CPTCode    string
	Period     model.Period
}

// Rate is the oracle's answer for a code. ProgramType is authoritative; the
// same code can belong to different programs under different contracts.
type Rate struct {
	ProgramType   model.ProgramType
	ExpectedCents money.Cents
}

// EncounterQuery asks whether a remitted line corresponds to an enrolled
// patient's encounter in the period.
type EncounterQuery struct {
	PracticeID  string
	PatientName string
	CPTCode     string
	Period      model.Period
}

// Oracle is the fee schedule and enrollment lookup service.
type Oracle interface {
	LookupRate(ctx context.Context, q RateQuery) (Rate, error)
	HasEncounter(ctx context.Context, q EncounterQuery) (bool, error)
}
