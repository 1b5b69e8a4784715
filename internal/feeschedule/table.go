package feeschedule

import (
	"context"
	"fmt"

	"github.com/gyeh/eraload/internal/model"
	"github.com/gyeh/eraload/internal/money"
	"github.com/gyeh/eraload/internal/normalize"
	"github.com/gyeh/eraload/internal/parquetread"
)

type rateKey struct {
	practice string
	code     string
	period   model.Period
}

type encounterKey struct {
	practice string
	name     string
	code     string
	period   model.Period
}

// Table is an in-memory Oracle built from fee schedule and encounter
// extracts. It never reports ErrUnavailable.
type Table struct {
	rates      map[rateKey]Rate
	encounters map[encounterKey]bool
}

// NewTable builds a Table from rows. Rows with an invalid period are rejected.
func NewTable(rates []model.FeeScheduleRow, encounters []model.EncounterRow) (*Table, error) {
	t := &Table{
		rates:      make(map[rateKey]Rate, len(rates)),
		encounters: make(map[encounterKey]bool, len(encounters)),
	}
	for i, r := range rates {
		p, err := model.NewPeriod(r.Month, int(r.Year))
		if err != nil {
			return nil, fmt.Errorf("fee schedule row %d: %w", i+1, err)
		}
		t.rates[rateKey{r.PracticeID, normalize.NormalizeCode(r.CPTCode), p}] = Rate{
			ProgramType:   model.ProgramType(r.ProgramType),
			ExpectedCents: money.Cents(r.ExpectedCents),
		}
	}
	for i, e := range encounters {
		p, err := model.NewPeriod(e.Month, int(e.Year))
		if err != nil {
			return nil, fmt.Errorf("encounter row %d: %w", i+1, err)
		}
		t.encounters[encounterKey{e.PracticeID, normalize.NormalizeName(e.PatientName), normalize.NormalizeCode(e.CPTCode), p}] = true
	}
	return t, nil
}

// LoadTable reads the fee schedule Parquet extract and, when encountersPath
// is non-empty, the encounter extract.
func LoadTable(ratesPath, encountersPath string) (*Table, error) {
	rates, err := parquetread.ReadAll[model.FeeScheduleRow](ratesPath,
		"practice_id", "cpt_code", "month", "year", "program_type", "expected_cents")
	if err != nil {
		return nil, fmt.Errorf("load fee schedule: %w", err)
	}
	var encounters []model.EncounterRow
	if encountersPath != "" {
		encounters, err = parquetread.ReadAll[model.EncounterRow](encountersPath,
			"practice_id", "patient_name", "cpt_code", "month", "year")
		if err != nil {
			return nil, fmt.Errorf("load encounters: %w", err)
		}
	}
	return NewTable(rates, encounters)
}

// Len returns the number of rates loaded.
func (t *Table) Len() int {
	return len(t.rates)
}

// LookupRate implements Oracle.
func (t *Table) LookupRate(ctx context.Context, q RateQuery) (Rate, error) {
	if err := ctx.Err(); err != nil {
		return Rate{}, err
	}
	r, ok := t.rates[rateKey{q.PracticeID, normalize.NormalizeCode(q.CPTCode), q.Period}]
	if !ok {
		return Rate{}, ErrNotFound
	}
	return r, nil
}

// HasEncounter implements Oracle.
func (t *Table) HasEncounter(ctx context.Context, q EncounterQuery) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return t.encounters[encounterKey{q.PracticeID, normalize.NormalizeName(q.PatientName), normalize.NormalizeCode(q.CPTCode), q.Period}], nil
}

var _ Oracle = (*Table)(nil)
