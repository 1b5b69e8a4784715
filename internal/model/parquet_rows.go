package model

import "github.com/gyeh/eraload/internal/money"

// FeeScheduleRow mirrors the Parquet schema of a fee schedule extract: one
// expected rate per practice, code and billing period.
type FeeScheduleRow struct {
	PracticeID    string `parquet:"practice_id"`
	CPTCode       string `parquet:"cpt_code"`
	Month         string `parquet:"month"`
	Year          int32  `parquet:"year"`
	ProgramType   string `parquet:"program_type"`
	ExpectedCents int64  `parquet:"expected_cents"`
}

// EncounterRow mirrors the Parquet schema of an enrollment encounter
// extract: a billed service for an enrolled patient in a period.
type EncounterRow struct {
	PracticeID  string `parquet:"practice_id"`
	PatientName string `parquet:"patient_name"`
	CPTCode     string `parquet:"cpt_code"`
	Month       string `parquet:"month"`
	Year        int32  `parquet:"year"`
}

// LineItemRow is the Parquet export shape of a reconciled line item.
// Nullable amounts use optional columns.
type LineItemRow struct {
	UploadID           string `parquet:"upload_id"`
	LineItemID         string `parquet:"line_item_id"`
	Seq                int32  `parquet:"seq"`
	ClaimID            string `parquet:"claim_id"`
	PatientName        string `parquet:"patient_name"`
	CPTCode            string `parquet:"cpt_code"`
	ProgramType        string `parquet:"program_type"`
	BilledCents        int64  `parquet:"billed_cents"`
	PaidCents          int64  `parquet:"paid_cents"`
	AdjustmentCents    int64  `parquet:"adjustment_cents"`
	AdjustmentReason   string `parquet:"adjustment_reason"`
	SystemRevenueCents *int64 `parquet:"system_revenue_cents,optional"`
	VarianceCents      *int64 `parquet:"variance_cents,optional"`
	PatientMatched     bool   `parquet:"patient_matched"`
	MatchStatus        string `parquet:"match_status"`
}

// NewLineItemRow converts a line item for export.
func NewLineItemRow(li *LineItem) LineItemRow {
	return LineItemRow{
		UploadID:           li.UploadID.String(),
		LineItemID:         li.ID.String(),
		Seq:                int32(li.Seq),
		ClaimID:            li.ClaimID,
		PatientName:        li.PatientName,
		CPTCode:            li.CPTCode,
		ProgramType:        string(li.ProgramType),
		BilledCents:        int64(li.BilledCents),
		PaidCents:          int64(li.PaidCents),
		AdjustmentCents:    int64(li.AdjustmentCents),
		AdjustmentReason:   li.AdjustmentReason,
		SystemRevenueCents: money.ToNullable(li.SystemRevenueCents),
		VarianceCents:      money.ToNullable(li.VarianceCents),
		PatientMatched:     li.PatientMatched,
		MatchStatus:        string(li.MatchStatus),
	}
}
