package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/gyeh/eraload/internal/money"
)

// MatchStatus records whether a line item was tied to a known encounter.
type MatchStatus string

const (
	MatchMatched   MatchStatus = "matched"
	MatchUnmatched MatchStatus = "unmatched"
)

// LineItem is one remitted service line. Money is int64 cents; the two
// nullable amounts are nil together.
type LineItem struct {
	ID               uuid.UUID   `json:"id"`
	UploadID         uuid.UUID   `json:"uploadId"`
	Seq              int         `json:"seq"`
	ClaimID          string      `json:"claimId,omitempty"`
	PatientName      string      `json:"patientName,omitempty"`
	CPTCode          string      `json:"cptCode"`
	Modifiers        []string    `json:"modifiers,omitempty"`
	ProgramType      ProgramType `json:"programType"`
	BilledCents      money.Cents `json:"billedCents"`
	PaidCents        money.Cents `json:"paidCents"`
	AdjustmentCents  money.Cents `json:"adjustmentCents"`
	AdjustmentReason string      `json:"adjustmentReason,omitempty"`
	ServiceDate      *time.Time  `json:"serviceDate,omitempty"`

	SystemRevenueCents *money.Cents `json:"systemRevenueCents"`
	VarianceCents      *money.Cents `json:"varianceCents"`
	PatientMatched     bool         `json:"patientMatched"`
	MatchStatus        MatchStatus  `json:"matchStatus"`

	Warnings []string `json:"warnings,omitempty"`
}

// LineItemColumns returns the ordered column names for COPY into era.line_items.
func LineItemColumns() []string {
	return []string{
		"line_item_id",
		"upload_id",
		"seq",
		"claim_id",
		"patient_name",
		"cpt_code",
		"modifiers",
		"program_type",
		"billed_cents",
		"paid_cents",
		"adjustment_cents",
		"adjustment_reason",
		"service_date",
		"system_revenue_cents",
		"variance_cents",
		"patient_matched",
		"match_status",
		"warnings",
	}
}

// CopyValues returns the item values in LineItemColumns order.
func (li *LineItem) CopyValues() []any {
	return []any{
		li.ID,
		li.UploadID,
		int32(li.Seq),
		li.ClaimID,
		li.PatientName,
		li.CPTCode,
		nonNil(li.Modifiers),
		string(li.ProgramType),
		int64(li.BilledCents),
		int64(li.PaidCents),
		int64(li.AdjustmentCents),
		li.AdjustmentReason,
		li.ServiceDate,
		money.ToNullable(li.SystemRevenueCents),
		money.ToNullable(li.VarianceCents),
		li.PatientMatched,
		string(li.MatchStatus),
		nonNil(li.Warnings),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
