package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/gyeh/eraload/internal/money"
)

// ProcessSummary captures metrics from a single upload pipeline run.
type ProcessSummary struct {
	UploadID         uuid.UUID
	Status           UploadStatus
	Claims           int
	LineItems        int
	Warnings         int
	Matched          int
	Unmatched        int
	DistinctCodes    int
	DurationDecode   time.Duration
	DurationMatch    time.Duration
	DurationFinalize time.Duration
	DurationTotal    time.Duration
}

// Discrepancy is a line item whose paid amount differs from the expected
// reimbursement. Variance is paid minus expected.
type Discrepancy struct {
	UploadID    uuid.UUID   `json:"uploadId"`
	LineItemID  uuid.UUID   `json:"lineItemId"`
	PatientName string      `json:"patientName"`
	CPTCode     string      `json:"cptCode"`
	ProgramType ProgramType `json:"programType"`
	Paid        money.Cents `json:"paidCents"`
	Expected    money.Cents `json:"expectedCents"`
	Variance    money.Cents `json:"varianceCents"`
}

// Summary is the reconciliation of all line items in scope for a period.
type Summary struct {
	UploadCount        int           `json:"uploadCount"`
	LineItemCount      int           `json:"lineItemCount"`
	TotalPaid          money.Cents   `json:"totalPaidCents"`
	TotalSystemRevenue money.Cents   `json:"totalSystemRevenueCents"`
	TotalVariance      money.Cents   `json:"totalVarianceCents"`
	DiscrepancyCount   int           `json:"discrepancyCount"`
	Discrepancies      []Discrepancy `json:"discrepancies"`
}
