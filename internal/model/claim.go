package model

import "github.com/gyeh/eraload/internal/money"

// Claim groups the service lines paid under one CLP segment. Claims are
// decode-time structure only; line items are what gets persisted.
type Claim struct {
	ClaimID          string
	StatusCode       string
	PatientName      string
	BilledCents      money.Cents
	PaidCents        money.Cents
	AdjustmentCents  money.Cents // claim-level CAS only
	AdjustmentReason string
	Lines            []int // indexes into the decoded line items
}
