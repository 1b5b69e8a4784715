package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gyeh/eraload/internal/money"
)

// UploadStatus is the lifecycle state of an EraUpload.
type UploadStatus string

const (
	StatusPending     UploadStatus = "pending"
	StatusProcessed   UploadStatus = "processed"
	StatusParseErrors UploadStatus = "parse_errors"
)

// RemittanceFile is an 835 file as received, before anything is persisted.
type RemittanceFile struct {
	Content    []byte
	PracticeID string
	Period     Period
	Filename   string
}

// Validate rejects requests that must not start processing.
func (f *RemittanceFile) Validate() error {
	if strings.TrimSpace(f.PracticeID) == "" {
		return &ValidationError{Field: "practiceId", Msg: "is required"}
	}
	if strings.TrimSpace(f.Filename) == "" {
		return &ValidationError{Field: "file", Msg: "filename is required"}
	}
	return f.Period.Validate()
}

// EraUpload is the persisted record of one ingested remittance file. It owns
// its line items.
type EraUpload struct {
	ID                   uuid.UUID    `json:"id"`
	Filename             string       `json:"filename"`
	PracticeID           string       `json:"practiceId"`
	Month                Month        `json:"month"`
	Year                 int          `json:"year"`
	Status               UploadStatus `json:"status"`
	TotalClaims          int          `json:"totalClaims"`
	MatchedClaims        int          `json:"matchedClaims"`
	UnmatchedClaims      int          `json:"unmatchedClaims"`
	TotalBilledCents     money.Cents  `json:"totalBilledCents"`
	TotalPaidCents       money.Cents  `json:"totalPaidCents"`
	TotalAdjustmentCents money.Cents  `json:"totalAdjustmentCents"`
	ErrorDetail          []string     `json:"errorDetail,omitempty"`
	ContentSHA256        string       `json:"contentSha256"`
	UploadedAt           time.Time    `json:"uploadedAt"`
	ProcessedAt          *time.Time   `json:"processedAt,omitempty"`
}

// Period returns the billing period the upload was declared for.
func (u *EraUpload) Period() Period {
	return Period{Month: u.Month, Year: u.Year}
}

// Totals is the aggregate written to an upload at finalization.
type Totals struct {
	TotalClaims          int
	MatchedClaims        int
	UnmatchedClaims      int
	TotalBilledCents     money.Cents
	TotalPaidCents       money.Cents
	TotalAdjustmentCents money.Cents
}

// ComputeTotals sums line items. claims is the number of decoded claims and
// claimAdjustments the claim-level adjustment total not attached to any line.
func ComputeTotals(claims int, claimAdjustments money.Cents, items []LineItem) Totals {
	t := Totals{TotalClaims: claims, TotalAdjustmentCents: claimAdjustments}
	for i := range items {
		it := &items[i]
		t.TotalBilledCents += it.BilledCents
		t.TotalPaidCents += it.PaidCents
		t.TotalAdjustmentCents += it.AdjustmentCents
		if it.MatchStatus == MatchMatched {
			t.MatchedClaims++
		} else {
			t.UnmatchedClaims++
		}
	}
	return t
}

// Validate checks the invariants a finalized upload must satisfy.
func (u *EraUpload) Validate(lineItems int) error {
	switch u.Status {
	case StatusProcessed:
		if u.MatchedClaims+u.UnmatchedClaims != lineItems {
			return fmt.Errorf("matched %d + unmatched %d != %d line items", u.MatchedClaims, u.UnmatchedClaims, lineItems)
		}
	case StatusParseErrors:
		if len(u.ErrorDetail) == 0 {
			return fmt.Errorf("parse_errors upload without error detail")
		}
	}
	return nil
}
