package api

import (
	"github.com/gyeh/eraload/internal/model"
	"github.com/gyeh/eraload/internal/money"
)

// Responses carry integer cents alongside two-decimal dollar strings.

type uploadView struct {
	*model.EraUpload
	TotalBilled     string `json:"totalBilled"`
	TotalPaid       string `json:"totalPaid"`
	TotalAdjustment string `json:"totalAdjustment"`
}

func newUploadView(u *model.EraUpload) uploadView {
	return uploadView{
		EraUpload:       u,
		TotalBilled:     u.TotalBilledCents.String(),
		TotalPaid:       u.TotalPaidCents.String(),
		TotalAdjustment: u.TotalAdjustmentCents.String(),
	}
}

type lineItemView struct {
	*model.LineItem
	Billed        string  `json:"billed"`
	Paid          string  `json:"paid"`
	Adjustment    string  `json:"adjustment"`
	SystemRevenue *string `json:"systemRevenue"`
	Variance      *string `json:"variance"`
}

func newLineItemViews(items []model.LineItem) []lineItemView {
	out := make([]lineItemView, len(items))
	for i := range items {
		li := &items[i]
		out[i] = lineItemView{
			LineItem:      li,
			Billed:        li.BilledCents.String(),
			Paid:          li.PaidCents.String(),
			Adjustment:    li.AdjustmentCents.String(),
			SystemRevenue: dollars(li.SystemRevenueCents),
			Variance:      dollars(li.VarianceCents),
		}
	}
	return out
}

func dollars(c *money.Cents) *string {
	if c == nil {
		return nil
	}
	s := c.String()
	return &s
}

type summaryView struct {
	UploadCount        int    `json:"uploadCount"`
	LineItemCount      int    `json:"lineItemCount"`
	TotalPaidCents     int64  `json:"totalPaidCents"`
	TotalPaid          string `json:"totalPaid"`
	TotalRevenueCents  int64  `json:"totalSystemRevenueCents"`
	TotalSystemRevenue string `json:"totalSystemRevenue"`
	TotalVarianceCents int64  `json:"totalVarianceCents"`
	TotalVariance      string `json:"totalVariance"`
	DiscrepancyCount   int    `json:"discrepancyCount"`
}

type discrepancyView struct {
	model.Discrepancy
	PaidDollars     string `json:"paid"`
	ExpectedDollars string `json:"expected"`
	VarianceDollars string `json:"variance"`
}

type reconciliationView struct {
	Summary       summaryView       `json:"summary"`
	Discrepancies []discrepancyView `json:"discrepancies"`
}

func newReconciliationView(s model.Summary) reconciliationView {
	v := reconciliationView{
		Summary: summaryView{
			UploadCount:        s.UploadCount,
			LineItemCount:      s.LineItemCount,
			TotalPaidCents:     s.TotalPaid.Int64(),
			TotalPaid:          s.TotalPaid.String(),
			TotalRevenueCents:  s.TotalSystemRevenue.Int64(),
			TotalSystemRevenue: s.TotalSystemRevenue.String(),
			TotalVarianceCents: s.TotalVariance.Int64(),
			TotalVariance:      s.TotalVariance.String(),
			DiscrepancyCount:   s.DiscrepancyCount,
		},
		Discrepancies: make([]discrepancyView, len(s.Discrepancies)),
	}
	for i, d := range s.Discrepancies {
		v.Discrepancies[i] = discrepancyView{
			Discrepancy:     d,
			PaidDollars:     d.Paid.String(),
			ExpectedDollars: d.Expected.String(),
			VarianceDollars: d.Variance.String(),
		}
	}
	return v
}

type createResponse struct {
	UploadID string             `json:"uploadId"`
	Status   model.UploadStatus `json:"status"`
	Warnings []string           `json:"warnings"`
}

func newCreateResponse(u *model.EraUpload) createResponse {
	warnings := u.ErrorDetail
	if warnings == nil {
		warnings = []string{}
	}
	return createResponse{UploadID: u.ID.String(), Status: u.Status, Warnings: warnings}
}
