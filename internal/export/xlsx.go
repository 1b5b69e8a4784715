// Package export renders reconciled line items as XLSX workbooks and
// Parquet files.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/gyeh/eraload/internal/model"
	"github.com/gyeh/eraload/internal/money"
)

const (
	SheetSummary       = "Summary"
	SheetDiscrepancies = "Discrepancies"
	SheetLineItems     = "Line Items"
)

var discrepancyHeader = []string{
	"Upload ID",
	"Line Item ID",
	"Patient",
	"CPT",
	"Program",
	"Paid",
	"Expected",
	"Variance",
}

var lineItemHeader = []string{
	"Upload ID",
	"Seq",
	"Claim ID",
	"Patient",
	"CPT",
	"Modifiers",
	"Program",
	"Billed",
	"Paid",
	"Adjustment",
	"Adjustment Reason",
	"System Revenue",
	"Variance",
	"Match Status",
}

var lineItemWidths = []float64{38, 6, 16, 24, 8, 12, 8, 12, 12, 12, 18, 16, 12, 14}

// Scope labels the workbook's Summary sheet.
type Scope struct {
	PracticeID string
	Period     *model.Period
}

type workbook struct {
	f           *excelize.File
	headerStyle int
	moneyStyle  int
}

func newWorkbook() (*workbook, error) {
	f := excelize.NewFile()
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}
	numFmt := "#,##0.00"
	moneyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create money style: %w", err)
	}
	return &workbook{f: f, headerStyle: header, moneyStyle: moneyStyle}, nil
}

// WriteXLSX renders a reconciliation summary and its line items as a
// three-sheet workbook.
func WriteXLSX(w io.Writer, scope Scope, summary model.Summary, items []model.LineItem) error {
	wb, err := newWorkbook()
	if err != nil {
		return err
	}
	defer wb.f.Close()

	if err := wb.summarySheet(scope, summary); err != nil {
		return err
	}
	if err := wb.discrepancySheet(summary.Discrepancies); err != nil {
		return err
	}
	if err := wb.lineItemSheet(items); err != nil {
		return err
	}

	if err := wb.f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}
	idx, err := wb.f.GetSheetIndex(SheetSummary)
	if err != nil {
		return fmt.Errorf("find summary sheet: %w", err)
	}
	wb.f.SetActiveSheet(idx)

	if _, err := wb.f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func (wb *workbook) summarySheet(scope Scope, s model.Summary) error {
	if _, err := wb.f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("create sheet %s: %w", SheetSummary, err)
	}
	practice := scope.PracticeID
	if practice == "" {
		practice = "all"
	}
	period := "all"
	if scope.Period != nil {
		period = scope.Period.String()
	}

	rows := [][]any{
		{"Practice", practice},
		{"Period", period},
		{"Uploads", s.UploadCount},
		{"Line Items", s.LineItemCount},
		{"Total Paid", s.TotalPaid},
		{"Total System Revenue", s.TotalSystemRevenue},
		{"Total Variance", s.TotalVariance},
		{"Discrepancies", s.DiscrepancyCount},
	}
	for i, r := range rows {
		row := i + 1
		if err := wb.setCell(SheetSummary, 1, row, r[0]); err != nil {
			return err
		}
		if err := wb.f.SetCellStyle(SheetSummary, cellName(1, row), cellName(1, row), wb.headerStyle); err != nil {
			return fmt.Errorf("set label style: %w", err)
		}
		if err := wb.setCell(SheetSummary, 2, row, r[1]); err != nil {
			return err
		}
	}
	if err := wb.f.SetColWidth(SheetSummary, "A", "A", 24); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	return wb.f.SetColWidth(SheetSummary, "B", "B", 18)
}

func (wb *workbook) discrepancySheet(ds []model.Discrepancy) error {
	if err := wb.header(SheetDiscrepancies, discrepancyHeader, []float64{38, 38, 24, 8, 8, 12, 12, 12}); err != nil {
		return err
	}
	for i, d := range ds {
		row := i + 2
		vals := []any{
			d.UploadID.String(),
			d.LineItemID.String(),
			d.PatientName,
			d.CPTCode,
			string(d.ProgramType),
			d.Paid,
			d.Expected,
			d.Variance,
		}
		for col, v := range vals {
			if err := wb.setCell(SheetDiscrepancies, col+1, row, v); err != nil {
				return err
			}
		}
	}
	return wb.freezeHeader(SheetDiscrepancies)
}

func (wb *workbook) lineItemSheet(items []model.LineItem) error {
	if err := wb.header(SheetLineItems, lineItemHeader, lineItemWidths); err != nil {
		return err
	}
	for i := range items {
		li := &items[i]
		row := i + 2
		vals := []any{
			li.UploadID.String(),
			li.Seq,
			li.ClaimID,
			li.PatientName,
			li.CPTCode,
			strings.Join(li.Modifiers, ","),
			string(li.ProgramType),
			li.BilledCents,
			li.PaidCents,
			li.AdjustmentCents,
			li.AdjustmentReason,
			li.SystemRevenueCents,
			li.VarianceCents,
			string(li.MatchStatus),
		}
		for col, v := range vals {
			if err := wb.setCell(SheetLineItems, col+1, row, v); err != nil {
				return err
			}
		}
	}
	return wb.freezeHeader(SheetLineItems)
}

func (wb *workbook) header(sheet string, headers []string, widths []float64) error {
	if _, err := wb.f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	for col, h := range headers {
		cell := cellName(col+1, 1)
		if err := wb.f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("set header cell %s: %w", cell, err)
		}
		if err := wb.f.SetCellStyle(sheet, cell, cell, wb.headerStyle); err != nil {
			return fmt.Errorf("set header style: %w", err)
		}
		if col < len(widths) {
			name, _ := excelize.ColumnNumberToName(col + 1)
			if err := wb.f.SetColWidth(sheet, name, name, widths[col]); err != nil {
				return fmt.Errorf("set column width: %w", err)
			}
		}
	}
	return nil
}

func (wb *workbook) freezeHeader(sheet string) error {
	err := wb.f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
	if err != nil {
		return fmt.Errorf("freeze panes on %s: %w", sheet, err)
	}
	return nil
}

// setCell writes v, rendering Cents as a styled dollar number. A nil
// amount leaves the cell empty.
func (wb *workbook) setCell(sheet string, col, row int, v any) error {
	cell := cellName(col, row)
	switch c := v.(type) {
	case *money.Cents:
		if c == nil {
			return nil
		}
		return wb.setCell(sheet, col, row, *c)
	case money.Cents:
		if err := wb.f.SetCellValue(sheet, cell, c.Decimal().InexactFloat64()); err != nil {
			return fmt.Errorf("set cell %s: %w", cell, err)
		}
		if err := wb.f.SetCellStyle(sheet, cell, cell, wb.moneyStyle); err != nil {
			return fmt.Errorf("set money style %s: %w", cell, err)
		}
		return nil
	}
	if err := wb.f.SetCellValue(sheet, cell, v); err != nil {
		return fmt.Errorf("set cell %s: %w", cell, err)
	}
	return nil
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
