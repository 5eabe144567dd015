// =============================================================================
// GoBD DATEV Export - Validation Report
// =============================================================================
//
// This module writes a validation result as an XLSX workbook that a
// reviewer can open before approving an export.
//
// SHEETS:
//   Summary       - validity, approval flag, totals, period
//   Violations    - one row per finding
//   Transactions  - the prepared bookings as they would be exported
//
// Amounts are written as numbers with a two-decimal format so totals can be
// checked in the spreadsheet.
//
// =============================================================================

package report

import (
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/gobd-datev-export/internal/types"
)

// Sheet names.
const (
	SheetSummary      = "Summary"
	SheetViolations   = "Violations"
	SheetTransactions = "Transactions"
)

var (
	violationHeader   = []interface{}{"Kind", "Row", "Document Number", "Field", "Detail"}
	transactionHeader = []interface{}{
		"Date", "Document Number", "Booking Text", "Amount", "S/H",
		"Account", "Counter Account", "Fiscal Year", "Fiscal Period",
	}
)

// WriteValidationReport renders res as an XLSX workbook into w.
func WriteValidationReport(w io.Writer, res *types.ValidationResult) error {
	if res == nil {
		return fmt.Errorf("no validation result to report")
	}

	f := excelize.NewFile()
	defer f.Close()

	// NewFile starts with "Sheet1".
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("failed to name summary sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetViolations); err != nil {
		return fmt.Errorf("failed to add violations sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetTransactions); err != nil {
		return fmt.Errorf("failed to add transactions sheet: %w", err)
	}

	styles, err := newStyles(f)
	if err != nil {
		return err
	}

	if err := writeSummary(f, res, styles); err != nil {
		return err
	}
	if err := writeViolations(f, res.Violations, styles); err != nil {
		return err
	}
	if err := writeTransactions(f, res.PreparedTransactions, styles); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// SaveValidationReport writes the report to path.
func SaveValidationReport(path string, res *types.ValidationResult) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}

	if err := WriteValidationReport(file, res); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}
	return file.Close()
}

// =============================================================================
// SHEETS
// =============================================================================

type styles struct {
	header int
	amount int
}

func newStyles(f *excelize.File) (styles, error) {
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return styles{}, fmt.Errorf("failed to create header style: %w", err)
	}
	amountFormat := "#,##0.00"
	amount, err := f.NewStyle(&excelize.Style{CustomNumFmt: &amountFormat})
	if err != nil {
		return styles{}, fmt.Errorf("failed to create amount style: %w", err)
	}
	return styles{header: header, amount: amount}, nil
}

func writeSummary(f *excelize.File, res *types.ValidationResult, st styles) error {
	s := res.Summary
	debit, _ := s.TotalDebit.Float64()
	credit, _ := s.TotalCredit.Float64()

	rows := [][]interface{}{
		{"Valid", res.Valid},
		{"Requires Human Approval", res.RequiresHumanApproval},
		{"Violations", len(res.Violations)},
		{"Total Entries", s.TotalEntries},
		{"Total Debit (S)", debit},
		{"Total Credit (H)", credit},
		{"Period", s.Period},
		{"Fiscal Year", s.FiscalYear},
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SheetSummary, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}

	if err := f.SetCellStyle(SheetSummary, "A1", "A8", st.header); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetSummary, "B5", "B6", st.amount); err != nil {
		return err
	}
	return f.SetColWidth(SheetSummary, "A", "A", 26)
}

func writeViolations(f *excelize.File, violations []types.Violation, st styles) error {
	if err := writeHeader(f, SheetViolations, violationHeader, st); err != nil {
		return err
	}

	for i, v := range violations {
		var row interface{} = ""
		if v.RowIndex != nil {
			row = *v.RowIndex
		}
		values := []interface{}{string(v.Kind), row, v.DocumentNumber, v.Field, v.Detail}

		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetViolations, cell, &values); err != nil {
			return fmt.Errorf("failed to write violation %d: %w", i, err)
		}
	}

	return f.SetColWidth(SheetViolations, "E", "E", 80)
}

func writeTransactions(f *excelize.File, txs []types.GoBDTransaction, st styles) error {
	if err := writeHeader(f, SheetTransactions, transactionHeader, st); err != nil {
		return err
	}

	for i, tx := range txs {
		amount, _ := tx.Amount.Float64()
		values := []interface{}{
			tx.Date, tx.DocumentNumber, tx.BookingText, amount, string(tx.DebitCredit),
			tx.Account, tx.CounterAccount, tx.FiscalYear, tx.FiscalPeriod,
		}

		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetTransactions, cell, &values); err != nil {
			return fmt.Errorf("failed to write transaction %d: %w", i, err)
		}
	}

	if len(txs) > 0 {
		last, _ := excelize.CoordinatesToCellName(4, len(txs)+1)
		if err := f.SetCellStyle(SheetTransactions, "D2", last, st.amount); err != nil {
			return err
		}
	}
	return f.SetColWidth(SheetTransactions, "C", "C", 40)
}

func writeHeader(f *excelize.File, sheet string, header []interface{}, st styles) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	return f.SetCellStyle(sheet, "A1", last, st.header)
}
