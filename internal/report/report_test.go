package report

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/gobd-datev-export/internal/types"
)

func sampleResult() *types.ValidationResult {
	row := 1
	return &types.ValidationResult{
		Valid: false,
		Violations: []types.Violation{
			{Kind: types.ViolationInvalidDate, RowIndex: &row, DocumentNumber: "RE-002", Field: types.FieldDate, Detail: "Date '31.02.2024' is not a valid calendar date"},
			{Kind: types.ViolationSequenceGap, DocumentNumber: "RE-005", Field: types.FieldDocumentNumber, Detail: "gap"},
		},
		PreparedTransactions: []types.GoBDTransaction{
			{
				Date: "15.01.2024", DocumentNumber: "RE-001", BookingText: "Büromaterial",
				Amount: decimal.RequireFromString("1190"), DebitCredit: types.Debit,
				Account: "4930", CounterAccount: "1200", FiscalYear: 2024, FiscalPeriod: 1,
			},
		},
		Summary: types.ValidationSummary{
			TotalEntries: 1,
			TotalDebit:   decimal.RequireFromString("1190"),
			TotalCredit:  decimal.Zero,
			Period:       "2024/01",
			FiscalYear:   2024,
		},
		RequiresHumanApproval: true,
	}
}

func TestWriteValidationReport(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteValidationReport(&buf, sampleResult()); err != nil {
		t.Fatalf("WriteValidationReport() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	want := []string{SheetSummary, SheetViolations, SheetTransactions}
	if len(sheets) != len(want) {
		t.Fatalf("sheets = %v, want %v", sheets, want)
	}
	for i := range want {
		if sheets[i] != want[i] {
			t.Errorf("sheet %d = %q, want %q", i, sheets[i], want[i])
		}
	}

	summary, _ := f.GetRows(SheetSummary)
	if len(summary) != 8 {
		t.Fatalf("summary rows = %d, want 8", len(summary))
	}
	if summary[1][0] != "Requires Human Approval" || summary[1][1] != "TRUE" {
		t.Errorf("approval row = %v", summary[1])
	}
	if summary[6][1] != "2024/01" {
		t.Errorf("period row = %v", summary[6])
	}

	violations, _ := f.GetRows(SheetViolations)
	if len(violations) != 3 {
		t.Fatalf("violation rows = %d, want header + 2", len(violations))
	}
	if violations[1][0] != "INVALID_DATE" || violations[1][1] != "1" {
		t.Errorf("first violation = %v", violations[1])
	}
	if violations[2][1] != "" {
		t.Errorf("batch violation row = %q, want empty", violations[2][1])
	}

	txs, _ := f.GetRows(SheetTransactions, excelize.Options{RawCellValue: true})
	if len(txs) != 2 {
		t.Fatalf("transaction rows = %d, want header + 1", len(txs))
	}
	if txs[1][1] != "RE-001" || txs[1][3] != "1190" || txs[1][4] != "S" {
		t.Errorf("transaction row = %v", txs[1])
	}
}

func TestSaveValidationReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	if err := SaveValidationReport(path, sampleResult()); err != nil {
		t.Fatalf("SaveValidationReport() error = %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	f.Close()
}

func TestWriteValidationReportNil(t *testing.T) {
	if err := WriteValidationReport(&bytes.Buffer{}, nil); err == nil {
		t.Error("want error for nil result")
	}
}
