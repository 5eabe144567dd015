package validation

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/gobd-datev-export/internal/types"
)

func record(date, doc, text, amount string) types.TransactionRecord {
	r := types.TransactionRecord{
		Date:           date,
		DocumentNumber: doc,
		BookingText:    text,
		Account:        "4930",
		CounterAccount: "1200",
	}
	if amount != "" {
		r.Amount = decimal.NewNullDecimal(decimal.RequireFromString(amount))
	}
	return r
}

func kinds(violations []types.Violation) map[types.ViolationKind]int {
	out := make(map[types.ViolationKind]int)
	for _, v := range violations {
		out[v.Kind]++
	}
	return out
}

func TestValidateCleanBatch(t *testing.T) {
	res, err := Validate([]types.TransactionRecord{
		record("15.01.2024", "RE-001", "Büromaterial", "1190.00"),
		record("20.01.2024", "RE-002", "Gutschrift", "-250.50"),
		record("03.03.2024", "RE-003", "Miete", "800"),
	})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if !res.Valid {
		t.Fatalf("Valid = false, violations: %+v", res.Violations)
	}
	if !res.RequiresHumanApproval {
		t.Error("RequiresHumanApproval = false, want true")
	}
	if len(res.PreparedTransactions) != 3 {
		t.Fatalf("len(PreparedTransactions) = %d, want 3", len(res.PreparedTransactions))
	}

	credit := res.PreparedTransactions[1]
	if credit.DebitCredit != types.Credit {
		t.Errorf("negative amount flag = %q, want H", credit.DebitCredit)
	}
	if !credit.Amount.Equal(decimal.RequireFromString("250.50")) {
		t.Errorf("credit amount = %s, want absolute 250.50", credit.Amount)
	}
	if credit.FiscalYear != 2024 || credit.FiscalPeriod != 1 {
		t.Errorf("credit period = %d/%d, want 2024/1", credit.FiscalYear, credit.FiscalPeriod)
	}

	debit := res.PreparedTransactions[0]
	if debit.DebitCredit != types.Debit {
		t.Errorf("positive amount flag = %q, want S", debit.DebitCredit)
	}

	s := res.Summary
	if s.TotalEntries != 3 {
		t.Errorf("TotalEntries = %d, want 3", s.TotalEntries)
	}
	if !s.TotalDebit.Equal(decimal.RequireFromString("1990")) {
		t.Errorf("TotalDebit = %s, want 1990", s.TotalDebit)
	}
	if !s.TotalCredit.Equal(decimal.RequireFromString("250.5")) {
		t.Errorf("TotalCredit = %s, want 250.5", s.TotalCredit)
	}
	if s.Period != "2024/01-03" || s.FiscalYear != 2024 {
		t.Errorf("Period = %q/%d, want 2024/01-03/2024", s.Period, s.FiscalYear)
	}
}

func TestValidateZeroAmountIsDebit(t *testing.T) {
	res, err := Validate([]types.TransactionRecord{record("15.01.2024", "1", "Nullbuchung", "0")})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if res.PreparedTransactions[0].DebitCredit != types.Debit {
		t.Errorf("zero amount flag = %q, want S", res.PreparedTransactions[0].DebitCredit)
	}
	if res.Summary.Period != "2024/01" {
		t.Errorf("single month Period = %q, want 2024/01", res.Summary.Period)
	}
}

func TestValidatePaddedDate(t *testing.T) {
	res, err := Validate([]types.TransactionRecord{record(" 15.03.2024 ", "RE-001", "Miete", "800")})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !res.Valid {
		t.Fatalf("Valid = false, violations: %+v", res.Violations)
	}
	tx := res.PreparedTransactions[0]
	if tx.FiscalYear != 2024 || tx.FiscalPeriod != 3 {
		t.Errorf("period = %d/%d, want 2024/3", tx.FiscalYear, tx.FiscalPeriod)
	}
	if res.Summary.Period != "2024/03" {
		t.Errorf("Period = %q, want 2024/03", res.Summary.Period)
	}
}

func TestValidateEmptyInput(t *testing.T) {
	res, err := Validate(nil)
	if !errors.Is(err, types.ErrNoTransactions) {
		t.Fatalf("Validate(nil) error = %v, want ErrNoTransactions", err)
	}
	if res != nil {
		t.Error("Validate(nil) returned a result alongside a fatal error")
	}
}

func TestValidateRecordViolations(t *testing.T) {
	noAmount := record("15.01.2024", "RE-002", "Ohne Betrag", "")
	noAccount := record("16.01.2024", "RE-003", "Ohne Konto", "10")
	noAccount.Account = " "

	res, err := Validate([]types.TransactionRecord{
		record("15.01.2024", "RE-001", "Gut", "10"),
		noAmount,
		record("31.02.2024", "RE-004", "Falsches Datum", "10"),
		noAccount,
		record("", "RE-005", "", "10"),
	})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if res.Valid {
		t.Error("Valid = true, want false")
	}
	if !res.RequiresHumanApproval {
		t.Error("RequiresHumanApproval must stay true for invalid batches")
	}
	if len(res.PreparedTransactions) != 1 || res.PreparedTransactions[0].DocumentNumber != "RE-001" {
		t.Fatalf("PreparedTransactions = %+v, want only RE-001", res.PreparedTransactions)
	}

	got := kinds(res.Violations)
	if got[types.ViolationInvalidAmount] != 1 {
		t.Errorf("INVALID_AMOUNT count = %d, want 1", got[types.ViolationInvalidAmount])
	}
	if got[types.ViolationInvalidDate] != 1 {
		t.Errorf("INVALID_DATE count = %d, want 1", got[types.ViolationInvalidDate])
	}
	if got[types.ViolationMissingField] != 3 {
		t.Errorf("MISSING_FIELD count = %d, want 3 (account, date, bookingText)", got[types.ViolationMissingField])
	}
	if got[types.ViolationSequenceGap] != 0 {
		t.Errorf("a single prepared record cannot form a gap, got %d", got[types.ViolationSequenceGap])
	}

	for _, v := range res.Violations {
		if v.RowIndex == nil {
			t.Errorf("record violation without row index: %+v", v)
			continue
		}
		if v.Kind == types.ViolationInvalidDate && (*v.RowIndex != 2 || v.DocumentNumber != "RE-004") {
			t.Errorf("INVALID_DATE = row %d doc %q, want row 2 doc RE-004", *v.RowIndex, v.DocumentNumber)
		}
	}
}

func TestValidateSequenceGaps(t *testing.T) {
	tests := []struct {
		name     string
		docs     []string
		wantGaps int
		wantText []string
	}{
		{name: "gapless", docs: []string{"RE-001", "RE-002", "RE-003"}},
		{name: "one missing", docs: []string{"RE-001", "RE-003"}, wantGaps: 1, wantText: []string{"'RE-001'", "'RE-003'", "gap of 2"}},
		{name: "large gap", docs: []string{"INV-001", "INV-011"}, wantGaps: 1, wantText: []string{"'INV-001'", "'INV-011'", "gap of 10"}},
		{name: "unsorted input", docs: []string{"RE-005", "RE-001", "RE-002"}, wantGaps: 1, wantText: []string{"'RE-002'", "'RE-005'"}},
		{name: "non-numeric scheme", docs: []string{"A", "B"}},
		{name: "one non-numeric", docs: []string{"RE-001", "RE-X", "RE-009"}},
		{name: "mixed prefixes", docs: []string{"RE-001", "GS-005"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := make([]types.TransactionRecord, len(tt.docs))
			for i, d := range tt.docs {
				records[i] = record("15.01.2024", d, "Text", "1")
			}

			res, err := Validate(records)
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}

			var gaps []types.Violation
			for _, v := range res.Violations {
				if v.Kind == types.ViolationSequenceGap {
					gaps = append(gaps, v)
				}
			}
			if len(gaps) != tt.wantGaps {
				t.Fatalf("SEQUENCE_GAP count = %d, want %d: %+v", len(gaps), tt.wantGaps, gaps)
			}
			for _, want := range tt.wantText {
				if !strings.Contains(gaps[0].Detail, want) {
					t.Errorf("detail %q does not contain %q", gaps[0].Detail, want)
				}
			}
			if tt.wantGaps > 0 && gaps[0].RowIndex != nil {
				t.Error("SEQUENCE_GAP should not carry a row index")
			}
		})
	}
}

func TestFindSequenceGapsLongNumbers(t *testing.T) {
	gaps := FindSequenceGaps([]string{"X99999999999999999999998", "X99999999999999999999999", "X100000000000000000000002"})
	if len(gaps) != 1 {
		t.Fatalf("gaps = %+v, want 1", gaps)
	}
	if !gaps[0].Delta.Equal(decimal.NewFromInt(3)) {
		t.Errorf("Delta = %s, want 3", gaps[0].Delta)
	}
}

func TestValidateMultiYear(t *testing.T) {
	res, err := Validate([]types.TransactionRecord{
		record("28.12.2023", "RE-001", "Alt", "10"),
		record("02.01.2024", "RE-002", "Neu", "10"),
	})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	var wrong []types.Violation
	for _, v := range res.Violations {
		if v.Kind == types.ViolationWrongPeriod {
			wrong = append(wrong, v)
		}
	}
	if len(wrong) != 1 {
		t.Fatalf("WRONG_PERIOD count = %d, want 1", len(wrong))
	}
	if !strings.Contains(wrong[0].Detail, "2023") || !strings.Contains(wrong[0].Detail, "2024") {
		t.Errorf("detail %q should name both years", wrong[0].Detail)
	}
	if res.Valid {
		t.Error("Valid = true, want false")
	}
	if res.Summary.FiscalYear != 2024 || res.Summary.Period != "2024/01-12" {
		t.Errorf("Summary = %+v, want fiscal year 2024 period 2024/01-12", res.Summary)
	}
	if len(res.PreparedTransactions) != 2 {
		t.Error("multi-year records are still prepared")
	}
}

func TestValidateAllInvalidSummary(t *testing.T) {
	res, err := Validate([]types.TransactionRecord{record("", "", "", "")})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if res.Summary.Period != "unknown" || res.Summary.FiscalYear != 0 || res.Summary.TotalEntries != 0 {
		t.Errorf("Summary = %+v, want unknown/0/0", res.Summary)
	}
	if !res.Summary.TotalDebit.IsZero() || !res.Summary.TotalCredit.IsZero() {
		t.Error("totals should be zero")
	}
}

func TestValidateLogsMaskedText(t *testing.T) {
	buf := &bytes.Buffer{}
	v := New(WithLogger(zerolog.New(buf).Level(zerolog.DebugLevel)))

	_, err := v.Validate([]types.TransactionRecord{
		record("31.02.2024", "RE-001", "Zahlung an DE89370400440532013000", "1"),
	})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if strings.Contains(buf.String(), "DE89370400440532013000") {
		t.Errorf("log leaks IBAN: %s", buf.String())
	}
}

func TestFormatViolations(t *testing.T) {
	if got := FormatViolations(nil); got != "No GoBD violations." {
		t.Errorf("FormatViolations(nil) = %q", got)
	}

	row := 3
	out := FormatViolations([]types.Violation{
		{Kind: types.ViolationMissingField, RowIndex: &row, Detail: "Field 'account' is required but empty"},
		{Kind: types.ViolationSequenceGap, Detail: "gap"},
	})
	if !strings.Contains(out, "[MISSING_FIELD] row 3") || !strings.Contains(out, "[SEQUENCE_GAP] batch") {
		t.Errorf("FormatViolations() = %q", out)
	}
}
