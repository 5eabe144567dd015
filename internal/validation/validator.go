// =============================================================================
// GoBD DATEV Export - GoBD Validation Engine
// =============================================================================
//
// This module checks parsed bookkeeping records against the GoBD rule set and
// prepares the records that pass for DATEV export.
//
// CHECKS PER RECORD:
//   - required text fields present          -> MISSING_FIELD
//   - date is a real DD.MM.YYYY date        -> INVALID_DATE
//   - amount present                        -> INVALID_AMOUNT
//   A record with any finding is left out of the prepared set.
//
// CHECKS PER BATCH (prepared records only):
//   - gapless document numbering            -> SEQUENCE_GAP
//   - a single fiscal year                  -> WRONG_PERIOD
//
// ERROR HANDLING:
//   - Findings are collected, never returned as errors.
//   - Only an empty input list is a fatal error.
//   - Every result requires human approval before export.
//
// =============================================================================

package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/gobd-datev-export/internal/locale"
	"github.com/ginjaninja78/gobd-datev-export/internal/pii"
	"github.com/ginjaninja78/gobd-datev-export/internal/types"
)

// requiredTextFields are re-checked on every record. The amount is checked
// separately because its absence is an INVALID_AMOUNT finding.
var requiredTextFields = []string{
	types.FieldDate,
	types.FieldDocumentNumber,
	types.FieldBookingText,
	types.FieldAccount,
	types.FieldCounterAccount,
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator runs GoBD checks. It holds no per-run state and is safe for
// concurrent use.
type Validator struct {
	log       zerolog.Logger
	sanitizer pii.Sanitizer
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the logger. The default logs nothing.
func WithLogger(log zerolog.Logger) Option {
	return func(v *Validator) { v.log = log }
}

// WithSanitizer sets the sanitizer applied to booking texts before they are
// logged.
func WithSanitizer(s pii.Sanitizer) Option {
	return func(v *Validator) { v.sanitizer = s }
}

// New creates a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{
		log:       zerolog.Nop(),
		sanitizer: pii.NewRegexSanitizer(nil),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs the GoBD checks with a default Validator.
func Validate(records []types.TransactionRecord) (*types.ValidationResult, error) {
	return New().Validate(records)
}

// =============================================================================
// MAIN VALIDATION FUNCTION
// =============================================================================

// Validate checks records and returns the findings, the prepared
// transactions and a summary.
//
// PARAMETERS:
//   - records: parsed records, in input order
//
// RETURNS:
//   - the validation result; Valid is true only without any violation
//   - types.ErrNoTransactions when records is empty
func (v *Validator) Validate(records []types.TransactionRecord) (*types.ValidationResult, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: nothing to validate", types.ErrNoTransactions)
	}

	result := &types.ValidationResult{
		Violations:            []types.Violation{},
		PreparedTransactions:  []types.GoBDTransaction{},
		RequiresHumanApproval: types.HumanApprovalRequired,
	}

	acc := newAccumulator()

	for idx := range records {
		record := &records[idx]

		findings := v.checkRecord(idx, record)
		if len(findings) > 0 {
			result.Violations = append(result.Violations, findings...)
			v.log.Debug().
				Int("row", idx).
				Int("violations", len(findings)).
				Str("bookingText", v.sanitizer.Sanitize(record.BookingText, pii.ModeMask)).
				Msg("record excluded")
			continue
		}

		// checkRecord has verified the date.
		date, _ := locale.ParseDate(record.Date)
		year, month := locale.FiscalPeriod(date)

		amount := record.Amount.Decimal
		flag := types.Debit
		if amount.IsNegative() {
			flag = types.Credit
		}
		acc.add(year, month, amount)

		result.PreparedTransactions = append(result.PreparedTransactions, types.GoBDTransaction{
			Date:           record.Date,
			DocumentNumber: record.DocumentNumber,
			BookingText:    record.BookingText,
			Amount:         amount.Abs(),
			DebitCredit:    flag,
			Account:        record.Account,
			CounterAccount: record.CounterAccount,
			FiscalYear:     year,
			FiscalPeriod:   month,
			ExtraFields:    record.ExtraFields,
		})
	}

	documentNumbers := make([]string, len(result.PreparedTransactions))
	for i, tx := range result.PreparedTransactions {
		documentNumbers[i] = tx.DocumentNumber
	}
	for _, gap := range FindSequenceGaps(documentNumbers) {
		result.Violations = append(result.Violations, gap.Violation())
	}

	if years := acc.distinctYears(); len(years) > 1 {
		result.Violations = append(result.Violations, types.Violation{
			Kind:  types.ViolationWrongPeriod,
			Field: types.FieldDate,
			Detail: fmt.Sprintf(
				"Transactions span multiple fiscal years: %s. Each DATEV export batch must cover a single fiscal year.",
				joinInts(years)),
		})
	}

	result.Summary = acc.summary(len(result.PreparedTransactions))
	result.Valid = len(result.Violations) == 0

	event := v.log.Info()
	if !result.Valid {
		event = v.log.Warn()
	}
	event.
		Int("records", len(records)).
		Int("prepared", len(result.PreparedTransactions)).
		Int("violations", len(result.Violations)).
		Bool("valid", result.Valid).
		Str("period", result.Summary.Period).
		Msg("gobd validation finished")

	return result, nil
}

// checkRecord re-validates one record and returns its findings.
func (v *Validator) checkRecord(idx int, r *types.TransactionRecord) []types.Violation {
	var findings []types.Violation

	add := func(kind types.ViolationKind, field, detail string) {
		row := idx
		findings = append(findings, types.Violation{
			Kind:           kind,
			RowIndex:       &row,
			DocumentNumber: strings.TrimSpace(r.DocumentNumber),
			Field:          field,
			Detail:         detail,
		})
	}

	values := map[string]string{
		types.FieldDate:           r.Date,
		types.FieldDocumentNumber: r.DocumentNumber,
		types.FieldBookingText:    r.BookingText,
		types.FieldAccount:        r.Account,
		types.FieldCounterAccount: r.CounterAccount,
	}
	for _, field := range requiredTextFields {
		if strings.TrimSpace(values[field]) == "" {
			add(types.ViolationMissingField, field, fmt.Sprintf("Field '%s' is required but empty", field))
		}
	}

	if strings.TrimSpace(r.Date) != "" {
		if _, err := locale.ParseDate(r.Date); err != nil {
			add(types.ViolationInvalidDate, types.FieldDate, err.Error())
		}
	}

	if !r.Amount.Valid {
		add(types.ViolationInvalidAmount, types.FieldAmount, "Amount is missing")
	}

	return findings
}

// =============================================================================
// TOTALS AND PERIOD
// =============================================================================

type accumulator struct {
	debit, credit decimal.Decimal
	years         map[int]struct{}
	maxYear       int
	minMonth      int
	maxMonth      int
}

func newAccumulator() *accumulator {
	return &accumulator{
		debit:  decimal.Zero,
		credit: decimal.Zero,
		years:  make(map[int]struct{}),
	}
}

func (a *accumulator) add(year, month int, amount decimal.Decimal) {
	if amount.IsNegative() {
		a.credit = a.credit.Add(amount.Abs())
	} else {
		a.debit = a.debit.Add(amount)
	}

	if len(a.years) == 0 {
		a.minMonth, a.maxMonth = month, month
	}
	a.years[year] = struct{}{}
	if year > a.maxYear {
		a.maxYear = year
	}
	if month < a.minMonth {
		a.minMonth = month
	}
	if month > a.maxMonth {
		a.maxMonth = month
	}
}

func (a *accumulator) distinctYears() []int {
	years := make([]int, 0, len(a.years))
	for y := range a.years {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// summary reports the month range of all prepared records against the
// latest fiscal year seen.
func (a *accumulator) summary(entries int) types.ValidationSummary {
	s := types.ValidationSummary{
		TotalEntries: entries,
		TotalDebit:   a.debit,
		TotalCredit:  a.credit,
		Period:       "unknown",
	}
	if len(a.years) == 0 {
		return s
	}

	s.FiscalYear = a.maxYear
	if a.minMonth == a.maxMonth {
		s.Period = fmt.Sprintf("%d/%02d", a.maxYear, a.minMonth)
	} else {
		s.Period = fmt.Sprintf("%d/%02d-%02d", a.maxYear, a.minMonth, a.maxMonth)
	}
	return s
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}

// =============================================================================
// FORMATTING
// =============================================================================

// FormatViolations renders violations for terminal output.
func FormatViolations(violations []types.Violation) string {
	if len(violations) == 0 {
		return "No GoBD violations."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("GoBD validation found %d violation(s):\n\n", len(violations)))

	for i, v := range violations {
		location := "batch"
		if v.RowIndex != nil {
			location = fmt.Sprintf("row %d", *v.RowIndex)
		}
		builder.WriteString(fmt.Sprintf("%d. [%s] %s: %s\n", i+1, v.Kind, location, v.Detail))
	}

	return builder.String()
}
