package validation

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/gobd-datev-export/internal/locale"
	"github.com/ginjaninja78/gobd-datev-export/internal/types"
)

// InvoiceCheck is a single record checked on entry, optionally against the
// document number issued before it.
type InvoiceCheck struct {
	Record                 types.TransactionRecord `json:"record"`
	PreviousDocumentNumber string                  `json:"previousDocumentNumber,omitempty"`
}

// InvoiceResult lists every problem found in one record.
type InvoiceResult struct {
	Valid          bool     `json:"valid"`
	DocumentNumber string   `json:"documentNumber"`
	Errors         []string `json:"errors"`
}

// ValidateInvoice checks one record: required fields, the date, the amount
// and, when a previous number is given, that the numbering continues
// without a gap.
func ValidateInvoice(check InvoiceCheck) InvoiceResult {
	r := check.Record
	errs := []string{}

	for _, f := range []struct{ name, value string }{
		{types.FieldDate, r.Date},
		{types.FieldDocumentNumber, r.DocumentNumber},
		{types.FieldBookingText, r.BookingText},
		{types.FieldAccount, r.Account},
		{types.FieldCounterAccount, r.CounterAccount},
	} {
		if strings.TrimSpace(f.value) == "" {
			errs = append(errs, fmt.Sprintf("Required field '%s' is missing or empty", f.name))
		}
	}

	if strings.TrimSpace(r.Date) != "" {
		if _, err := locale.ParseDate(r.Date); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if !r.Amount.Valid {
		errs = append(errs, "Amount is missing")
	}

	prev := strings.TrimSpace(check.PreviousDocumentNumber)
	curr := strings.TrimSpace(r.DocumentNumber)
	if prev != "" && curr != "" {
		if msg := continuityError(prev, curr); msg != "" {
			errs = append(errs, msg)
		}
	}

	return InvoiceResult{
		Valid:          len(errs) == 0,
		DocumentNumber: r.DocumentNumber,
		Errors:         errs,
	}
}

// continuityError compares the trailing numbers of two document numbers.
// Numbers without trailing digits are not compared.
func continuityError(prev, curr string) string {
	_, prevNum, ok := splitDocumentNumber(prev)
	if !ok {
		return ""
	}
	_, currNum, ok := splitDocumentNumber(curr)
	if !ok {
		return ""
	}

	next := prevNum.Add(decimal.NewFromInt(1))
	switch {
	case currNum.GreaterThan(next):
		return fmt.Sprintf("Sequence gap: '%s' → '%s' (expected %s, got %s)", prev, curr, next, currNum)
	case currNum.LessThanOrEqual(prevNum):
		return fmt.Sprintf("Document number '%s' is not greater than previous '%s'", curr, prev)
	}
	return ""
}
