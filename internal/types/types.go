// =============================================================================
// GoBD DATEV Export - Shared Types
// =============================================================================
//
// This package contains the value types that flow through the pipeline. They
// live here so that every stage can import them without importing each other:
//   - csvparser / xlsxparser produce TransactionRecord and RowError
//   - validation produces Violation, GoBDTransaction and ValidationResult
//   - extfwriter consumes ExportRequest
//
// All types are plain values. Nothing in this package holds shared state.
//
// =============================================================================

package types

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// CANONICAL FIELD NAMES
// =============================================================================

// Canonical column names produced by the column normalizer.
const (
	FieldDate           = "date"
	FieldDocumentNumber = "documentNumber"
	FieldBookingText    = "bookingText"
	FieldAmount         = "amount"
	FieldAccount        = "account"
	FieldCounterAccount = "counterAccount"
)

// RequiredFields lists the canonical columns every input must provide,
// in the order they are reported.
var RequiredFields = []string{
	FieldDate,
	FieldDocumentNumber,
	FieldBookingText,
	FieldAmount,
	FieldAccount,
	FieldCounterAccount,
}

// =============================================================================
// PARSE STAGE
// =============================================================================

// TransactionRecord is a single bookkeeping row after parsing and before
// compliance validation.
type TransactionRecord struct {
	// Date is the booking date in its source form, DD.MM.YYYY.
	Date string `json:"date"`

	DocumentNumber string `json:"documentNumber"`
	BookingText    string `json:"bookingText"`

	// Amount is signed. Valid is false when the row carried no amount.
	Amount decimal.NullDecimal `json:"amount"`

	Account        string `json:"account"`
	CounterAccount string `json:"counterAccount"`

	// ExtraFields holds passthrough columns keyed by their header name.
	ExtraFields map[string]string `json:"extraFields,omitempty"`
}

// RowError describes one failing field of one input row.
type RowError struct {
	// RowIndex is the 0-based index of the data row (the header is not counted).
	RowIndex int    `json:"rowIndex"`
	Field    string `json:"field"`
	Message  string `json:"message"`
}

// ParseResult is the outcome of parsing one input file.
type ParseResult struct {
	Rows      []TransactionRecord `json:"rows"`
	RowErrors []RowError          `json:"rowErrors"`

	// TotalRows counts non-empty data rows.
	TotalRows int `json:"totalRows"`
	// ValidRows counts rows that made it into Rows.
	ValidRows int `json:"validRows"`
	// InvalidRows counts rows with at least one RowError.
	InvalidRows int `json:"invalidRows"`

	EncodingUsed string `json:"encodingUsed"`
	Delimiter    string `json:"delimiter,omitempty"`
}
