package types

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// VIOLATIONS
// =============================================================================

// ViolationKind tags a GoBD violation.
type ViolationKind string

const (
	ViolationMissingField  ViolationKind = "MISSING_FIELD"
	ViolationInvalidDate   ViolationKind = "INVALID_DATE"
	ViolationInvalidAmount ViolationKind = "INVALID_AMOUNT"
	ViolationSequenceGap   ViolationKind = "SEQUENCE_GAP"
	ViolationWrongPeriod   ViolationKind = "WRONG_PERIOD"

	// ViolationImmutabilityBreach is reserved. No rule produces it yet.
	ViolationImmutabilityBreach ViolationKind = "IMMUTABILITY_BREACH"
)

// Violation is a single compliance finding. RowIndex is nil for findings
// that concern the batch rather than one record.
type Violation struct {
	Kind           ViolationKind `json:"kind"`
	RowIndex       *int          `json:"rowIndex,omitempty"`
	DocumentNumber string        `json:"documentNumber,omitempty"`
	Field          string        `json:"field,omitempty"`
	Detail         string        `json:"detail"`
}

// =============================================================================
// VALIDATED TRANSACTIONS
// =============================================================================

// DebitCredit is the Soll/Haben indicator carrying the sign of an amount.
type DebitCredit string

const (
	Debit  DebitCredit = "S"
	Credit DebitCredit = "H"
)

// Valid reports whether d is one of the two DATEV flags.
func (d DebitCredit) Valid() bool {
	return d == Debit || d == Credit
}

// GoBDTransaction is an export-ready transaction. Amount is never negative;
// the sign lives in DebitCredit.
type GoBDTransaction struct {
	Date           string            `json:"date"`
	DocumentNumber string            `json:"documentNumber"`
	BookingText    string            `json:"bookingText"`
	Amount         decimal.Decimal   `json:"amount"`
	DebitCredit    DebitCredit       `json:"debitCredit"`
	Account        string            `json:"account"`
	CounterAccount string            `json:"counterAccount"`
	FiscalYear     int               `json:"fiscalYear"`
	FiscalPeriod   int               `json:"fiscalPeriod"`
	ExtraFields    map[string]string `json:"extraFields,omitempty"`
}

// ValidationSummary aggregates the transactions that passed validation.
type ValidationSummary struct {
	TotalEntries int             `json:"totalEntries"`
	TotalDebit   decimal.Decimal `json:"totalDebit"`
	TotalCredit  decimal.Decimal `json:"totalCredit"`

	// Period is "YYYY/MM", "YYYY/MM-MM" or "unknown".
	Period     string `json:"period"`
	FiscalYear int    `json:"fiscalYear"`
}

// HumanApprovalRequired is the fixed review policy attached to every
// validation result.
const HumanApprovalRequired = true

// ValidationResult is the outcome of a GoBD validation run.
type ValidationResult struct {
	Valid                 bool              `json:"valid"`
	Violations            []Violation       `json:"violations"`
	PreparedTransactions  []GoBDTransaction `json:"preparedTransactions"`
	Summary               ValidationSummary `json:"summary"`
	RequiresHumanApproval bool              `json:"requiresHumanApproval"`
}

// =============================================================================
// EXPORT
// =============================================================================

// DefaultAccountLength is the DATEV Sachkontenlänge used when none is given.
const DefaultAccountLength = 4

// ExportMetadata carries the DATEV header values for one export.
type ExportMetadata struct {
	// ConsultantNumber is the Beraternummer (4-7 digits).
	ConsultantNumber string `json:"consultantNumber" yaml:"consultant_number"`
	// ClientNumber is the Mandantennummer (1-5 digits).
	ClientNumber string `json:"clientNumber" yaml:"client_number"`
	// FiscalYearBegin is the Wirtschaftsjahresbeginn as YYYYMMDD.
	FiscalYearBegin string `json:"fiscalYearBegin" yaml:"fiscal_year_begin"`
	// AccountLength is the Sachkontenlänge (4-8). Zero means the default.
	AccountLength int    `json:"accountLength" yaml:"account_length"`
	Description   string `json:"description" yaml:"description"`
}

// ExportRequest is the input of the DATEV serializer.
type ExportRequest struct {
	Transactions []GoBDTransaction `json:"transactions"`
	Metadata     ExportMetadata    `json:"metadata"`
}
