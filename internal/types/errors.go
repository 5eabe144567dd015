package types

import "errors"

// Fatal errors. Each aborts the operation that returns it; callers match
// them with errors.Is.
var (
	ErrEmptyInput        = errors.New("input is empty")
	ErrInputTooLarge     = errors.New("input exceeds size limit")
	ErrMissingColumns    = errors.New("missing required columns")
	ErrNoTransactions    = errors.New("no transactions")
	ErrInvalidMetadata   = errors.New("invalid export metadata")
	ErrTransactionFormat = errors.New("transaction cannot be formatted")
)
