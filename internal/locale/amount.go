// =============================================================================
// GoBD DATEV Export - Locale Parsing
// =============================================================================
//
// German bookkeeping exports mix two number conventions: "1.234,56" (German)
// and "1,234.56" (English). This package turns both into exact decimals and
// handles the DD.MM.YYYY date form used throughout the input files.
//
// DISAMBIGUATION RULE:
//   - both ',' and '.' present: the one occurring last is the decimal
//     separator, the other is a thousands separator and is removed
//   - only ',' present: ',' is the decimal separator
//   - only '.' present, or neither: the value is already canonical
//
// =============================================================================

package locale

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is wrapped by every amount parse failure.
var ErrInvalidAmount = errors.New("invalid amount")

// numericRegex accepts a canonical decimal literal after separator
// normalization: optional sign, digits with optional fraction, optional
// exponent.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// ParseError reports a raw value that could not be read as an amount.
type ParseError struct {
	Raw        string
	Normalized string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("Amount '%s' is not a valid number", e.Raw)
}

func (e *ParseError) Unwrap() error {
	return ErrInvalidAmount
}

// ParseAmount converts a German or English formatted number into an exact
// decimal. Sign and full precision are preserved.
func ParseAmount(raw string) (decimal.Decimal, error) {
	normalized := NormalizeAmount(raw)
	if !numericRegex.MatchString(normalized) {
		return decimal.Zero, &ParseError{Raw: raw, Normalized: normalized}
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, &ParseError{Raw: raw, Normalized: normalized}
	}
	return d, nil
}

// NormalizeAmount rewrites raw into canonical '.'-decimal form without
// validating it.
func NormalizeAmount(raw string) string {
	s := strings.TrimSpace(raw)

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		s = strings.ReplaceAll(s, ",", ".")
	}

	return s
}

// FormatDatevAmount renders the absolute value of d with two decimals, a
// comma separator and no grouping, e.g. 1190,00.
func FormatDatevAmount(d decimal.Decimal) string {
	return strings.Replace(d.Abs().StringFixed(2), ".", ",", 1)
}
