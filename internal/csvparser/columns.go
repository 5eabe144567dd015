package csvparser

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/gobd-datev-export/internal/types"
)

// =============================================================================
// COLUMN ALIASES
// =============================================================================

// defaultAliases maps lower-cased header spellings to canonical field names.
// It is built once and never written.
var defaultAliases = map[string]string{
	// date
	"datum":      types.FieldDate,
	"date":       types.FieldDate,
	"belegdatum": types.FieldDate,

	// documentNumber
	"belegnummer":     types.FieldDocumentNumber,
	"beleg-nr":        types.FieldDocumentNumber,
	"belegnr":         types.FieldDocumentNumber,
	"rechnungsnummer": types.FieldDocumentNumber,
	"belegfeld 1":     types.FieldDocumentNumber,
	"documentnumber":  types.FieldDocumentNumber,
	"document_number": types.FieldDocumentNumber,

	// bookingText
	"buchungstext": types.FieldBookingText,
	"text":         types.FieldBookingText,
	"beschreibung": types.FieldBookingText,
	"bookingtext":  types.FieldBookingText,
	"booking_text": types.FieldBookingText,

	// amount
	"betrag":                      types.FieldAmount,
	"amount":                      types.FieldAmount,
	"umsatz":                      types.FieldAmount,
	"umsatz (ohne soll/haben-kz)": types.FieldAmount,

	// account
	"konto":   types.FieldAccount,
	"account": types.FieldAccount,

	// counterAccount
	"gegenkonto":                     types.FieldCounterAccount,
	"gegen-konto":                    types.FieldCounterAccount,
	"gegenk":                         types.FieldCounterAccount,
	"gegenkonto (ohne bu-schlüssel)": types.FieldCounterAccount,
	"counteraccount":                 types.FieldCounterAccount,
	"counter_account":                types.FieldCounterAccount,
}

// ColumnNormalizer maps header spellings to canonical field names.
// A ColumnNormalizer is read-only after construction and safe for
// concurrent use.
type ColumnNormalizer struct {
	aliases map[string]string
}

var defaultNormalizer = &ColumnNormalizer{aliases: defaultAliases}

// DefaultNormalizer returns the normalizer backed by the built-in alias table.
func DefaultNormalizer() *ColumnNormalizer {
	return defaultNormalizer
}

// NewColumnNormalizer returns a normalizer that knows the built-in aliases
// plus extra. Entries in extra win over built-in ones. The built-in table is
// copied, never modified.
func NewColumnNormalizer(extra map[string]string) (*ColumnNormalizer, error) {
	if len(extra) == 0 {
		return defaultNormalizer, nil
	}

	aliases := make(map[string]string, len(defaultAliases)+len(extra))
	for k, v := range defaultAliases {
		aliases[k] = v
	}
	for header, canonical := range extra {
		key := strings.ToLower(strings.TrimSpace(header))
		canonical = strings.TrimSpace(canonical)
		if key == "" || canonical == "" {
			return nil, fmt.Errorf("invalid column alias %q -> %q", header, canonical)
		}
		aliases[key] = canonical
	}

	return &ColumnNormalizer{aliases: aliases}, nil
}

// Normalize returns the canonical name for header, or the trimmed header
// itself when no alias matches.
func (n *ColumnNormalizer) Normalize(header string) string {
	trimmed := strings.TrimSpace(header)
	if canonical, ok := n.aliases[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	return trimmed
}

// NormalizeAll normalizes every header in order.
func (n *ColumnNormalizer) NormalizeAll(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = n.Normalize(h)
	}
	return out
}

// Normalize maps header through the built-in alias table.
func Normalize(header string) string {
	return defaultNormalizer.Normalize(header)
}

// MissingColumns returns the required canonical fields absent from
// normalized, in RequiredFields order.
func MissingColumns(normalized []string) []string {
	present := make(map[string]bool, len(normalized))
	for _, h := range normalized {
		present[h] = true
	}

	var missing []string
	for _, field := range types.RequiredFields {
		if !present[field] {
			missing = append(missing, field)
		}
	}
	return missing
}
