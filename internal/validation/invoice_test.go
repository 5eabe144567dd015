package validation

import (
	"strings"
	"testing"

	"github.com/ginjaninja78/gobd-datev-export/internal/types"
)

func TestValidateInvoice(t *testing.T) {
	tests := []struct {
		name      string
		record    types.TransactionRecord
		previous  string
		wantValid bool
		wantError string
	}{
		{
			name:      "valid without previous",
			record:    record("15.01.2024", "RE-004", "Beratung", "500"),
			wantValid: true,
		},
		{
			name:      "valid continuation",
			record:    record("15.01.2024", "RE-004", "Beratung", "500"),
			previous:  "RE-003",
			wantValid: true,
		},
		{
			name:      "gap",
			record:    record("15.01.2024", "RE-005", "Beratung", "500"),
			previous:  "RE-003",
			wantError: "Sequence gap: 'RE-003' → 'RE-005' (expected 4, got 5)",
		},
		{
			name:      "not increasing",
			record:    record("15.01.2024", "RE-003", "Beratung", "500"),
			previous:  "RE-003",
			wantError: "is not greater than previous 'RE-003'",
		},
		{
			name:      "non-numeric previous is not compared",
			record:    record("15.01.2024", "RE-009", "Beratung", "500"),
			previous:  "ALT",
			wantValid: true,
		},
		{
			name:      "bad date",
			record:    record("31.02.2024", "RE-001", "Beratung", "500"),
			wantError: "Date '31.02.2024' is not a valid calendar date",
		},
		{
			name:      "missing amount",
			record:    record("15.01.2024", "RE-001", "Beratung", ""),
			wantError: "Amount is missing",
		},
		{
			name:      "missing booking text",
			record:    record("15.01.2024", "RE-001", "", "1"),
			wantError: "Required field 'bookingText' is missing or empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateInvoice(InvoiceCheck{Record: tt.record, PreviousDocumentNumber: tt.previous})
			if got.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v (errors: %v)", got.Valid, tt.wantValid, got.Errors)
			}
			if tt.wantError == "" {
				if len(got.Errors) != 0 {
					t.Errorf("Errors = %v, want none", got.Errors)
				}
				return
			}
			found := false
			for _, e := range got.Errors {
				if strings.Contains(e, tt.wantError) {
					found = true
				}
			}
			if !found {
				t.Errorf("Errors = %v, want one containing %q", got.Errors, tt.wantError)
			}
		})
	}
}
