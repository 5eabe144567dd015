package csvparser

import (
	"reflect"
	"testing"

	"github.com/ginjaninja78/gobd-datev-export/internal/types"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Datum", types.FieldDate},
		{"BELEGDATUM", types.FieldDate},
		{" date ", types.FieldDate},
		{"Beleg-Nr", types.FieldDocumentNumber},
		{"belegnr", types.FieldDocumentNumber},
		{"Rechnungsnummer", types.FieldDocumentNumber},
		{"Buchungstext", types.FieldBookingText},
		{"Beschreibung", types.FieldBookingText},
		{"Umsatz", types.FieldAmount},
		{"Betrag", types.FieldAmount},
		{"Konto", types.FieldAccount},
		{"Gegen-Konto", types.FieldCounterAccount},
		{"Gegenkonto (ohne BU-Schlüssel)", types.FieldCounterAccount},
		{"documentNumber", types.FieldDocumentNumber},
		{"Kostenstelle", "Kostenstelle"},
		{"  Notiz ", "Notiz"},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			if got := Normalize(tt.header); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestMissingColumns(t *testing.T) {
	got := MissingColumns([]string{types.FieldDate, types.FieldAmount, "Kostenstelle"})
	want := []string{types.FieldDocumentNumber, types.FieldBookingText, types.FieldAccount, types.FieldCounterAccount}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MissingColumns() = %v, want %v", got, want)
	}

	if got := MissingColumns(types.RequiredFields); len(got) != 0 {
		t.Errorf("MissingColumns(all) = %v, want none", got)
	}
}

func TestNewColumnNormalizerLeavesDefaultsUntouched(t *testing.T) {
	n, err := NewColumnNormalizer(map[string]string{
		"Soll-Konto": types.FieldAccount,
		"Text":       "Notiz",
	})
	if err != nil {
		t.Fatalf("NewColumnNormalizer() error = %v", err)
	}

	if got := n.Normalize("soll-konto"); got != types.FieldAccount {
		t.Errorf("custom Normalize(soll-konto) = %q", got)
	}
	if got := n.Normalize("Text"); got != "Notiz" {
		t.Errorf("custom alias should override built-in, got %q", got)
	}
	if got := Normalize("Text"); got != types.FieldBookingText {
		t.Errorf("built-in table was modified: Normalize(Text) = %q", got)
	}
	if got := Normalize("Soll-Konto"); got != "Soll-Konto" {
		t.Errorf("built-in table was modified: Normalize(Soll-Konto) = %q", got)
	}
}

func TestNewColumnNormalizerRejectsEmpty(t *testing.T) {
	if _, err := NewColumnNormalizer(map[string]string{"Konto 2": " "}); err == nil {
		t.Error("expected error for empty canonical name")
	}
	n, err := NewColumnNormalizer(nil)
	if err != nil || n != DefaultNormalizer() {
		t.Error("nil extra should return the default normalizer")
	}
}
