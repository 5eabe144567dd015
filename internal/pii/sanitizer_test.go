package pii

import (
	"regexp"
	"testing"
)

func TestSanitizeMask(t *testing.T) {
	s := NewRegexSanitizer(nil)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "german iban",
			input: "Zahlung an DE89 3704 0044 0532 0130 00 erhalten",
			want:  "Zahlung an [IBAN REDACTED] erhalten",
		},
		{
			name:  "email",
			input: "Kontakt: max@example.com",
			want:  "Kontakt: [EMAIL REDACTED]",
		},
		{
			name:  "phone",
			input: "Tel. +49 30 1234567",
			want:  "Tel. [TELEFON REDACTED]",
		},
		{
			name:  "date of birth",
			input: "geb. 01.02.1980",
			want:  "[GEBURTSDATUM REDACTED]",
		},
		{
			name:  "person name",
			input: "Zahlung von Max Mustermann",
			want:  "Zahlung von [NAME REDACTED]",
		},
		{
			name:  "salutation is not a name",
			input: "Sehr Geehrte",
			want:  "Sehr Geehrte",
		},
		{
			name:  "nothing to redact",
			input: "Büromaterial lt. Rechnung 4711",
			want:  "Büromaterial lt. Rechnung 4711",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.input, ModeMask); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeRemove(t *testing.T) {
	s := NewRegexSanitizer(nil)
	got := s.Sanitize("Mail max@example.com bitte", ModeRemove)
	if got != "Mail  bitte" {
		t.Errorf("Sanitize remove = %q, want %q", got, "Mail  bitte")
	}
}

func TestSanitizeTokenize(t *testing.T) {
	store := NewCacheTokenStore(0)
	s := NewRegexSanitizer(store)

	got, entities := s.SanitizeDetailed("max@example.com", ModeTokenize)
	if !regexp.MustCompile(`^\[EMAIL_[0-9A-F]{8}\]$`).MatchString(got) {
		t.Fatalf("tokenized text = %q, want an EMAIL token", got)
	}
	if len(entities) != 1 || entities[0].Replacement != got {
		t.Fatalf("entities = %+v, want one entity carrying the token", entities)
	}

	original, ok := store.Resolve(got)
	if !ok || original != "max@example.com" {
		t.Errorf("Resolve(%q) = %q, %v; want the original address", got, original, ok)
	}
	if store.Len() != 1 {
		t.Errorf("store.Len() = %d, want 1", store.Len())
	}
}

func TestTokenizeWithoutStoreMasks(t *testing.T) {
	s := NewRegexSanitizer(nil)
	if got := s.Sanitize("max@example.com", ModeTokenize); got != "[EMAIL REDACTED]" {
		t.Errorf("Sanitize = %q, want mask fallback", got)
	}
}

func TestSeparateStoresDoNotShareTokens(t *testing.T) {
	a := NewCacheTokenStore(0)
	b := NewCacheTokenStore(0)

	token := NewRegexSanitizer(a).Sanitize("max@example.com", ModeTokenize)
	if _, ok := b.Resolve(token); ok {
		t.Error("token leaked into an unrelated store")
	}
}

func TestDetectOrdersAndSkipsOverlaps(t *testing.T) {
	text := "IBAN DE89370400440532013000, Mail a.b@example.org"
	entities := Detect(text)
	if len(entities) != 2 {
		t.Fatalf("Detect found %d entities, want 2: %+v", len(entities), entities)
	}
	if entities[0].Type != EntityIBAN || entities[1].Type != EntityEmail {
		t.Errorf("types = %s, %s; want IBAN, EMAIL", entities[0].Type, entities[1].Type)
	}
	if entities[0].Start > entities[1].Start {
		t.Error("entities not ordered by position")
	}
}

func TestParseMode(t *testing.T) {
	tests := map[string]Mode{
		"mask":     ModeMask,
		"REMOVE":   ModeRemove,
		"tokenize": ModeTokenize,
		"":         ModeMask,
		"bogus":    ModeMask,
	}
	for in, want := range tests {
		if got := ParseMode(in); got != want {
			t.Errorf("ParseMode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNop(t *testing.T) {
	if got := (Nop{}).Sanitize("max@example.com", ModeMask); got != "max@example.com" {
		t.Errorf("Nop.Sanitize = %q", got)
	}
}

