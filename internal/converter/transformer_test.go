package converter

import (
	"testing"

	"github.com/ginjaninja78/gobd-datev-export/internal/config"
)

func TestTransformActions(t *testing.T) {
	tests := []struct {
		name   string
		action config.TransformationAction
		input  string
		want   string
	}{
		{"trim", config.TransformationAction{Type: ActionTrim}, "  4930 ", "4930"},
		{"uppercase", config.TransformationAction{Type: ActionUppercase}, "re-001", "RE-001"},
		{"lowercase", config.TransformationAction{Type: ActionLowercase}, "MIETE", "miete"},
		{"prepend", config.TransformationAction{Type: ActionPrependString, Value: "RE-"}, "001", "RE-001"},
		{"append", config.TransformationAction{Type: ActionAppendString, Value: "-A"}, "RE-1", "RE-1-A"},
		{"replace", config.TransformationAction{Type: ActionReplace, Find: "/", Value: "-"}, "RE/001", "RE-001"},
		{"replace without find", config.TransformationAction{Type: ActionReplace}, "RE/001", "RE/001"},
		{"regex replace", config.TransformationAction{Type: ActionRegexReplace, Find: `^INV`, Value: "RE"}, "INV-7", "RE-7"},
		{"pad zeros", config.TransformationAction{Type: ActionPadZerosToLength, Value: "6"}, "4930", "004930"},
		{"pad zeros already long", config.TransformationAction{Type: ActionPadZerosToLength, Value: "3"}, "4930", "4930"},
		{"remove leading zeros", config.TransformationAction{Type: ActionRemoveLeadingZeros}, "0001200", "1200"},
		{"remove leading zeros all zero", config.TransformationAction{Type: ActionRemoveLeadingZeros}, "000", "0"},
		{"remove leading zeros empty", config.TransformationAction{Type: ActionRemoveLeadingZeros}, "", ""},
		{"extract digits", config.TransformationAction{Type: ActionExtractDigits}, "Konto 12-00", "1200"},
		{"lookup hit", config.TransformationAction{Type: ActionLookup, LookupTable: map[string]string{"KASSE": "1000"}}, "KASSE", "1000"},
		{"lookup miss", config.TransformationAction{Type: ActionLookup, LookupTable: map[string]string{"KASSE": "1000"}}, "BANK", "BANK"},
		{"default when empty", config.TransformationAction{Type: ActionIfEmptyUseDefault, Value: "1200"}, " ", "1200"},
		{"default keeps value", config.TransformationAction{Type: ActionIfEmptyUseDefault, Value: "1200"}, "1800", "1800"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := NewTransformer([]config.TransformationRule{
				{Field: "account", Actions: []config.TransformationAction{tt.action}},
			})
			if err != nil {
				t.Fatalf("NewTransformer() error = %v", err)
			}
			if got := tr.Transform("account", tt.input); got != tt.want {
				t.Errorf("Transform(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTransformChainsAndScopes(t *testing.T) {
	tr, err := NewTransformer([]config.TransformationRule{
		{Field: "documentNumber", Actions: []config.TransformationAction{
			{Type: ActionExtractDigits},
			{Type: ActionPadZerosToLength, Value: "4"},
		}},
		{Field: "documentNumber", Actions: []config.TransformationAction{
			{Type: ActionPrependString, Value: "RE-"},
		}},
	})
	if err != nil {
		t.Fatalf("NewTransformer() error = %v", err)
	}

	if got := tr.Transform("documentNumber", "Nr. 7"); got != "RE-0007" {
		t.Errorf("chained = %q, want RE-0007", got)
	}
	if got := tr.Transform("bookingText", "Nr. 7"); got != "Nr. 7" {
		t.Errorf("other field changed: %q", got)
	}
	if tr.Func() == nil {
		t.Error("Func() = nil for a transformer with rules")
	}
}

func TestNewTransformerRejectsBadRules(t *testing.T) {
	tests := []struct {
		name string
		rule config.TransformationRule
	}{
		{"unknown type", config.TransformationRule{Field: "account", Actions: []config.TransformationAction{{Type: "title_case"}}}},
		{"bad regex", config.TransformationRule{Field: "account", Actions: []config.TransformationAction{{Type: ActionRegexReplace, Find: "("}}}},
		{"regex without find", config.TransformationRule{Field: "account", Actions: []config.TransformationAction{{Type: ActionRegexReplace}}}},
		{"bad length", config.TransformationRule{Field: "account", Actions: []config.TransformationAction{{Type: ActionPadZerosToLength, Value: "x"}}}},
		{"no field", config.TransformationRule{Actions: []config.TransformationAction{{Type: ActionTrim}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTransformer([]config.TransformationRule{tt.rule}); err == nil {
				t.Error("NewTransformer() error = nil, want error")
			}
		})
	}
}

func TestEmptyTransformer(t *testing.T) {
	tr, err := NewTransformer(nil)
	if err != nil {
		t.Fatalf("NewTransformer(nil) error = %v", err)
	}
	if !tr.Empty() || tr.Func() != nil {
		t.Error("empty transformer should yield no hook")
	}

	var nilTr *Transformer
	if got := nilTr.Transform("account", "x"); got != "x" {
		t.Errorf("nil Transform = %q", got)
	}
}

func TestPadLeft(t *testing.T) {
	if got := PadLeft("ä1", 4, '0'); got != "00ä1" {
		t.Errorf("PadLeft() = %q, want padding by characters", got)
	}
}
