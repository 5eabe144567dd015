// =============================================================================
// GoBD DATEV Export - Transformation Engine
// =============================================================================
//
// This module rewrites raw cell values before a row is validated, so that a
// client's export quirks can be fixed in configuration instead of by hand.
//
// TRANSFORMATION TYPES:
//   - String manipulations (trim, case conversion, prepend, append)
//   - Replacements (literal and regular expression)
//   - Numeric formatting (zero padding, leading zero removal, digit
//     extraction)
//   - Lookup tables and defaults for empty cells
//
// CLIENT-SPECIFIC RULES:
//   Rules come from the main config and from the matching client profile.
//   Typical uses:
//   - Padding account numbers to the DATEV account length
//   - Mapping a client's internal account codes to SKR03/SKR04 accounts
//   - Stripping a prefix from document numbers
//
// All rules are checked and compiled when the Transformer is built. A bad
// rule is a configuration error, never a per-row failure.
//
// =============================================================================

package converter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ginjaninja78/gobd-datev-export/internal/config"
	"github.com/ginjaninja78/gobd-datev-export/internal/csvparser"
)

// Supported action types.
const (
	ActionTrim               = "trim"
	ActionUppercase          = "uppercase"
	ActionLowercase          = "lowercase"
	ActionPrependString      = "prepend_string"
	ActionAppendString       = "append_string"
	ActionReplace            = "replace"
	ActionRegexReplace       = "regex_replace"
	ActionPadZerosToLength   = "pad_zeros_to_length"
	ActionRemoveLeadingZeros = "remove_leading_zeros"
	ActionExtractDigits      = "extract_digits"
	ActionLookup             = "lookup"
	ActionIfEmptyUseDefault  = "if_empty_use_default"
)

var digitsRegex = regexp.MustCompile(`\d+`)

// =============================================================================
// TRANSFORMER
// =============================================================================

// step is a checked action ready to run.
type step struct {
	action config.TransformationAction
	re     *regexp.Regexp
	length int
}

// Transformer applies configured actions to cell values. It is read-only
// after construction and safe for concurrent use.
type Transformer struct {
	steps map[string][]step
}

// NewTransformer checks and compiles the given rules. Rules for the same
// field are concatenated in order.
func NewTransformer(rules []config.TransformationRule) (*Transformer, error) {
	t := &Transformer{steps: make(map[string][]step)}

	for _, rule := range rules {
		field := strings.TrimSpace(rule.Field)
		if field == "" {
			return nil, fmt.Errorf("transformation rule without field")
		}
		for _, action := range rule.Actions {
			s, err := compileStep(action)
			if err != nil {
				return nil, fmt.Errorf("field '%s': %w", field, err)
			}
			t.steps[field] = append(t.steps[field], s)
		}
	}

	return t, nil
}

func compileStep(action config.TransformationAction) (step, error) {
	s := step{action: action}

	switch action.Type {
	case ActionTrim, ActionUppercase, ActionLowercase,
		ActionPrependString, ActionAppendString, ActionReplace,
		ActionRemoveLeadingZeros, ActionExtractDigits,
		ActionLookup, ActionIfEmptyUseDefault:

	case ActionRegexReplace:
		if action.Find == "" {
			return s, fmt.Errorf("transformation '%s' needs a find pattern", action.Type)
		}
		re, err := regexp.Compile(action.Find)
		if err != nil {
			return s, fmt.Errorf("transformation '%s': invalid regex pattern: %w", action.Type, err)
		}
		s.re = re

	case ActionPadZerosToLength:
		n, err := strconv.Atoi(strings.TrimSpace(action.Value))
		if err != nil || n <= 0 {
			return s, fmt.Errorf("transformation '%s' needs a positive length, got %q", action.Type, action.Value)
		}
		s.length = n

	default:
		return s, fmt.Errorf("unknown transformation type: %s", action.Type)
	}

	return s, nil
}

// Empty reports whether the transformer has no rules.
func (t *Transformer) Empty() bool {
	return t == nil || len(t.steps) == 0
}

// Transform applies the rules for field to value. Fields without rules are
// returned unchanged.
func (t *Transformer) Transform(field, value string) string {
	if t == nil {
		return value
	}
	for _, s := range t.steps[field] {
		value = s.apply(value)
	}
	return value
}

// Func returns the transformer as a parser hook, or nil when there is
// nothing to apply.
func (t *Transformer) Func() csvparser.TransformFunc {
	if t.Empty() {
		return nil
	}
	return t.Transform
}

// =============================================================================
// TRANSFORMATION FUNCTIONS
// =============================================================================

// apply runs one action.
//
// EXAMPLES:
//
//	pad_zeros_to_length "8":  "4930"       -> "00004930"
//	remove_leading_zeros:     "0001200"    -> "1200"
//	extract_digits:           "Konto 1200" -> "1200"
//	lookup {"KASSE": "1000"}: "KASSE"      -> "1000"
func (s step) apply(value string) string {
	a := s.action

	switch a.Type {
	case ActionTrim:
		return strings.TrimSpace(value)

	case ActionUppercase:
		return strings.ToUpper(value)

	case ActionLowercase:
		return strings.ToLower(value)

	case ActionPrependString:
		return a.Value + value

	case ActionAppendString:
		return value + a.Value

	case ActionReplace:
		if a.Find == "" {
			return value
		}
		return strings.ReplaceAll(value, a.Find, a.Value)

	case ActionRegexReplace:
		return s.re.ReplaceAllString(value, a.Value)

	case ActionPadZerosToLength:
		return PadLeft(value, s.length, '0')

	case ActionRemoveLeadingZeros:
		if value == "" {
			return value
		}
		trimmed := strings.TrimLeft(value, "0")
		if trimmed == "" {
			return "0"
		}
		return trimmed

	case ActionExtractDigits:
		return strings.Join(digitsRegex.FindAllString(value, -1), "")

	case ActionLookup:
		if replacement, ok := a.LookupTable[value]; ok {
			return replacement
		}
		return value

	case ActionIfEmptyUseDefault:
		if strings.TrimSpace(value) == "" {
			return a.Value
		}
		return value
	}

	return value
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// PadLeft pads s on the left with padChar up to length characters.
func PadLeft(s string, length int, padChar rune) string {
	n := len([]rune(s))
	if n >= length {
		return s
	}
	return strings.Repeat(string(padChar), length-n) + s
}
