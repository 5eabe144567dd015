// =============================================================================
// GoBD DATEV Export - PII Sanitizer
// =============================================================================
//
// Booking texts regularly contain IBANs, e-mail addresses, phone numbers and
// customer names. The pipeline never changes the data it returns, but every
// booking text that reaches a log line goes through a Sanitizer first.
//
// MODES:
//   mask     - replace each entity with a typed label, e.g. [IBAN REDACTED]
//   remove   - drop each entity
//   tokenize - replace each entity with a token such as [IBAN_1A2B3C4D] and
//              remember the original in a caller-supplied TokenStore
//
// =============================================================================

package pii

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Mode selects how detected entities are replaced.
type Mode string

const (
	ModeMask     Mode = "mask"
	ModeRemove   Mode = "remove"
	ModeTokenize Mode = "tokenize"
)

// ParseMode maps a mode name to a Mode. Unknown names yield ModeMask.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeRemove:
		return ModeRemove
	case ModeTokenize:
		return ModeTokenize
	default:
		return ModeMask
	}
}

// Sanitizer scrubs personal data from free text.
type Sanitizer interface {
	Sanitize(text string, mode Mode) string
}

// TokenStore keeps token to original mappings for tokenize mode. Stores are
// owned by the caller and scoped to one session.
type TokenStore interface {
	Put(token, original string)
}

// Entity is one detected piece of personal data. Start and End are byte
// offsets into the scanned text.
type Entity struct {
	Type        string `json:"type"`
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
}

// RegexSanitizer detects entities with a fixed set of regular expressions.
// It is safe for concurrent use as long as its TokenStore is.
type RegexSanitizer struct {
	tokens TokenStore
}

// NewRegexSanitizer creates a sanitizer. tokens may be nil, in which case
// tokenize mode falls back to masking.
func NewRegexSanitizer(tokens TokenStore) *RegexSanitizer {
	return &RegexSanitizer{tokens: tokens}
}

// Sanitize returns text with every detected entity replaced according to mode.
func (s *RegexSanitizer) Sanitize(text string, mode Mode) string {
	sanitized, _ := s.SanitizeDetailed(text, mode)
	return sanitized
}

// SanitizeDetailed returns the sanitized text plus the entities that were
// replaced, in order of appearance.
func (s *RegexSanitizer) SanitizeDetailed(text string, mode Mode) (string, []Entity) {
	entities := Detect(text)
	if len(entities) == 0 {
		return text, nil
	}

	for i := range entities {
		entities[i].Replacement = s.replacement(entities[i], mode)
	}

	// Right to left so earlier offsets stay valid.
	out := text
	for i := len(entities) - 1; i >= 0; i-- {
		e := entities[i]
		out = out[:e.Start] + e.Replacement + out[e.End:]
	}
	return out, entities
}

func (s *RegexSanitizer) replacement(e Entity, mode Mode) string {
	switch mode {
	case ModeRemove:
		return ""
	case ModeTokenize:
		if s.tokens == nil {
			break
		}
		id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
		token := fmt.Sprintf("[%s_%s]", e.Type, id)
		s.tokens.Put(token, e.Original)
		return token
	}

	if m, ok := masks[e.Type]; ok {
		return m
	}
	return defaultMask
}

// =============================================================================
// DETECTION
// =============================================================================

type spanSet [][2]int

func (s spanSet) overlaps(start, end int) bool {
	for _, sp := range s {
		if start < sp[1] && end > sp[0] {
			return true
		}
	}
	return false
}

// Detect finds personal data in text. More specific patterns run first and
// claim their spans; later overlapping matches are dropped.
func Detect(text string) []Entity {
	var (
		seen     spanSet
		entities []Entity
	)

	add := func(typ, original string, start, end int) {
		if seen.overlaps(start, end) {
			return
		}
		seen = append(seen, [2]int{start, end})
		entities = append(entities, Entity{Type: typ, Original: original, Start: start, End: end})
	}

	for _, re := range []*regexp.Regexp{ibanDERegex, ibanGenericRegex} {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			add(EntityIBAN, text[loc[0]:loc[1]], loc[0], loc[1])
		}
	}

	for _, loc := range emailRegex.FindAllStringIndex(text, -1) {
		add(EntityEmail, text[loc[0]:loc[1]], loc[0], loc[1])
	}

	for _, loc := range phoneRegex.FindAllStringIndex(text, -1) {
		original := strings.TrimSpace(text[loc[0]:loc[1]])
		if len(nonDigitRegex.ReplaceAllString(original, "")) >= 6 {
			add(EntityPhone, original, loc[0], loc[1])
		}
	}

	for _, loc := range dateOfBirthRegex.FindAllStringIndex(text, -1) {
		add(EntityDateOfBirth, text[loc[0]:loc[1]], loc[0], loc[1])
	}

	for _, loc := range taxIDRegex.FindAllStringIndex(text, -1) {
		add(EntityTaxID, text[loc[0]:loc[1]], loc[0], loc[1])
	}

	for _, loc := range personalIDRegex.FindAllStringIndex(text, -1) {
		add(EntityPersonalID, text[loc[0]:loc[1]], loc[0], loc[1])
	}

	for _, loc := range nameRegex.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[2], loc[3]
		candidate := text[start:end]
		if isLikelyName(candidate) {
			add(EntityName, candidate, start, end)
		}
	}

	sort.Slice(entities, func(i, j int) bool {
		return entities[i].Start < entities[j].Start
	})
	return entities
}

// =============================================================================
// NOP
// =============================================================================

// Nop returns text unchanged. Use it only where nothing is logged.
type Nop struct{}

// Sanitize implements Sanitizer.
func (Nop) Sanitize(text string, _ Mode) string { return text }
