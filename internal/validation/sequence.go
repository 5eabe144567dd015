package validation

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/gobd-datev-export/internal/types"
)

var trailingDigitsRegex = regexp.MustCompile(`(\d+)$`)

// SequenceGap is a break in document numbering between two adjacent
// numbers of the same series.
type SequenceGap struct {
	Before string
	After  string
	// Delta is the difference of the numeric suffixes, always > 1.
	Delta decimal.Decimal
}

// Violation converts the gap into a SEQUENCE_GAP finding.
func (g SequenceGap) Violation() types.Violation {
	missing := g.Delta.Sub(decimal.NewFromInt(1))
	return types.Violation{
		Kind:           types.ViolationSequenceGap,
		DocumentNumber: g.After,
		Field:          types.FieldDocumentNumber,
		Detail: fmt.Sprintf(
			"Gap in sequential document numbering between '%s' and '%s' (gap of %s, %s number(s) missing). GoBD requires gapless document numbering.",
			g.Before, g.After, g.Delta.String(), missing.String()),
	}
}

type seriesNumber struct {
	original string
	prefix   string
	suffix   decimal.Decimal
}

// splitDocumentNumber separates the trailing run of digits. ok is false
// when the number does not end in a digit.
func splitDocumentNumber(s string) (prefix string, suffix decimal.Decimal, ok bool) {
	loc := trailingDigitsRegex.FindStringIndex(s)
	if loc == nil {
		return "", decimal.Zero, false
	}
	n, err := decimal.NewFromString(s[loc[0]:loc[1]])
	if err != nil {
		return "", decimal.Zero, false
	}
	return s[:loc[0]], n, true
}

// FindSequenceGaps reports every adjacent pair of document numbers, sorted
// by numeric suffix, whose suffixes differ by more than one.
//
// The check is skipped, returning nil, when fewer than two numbers are
// given, when any number lacks trailing digits, or when the numbers belong
// to more than one prefix series. Mixed series are not compared at all, so
// gaps inside a multi-series batch go unreported.
func FindSequenceGaps(documentNumbers []string) []SequenceGap {
	if len(documentNumbers) < 2 {
		return nil
	}

	numbers := make([]seriesNumber, 0, len(documentNumbers))
	prefixes := make(map[string]struct{})
	for _, dn := range documentNumbers {
		prefix, suffix, ok := splitDocumentNumber(dn)
		if !ok {
			return nil
		}
		prefixes[prefix] = struct{}{}
		numbers = append(numbers, seriesNumber{original: dn, prefix: prefix, suffix: suffix})
	}
	if len(prefixes) > 1 {
		return nil
	}

	sort.SliceStable(numbers, func(i, j int) bool {
		return numbers[i].suffix.LessThan(numbers[j].suffix)
	})

	one := decimal.NewFromInt(1)
	var gaps []SequenceGap
	for i := 1; i < len(numbers); i++ {
		delta := numbers[i].suffix.Sub(numbers[i-1].suffix)
		if delta.GreaterThan(one) {
			gaps = append(gaps, SequenceGap{
				Before: numbers[i-1].original,
				After:  numbers[i].original,
				Delta:  delta,
			})
		}
	}
	return gaps
}
