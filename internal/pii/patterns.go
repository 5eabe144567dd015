package pii

import (
	"regexp"
	"strings"
)

// Entity types reported by the detector.
const (
	EntityIBAN        = "IBAN"
	EntityTaxID       = "TAX_ID"
	EntityPersonalID  = "PERSONAL_ID"
	EntityEmail       = "EMAIL"
	EntityPhone       = "PHONE"
	EntityDateOfBirth = "DATE_OF_BIRTH"
	EntityName        = "NAME"
)

// Detection patterns. They are compiled once and only ever read.
var (
	ibanDERegex = regexp.MustCompile(
		`(?i)\bDE\d{2} ?\d{4} ?\d{4} ?\d{4} ?\d{4} ?\d{2}\b`)

	ibanGenericRegex = regexp.MustCompile(
		`(?i)\b[A-Z]{2}\d{2}(?: ?[A-Z0-9]{4}){2,7}[A-Z0-9]{0,4}\b`)

	emailRegex = regexp.MustCompile(
		`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)

	phoneRegex = regexp.MustCompile(
		`(?:\+49|0049)[\s\-]?(?:\(0\))?[\s\-]?\d{2,5}[\s\-]?\d{3,}[\s\-]?\d{0,4}` +
			`|(?:\(0\d{2,5}\)|0\d{2,5})[\s\-]?\d{3,}[\s\-]?\d{0,4}`)

	dateOfBirthRegex = regexp.MustCompile(
		`(?i)(?:geb(?:oren|\.)?|born|dob|geburtsdatum)[:\s]+` +
			`(\d{1,2}[.\-/]\d{1,2}[.\-/]\d{2,4}|\d{4}[.\-/]\d{1,2}[.\-/]\d{1,2})`)

	taxIDRegex = regexp.MustCompile(
		`(?i)(?:steuer(?:nummer|nr|id)|tax[ _]?(?:id|number|nr)|st\.?-?nr\.?)` +
			`[\s:]*(\d[\d/ ]{8,14}\d)`)

	personalIDRegex = regexp.MustCompile(
		`(?i)(?:ausweis(?:nummer)?|personalausweis|reisepass|passport|id[- ]?(?:nr|number)?)` +
			`[\s:]*([A-Z][0-9]{8}[A-Z][0-9]|[A-Z]{1,2}[0-9]{6,9})`)

	// Go's \b is ASCII only, so the name pattern anchors on a non-letter
	// prefix and reports submatch 1.
	nameRegex = regexp.MustCompile(
		`(?:^|[^\p{L}])((?:[A-ZÜÄÖ][a-züäöß]+(?:[-'][A-ZÜÄÖ][a-züäöß]+)?)` +
			`(?:\s+[A-ZÜÄÖ][a-züäöß]+(?:[-'][A-ZÜÄÖ][a-züäöß]+)?){1,3})`)

	nonDigitRegex = regexp.MustCompile(`\D`)
)

// commonNouns are capitalised German words that would otherwise read as
// names at sentence starts or in letter salutations.
var commonNouns = map[string]struct{}{
	"Die": {}, "Der": {}, "Das": {}, "Ein": {}, "Eine": {}, "Sehr": {},
	"Geehrte": {}, "Geehrter": {}, "Mit": {}, "Freundlichen": {},
	"Grüßen": {}, "Bitte": {}, "Vielen": {}, "Dank": {}, "Danke": {},
	"Herr": {}, "Frau": {}, "Dr": {}, "Prof": {}, "Str": {}, "Straße": {},
	"GmbH": {}, "AG": {}, "KG": {}, "OHG": {}, "UG": {}, "Gesellschaft": {},
	"Rechnung": {}, "Datum": {}, "Betreff": {}, "Anlage": {}, "Anhang": {},
}

func isLikelyName(candidate string) bool {
	words := strings.Fields(candidate)
	if len(words) < 2 {
		return false
	}
	for _, w := range words {
		if _, ok := commonNouns[w]; ok {
			return false
		}
	}
	return true
}

// masks maps entity types to their mask-mode replacement.
var masks = map[string]string{
	EntityIBAN:        "[IBAN REDACTED]",
	EntityTaxID:       "[STEUERNUMMER REDACTED]",
	EntityPersonalID:  "[AUSWEIS REDACTED]",
	EntityEmail:       "[EMAIL REDACTED]",
	EntityPhone:       "[TELEFON REDACTED]",
	EntityDateOfBirth: "[GEBURTSDATUM REDACTED]",
	EntityName:        "[NAME REDACTED]",
}

const defaultMask = "[REDACTED]"
