package locale

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrInvalidDate is wrapped by every date parse failure.
var ErrInvalidDate = errors.New("invalid date")

var dateRegex = regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4}$`)

// germanDateLayout accepts one or two digit day and month.
const germanDateLayout = "2.1.2006"

// DateError reports a value that is not a usable booking date.
type DateError struct {
	Raw string
	// NotOnCalendar is true when the value looked like DD.MM.YYYY but named a
	// day that does not exist.
	NotOnCalendar bool
}

func (e *DateError) Error() string {
	if e.NotOnCalendar {
		return fmt.Sprintf("Date '%s' is not a valid calendar date", e.Raw)
	}
	return fmt.Sprintf("Date '%s' is not in DD.MM.YYYY format", e.Raw)
}

func (e *DateError) Unwrap() error {
	return ErrInvalidDate
}

// ParseDate reads a DD.MM.YYYY date and rejects dates that do not exist
// on the calendar, such as 31.02.2024. Surrounding whitespace is ignored.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if !dateRegex.MatchString(s) {
		return time.Time{}, &DateError{Raw: raw}
	}

	t, err := time.Parse(germanDateLayout, s)
	if err != nil {
		return time.Time{}, &DateError{Raw: raw, NotOnCalendar: true}
	}
	return t, nil
}

// FiscalPeriod returns the fiscal year and month a booking date falls into.
func FiscalPeriod(t time.Time) (year, month int) {
	return t.Year(), int(t.Month())
}

// FormatDatevDate renders t as YYYYMMDD.
func FormatDatevDate(t time.Time) string {
	return t.Format("20060102")
}

// FormatDatevShortDate renders t as DDMM, the Belegdatum form of a
// Buchungsstapel row.
func FormatDatevShortDate(t time.Time) string {
	return t.Format("0201")
}

// ParseDatevDate reads a YYYYMMDD date.
func ParseDatevDate(raw string) (time.Time, error) {
	t, err := time.Parse("20060102", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q is not in YYYYMMDD format: %w", raw, ErrInvalidDate)
	}
	return t, nil
}
