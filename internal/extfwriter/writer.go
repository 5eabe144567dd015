// =============================================================================
// GoBD DATEV Export - EXTF Writer Module
// =============================================================================
//
// This module renders prepared transactions as a DATEV "Buchungsstapel" file
// in the EXTF text format read by German tax software.
//
// FILE STRUCTURE:
//   Line 1: format descriptor, 18 fields
//     "EXTF";510;21;"Buchungsstapel";7;<created>;;"";<consultant>;<client>;
//     <fy begin>;<account length>;<from>;<to>;"<description>";"";0;""
//   Line 2: the 14 column names, verbatim
//   Line 3+: one booking per line, 14 fields
//     1190,00;S;EUR;;;;4930;1200;;1501;RE-001;;;Büromaterial
//
// ENCODING:
//   - Lines end in CRLF, including the last one.
//   - The payload is Windows-1252. Characters outside the codepage become
//     '?'. Input that is not valid UTF-8 is written as UTF-8 unchanged.
//
// ERROR HANDLING:
//   - An export never tolerates a bad transaction. Any formatting failure
//     aborts the whole file.
//
// =============================================================================

package extfwriter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/gobd-datev-export/internal/locale"
	"github.com/ginjaninja78/gobd-datev-export/internal/types"
)

// Output encodings.
const (
	EncodingWindows1252 = "windows-1252"
	EncodingUTF8        = "utf-8"
)

// Buchungsstapel format identifiers.
const (
	FormatVersion    = 510
	FormatName       = "Buchungsstapel"
	FormatSubVersion = 7

	formatCategory = 21
	currency       = "EUR"

	maxDocumentNumberLen = 36
	maxBookingTextLen    = 60
)

// ColumnHeader is the second line of every Buchungsstapel file.
const ColumnHeader = "Umsatz (ohne Soll/Haben-Kz);Soll/Haben-Kennzeichen;WKZ Umsatz;Kurs;" +
	"Basis-Umsatz;WKZ Basis-Umsatz;Konto;Gegenkonto (ohne BU-Schlüssel);BU-Schlüssel;" +
	"Belegdatum;Belegfeld 1;Belegfeld 2;Skonto;Buchungstext"

const (
	headerFieldCount = 18
	rowFieldCount    = 14
)

const crlf = "\r\n"

var (
	consultantRegex = regexp.MustCompile(`^\d{4,7}$`)
	clientRegex     = regexp.MustCompile(`^\d{1,5}$`)
	fiscalYearRegex = regexp.MustCompile(`^\d{8}$`)
)

// fieldCleaner keeps free text from adding fields or lines.
var fieldCleaner = strings.NewReplacer(";", " ", "\r\n", " ", "\r", " ", "\n", " ")

// =============================================================================
// OPTIONS AND OUTPUT
// =============================================================================

// Options configures a serialization run. The zero value is usable.
type Options struct {
	// Now supplies the creation timestamp. Nil means time.Now.
	Now func() time.Time

	// Logger receives a summary line. Nil disables logging.
	Logger *zerolog.Logger
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) logger() zerolog.Logger {
	if o.Logger != nil {
		return *o.Logger
	}
	return zerolog.Nop()
}

// Output is a finished export file.
type Output struct {
	// Data is the encoded file content.
	Data []byte
	// Encoding is EncodingWindows1252, or EncodingUTF8 after a fallback.
	Encoding string
	// FileName is the suggested file name.
	FileName string
	// Rows is the number of booking lines.
	Rows int
}

// =============================================================================
// SERIALIZATION
// =============================================================================

// Serialize renders an export request as a Buchungsstapel file.
//
// PARAMETERS:
//   - req: the prepared transactions and the export metadata
//   - opts: serialization options
//
// RETURNS:
//   - the encoded file
//   - types.ErrNoTransactions, types.ErrInvalidMetadata or
//     types.ErrTransactionFormat, wrapped with detail
func Serialize(req types.ExportRequest, opts Options) (*Output, error) {
	if len(req.Transactions) == 0 {
		return nil, fmt.Errorf("%w: nothing to export", types.ErrNoTransactions)
	}

	meta, err := ValidateMetadata(req.Metadata)
	if err != nil {
		return nil, err
	}

	rows := make([]string, 0, len(req.Transactions))
	for i, tx := range req.Transactions {
		row, err := formatRow(tx)
		if err != nil {
			return nil, fmt.Errorf("transaction %d (%s): %w", i, tx.DocumentNumber, err)
		}
		rows = append(rows, row)
	}

	from, to := dateRange(req.Transactions, meta.FiscalYearBegin)

	var builder strings.Builder
	builder.WriteString(formatHeader(meta, opts.now(), from, to))
	builder.WriteString(crlf)
	builder.WriteString(ColumnHeader)
	builder.WriteString(crlf)
	for _, row := range rows {
		builder.WriteString(row)
		builder.WriteString(crlf)
	}

	data, encoding := encode(builder.String())

	log := opts.logger()
	log.Info().
		Int("rows", len(rows)).
		Str("consultant", meta.ConsultantNumber).
		Str("client", meta.ClientNumber).
		Str("from", from).
		Str("to", to).
		Str("encoding", encoding).
		Msg("datev export serialized")

	return &Output{
		Data:     data,
		Encoding: encoding,
		FileName: FileName(meta),
		Rows:     len(rows),
	}, nil
}

// FileName returns DATEV_EXTF_<consultant>_<client>_<fy begin>.csv.
func FileName(meta types.ExportMetadata) string {
	return fmt.Sprintf("DATEV_EXTF_%s_%s_%s.csv", meta.ConsultantNumber, meta.ClientNumber, meta.FiscalYearBegin)
}

// ValidateMetadata checks the export metadata and returns a copy with the
// account length defaulted.
func ValidateMetadata(meta types.ExportMetadata) (types.ExportMetadata, error) {
	meta.ConsultantNumber = strings.TrimSpace(meta.ConsultantNumber)
	meta.ClientNumber = strings.TrimSpace(meta.ClientNumber)
	meta.FiscalYearBegin = strings.TrimSpace(meta.FiscalYearBegin)

	if !consultantRegex.MatchString(meta.ConsultantNumber) {
		return meta, fmt.Errorf("%w: consultant number %q must be 4 to 7 digits",
			types.ErrInvalidMetadata, meta.ConsultantNumber)
	}
	if !clientRegex.MatchString(meta.ClientNumber) {
		return meta, fmt.Errorf("%w: client number %q must be 1 to 5 digits",
			types.ErrInvalidMetadata, meta.ClientNumber)
	}
	if !fiscalYearRegex.MatchString(meta.FiscalYearBegin) {
		return meta, fmt.Errorf("%w: fiscal year begin %q must be YYYYMMDD",
			types.ErrInvalidMetadata, meta.FiscalYearBegin)
	}
	if _, err := locale.ParseDatevDate(meta.FiscalYearBegin); err != nil {
		return meta, fmt.Errorf("%w: fiscal year begin %q is not a calendar date",
			types.ErrInvalidMetadata, meta.FiscalYearBegin)
	}

	if meta.AccountLength == 0 {
		meta.AccountLength = types.DefaultAccountLength
	}
	if meta.AccountLength < 4 || meta.AccountLength > 8 {
		return meta, fmt.Errorf("%w: account length %d must be between 4 and 8",
			types.ErrInvalidMetadata, meta.AccountLength)
	}

	return meta, nil
}

// formatHeader builds the 18-field format descriptor.
func formatHeader(meta types.ExportMetadata, now time.Time, from, to string) string {
	fields := []string{
		quote("EXTF"),
		strconv.Itoa(FormatVersion),
		strconv.Itoa(formatCategory),
		quote(FormatName),
		strconv.Itoa(FormatSubVersion),
		timestamp(now),
		"",
		quote(""),
		meta.ConsultantNumber,
		meta.ClientNumber,
		meta.FiscalYearBegin,
		strconv.Itoa(meta.AccountLength),
		from,
		to,
		quote(cleanField(meta.Description)),
		quote(""),
		"0",
		quote(""),
	}
	return strings.Join(fields, ";")
}

// formatRow builds one 14-field booking line.
func formatRow(tx types.GoBDTransaction) (string, error) {
	if !tx.DebitCredit.Valid() {
		return "", fmt.Errorf("%w: debit/credit flag %q is neither S nor H",
			types.ErrTransactionFormat, tx.DebitCredit)
	}
	if tx.Amount.IsNegative() {
		return "", fmt.Errorf("%w: amount %s is negative, the sign belongs in the flag",
			types.ErrTransactionFormat, tx.Amount)
	}

	fields := []string{
		locale.FormatDatevAmount(tx.Amount),
		string(tx.DebitCredit),
		currency,
		"", // Kurs
		"", // Basis-Umsatz
		"", // WKZ Basis-Umsatz
		cleanField(tx.Account),
		cleanField(tx.CounterAccount),
		"", // BU-Schlüssel
		shortDate(tx.Date),
		truncate(cleanField(tx.DocumentNumber), maxDocumentNumberLen),
		"", // Belegfeld 2
		"", // Skonto
		truncate(cleanField(tx.BookingText), maxBookingTextLen),
	}
	return strings.Join(fields, ";"), nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// timestamp renders t in UTC as YYYYMMDDHHMMSSmmm.
func timestamp(t time.Time) string {
	t = t.UTC()
	return t.Format("20060102150405") + fmt.Sprintf("%03d", t.Nanosecond()/int(time.Millisecond))
}

// shortDate turns DD.MM.YYYY into DDMM. Unparseable dates keep their first
// four characters once the dots are gone.
func shortDate(date string) string {
	if t, err := locale.ParseDate(date); err == nil {
		return locale.FormatDatevShortDate(t)
	}
	return truncate(cleanField(strings.ReplaceAll(strings.TrimSpace(date), ".", "")), 4)
}

// dateRange returns the earliest and latest booking date as YYYYMMDD,
// falling back to the fiscal year begin when no date parses.
func dateRange(txs []types.GoBDTransaction, fallback string) (string, string) {
	var first, last time.Time
	found := false
	for _, tx := range txs {
		t, err := locale.ParseDate(tx.Date)
		if err != nil {
			continue
		}
		if !found || t.Before(first) {
			first = t
		}
		if !found || t.After(last) {
			last = t
		}
		found = true
	}
	if !found {
		return fallback, fallback
	}
	return locale.FormatDatevDate(first), locale.FormatDatevDate(last)
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func cleanField(s string) string {
	return strings.TrimSpace(fieldCleaner.Replace(s))
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// encode converts text to Windows-1252, replacing unmappable characters with
// '?'. Text that is not valid UTF-8, or that the encoder rejects, is returned
// as is.
func encode(text string) ([]byte, string) {
	if !utf8.ValidString(text) {
		return []byte(text), EncodingUTF8
	}

	out, _, err := transform.Bytes(newWindows1252Encoder(), []byte(text))
	if err != nil {
		return []byte(text), EncodingUTF8
	}
	return out, EncodingWindows1252
}

// newWindows1252Encoder returns a fresh encoder; transformers keep state.
func newWindows1252Encoder() transform.Transformer {
	unmappable := runes.Map(func(r rune) rune {
		if _, ok := charmap.Windows1252.EncodeRune(r); !ok {
			return '?'
		}
		return r
	})
	return transform.Chain(unmappable, charmap.Windows1252.NewEncoder())
}
