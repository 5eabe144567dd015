// =============================================================================
// GoBD DATEV Export - CSV Parser Module
// =============================================================================
//
// This module turns a German bookkeeping export into TransactionRecords. It
// handles:
//   - Encoding detection (UTF-8 or Windows-1252)
//   - Delimiter detection (';' when the header line has one, else ',')
//   - Header aliases (Datum, Beleg-Nr, Gegenkonto, ...)
//   - Per-row validation with partial failure
//
// FAILURE TIERS:
//   - Fatal: empty input, oversized input, missing required columns. No
//     result is returned.
//   - Per row: an empty required field, a bad date or a bad amount becomes
//     a RowError. The row is dropped and parsing continues.
//
// The whole input is buffered in memory, bounded by Options.MaxBytes.
//
// =============================================================================

package csvparser

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ginjaninja78/gobd-datev-export/internal/pii"
	"github.com/ginjaninja78/gobd-datev-export/internal/types"
)

// DefaultMaxBytes is the input ceiling used when Options.MaxBytes is zero.
const DefaultMaxBytes = 10 * 1024 * 1024

// TransformFunc rewrites a raw cell before it is validated. field is the
// canonical name for required columns and the header for passthrough ones.
type TransformFunc func(field, value string) string

// Options configures a parse run. The zero value is usable.
type Options struct {
	// MaxBytes rejects larger inputs. Zero means DefaultMaxBytes.
	MaxBytes int64

	// Normalizer maps headers to canonical names. Nil means the built-in
	// alias table.
	Normalizer *ColumnNormalizer

	// Transform is applied to every cell of every data row.
	Transform TransformFunc

	// Sanitizer scrubs booking texts before they are logged. Nil means a
	// regex sanitizer without token store.
	Sanitizer pii.Sanitizer

	// Logger receives per-row debug lines and a summary. Nil disables
	// logging.
	Logger *zerolog.Logger
}

func (o Options) maxBytes() int64 {
	if o.MaxBytes > 0 {
		return o.MaxBytes
	}
	return DefaultMaxBytes
}

func (o Options) normalizer() *ColumnNormalizer {
	if o.Normalizer != nil {
		return o.Normalizer
	}
	return defaultNormalizer
}

func (o Options) sanitizer() pii.Sanitizer {
	if o.Sanitizer != nil {
		return o.Sanitizer
	}
	return pii.NewRegexSanitizer(nil)
}

func (o Options) logger() zerolog.Logger {
	if o.Logger != nil {
		return *o.Logger
	}
	return zerolog.Nop()
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a CSV export held in memory.
//
// PARAMETERS:
//   - data: the raw file bytes
//   - opts: parse options
//
// RETURNS:
//   - the valid rows, the row errors and the counts
//   - a fatal error wrapping types.ErrEmptyInput, types.ErrInputTooLarge or
//     types.ErrMissingColumns
func Parse(data []byte, opts Options) (*types.ParseResult, error) {
	if len(data) == 0 {
		return nil, types.ErrEmptyInput
	}
	if int64(len(data)) > opts.maxBytes() {
		return nil, fmt.Errorf("%w: %d bytes, limit is %d", types.ErrInputTooLarge, len(data), opts.maxBytes())
	}

	text, encoding := decodeInput(data)
	if strings.TrimSpace(text) == "" {
		return nil, types.ErrEmptyInput
	}

	delimiter := detectDelimiter(text)

	csvReader := csv.NewReader(strings.NewReader(text))
	configureReader(csvReader, delimiter)

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	result, err := ParseRecords(records, encoding, opts)
	if err != nil {
		return nil, err
	}
	result.Delimiter = string(delimiter)
	return result, nil
}

// ParseFile reads and parses a CSV file, refusing files above the size
// limit before reading them.
func ParseFile(filePath string, opts Options) (*types.ParseResult, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Size() > opts.maxBytes() {
		return nil, fmt.Errorf("%w: %d bytes, limit is %d", types.ErrInputTooLarge, info.Size(), opts.maxBytes())
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return Parse(data, opts)
}

// configureReader sets up the CSV reader for bookkeeping exports.
func configureReader(reader *csv.Reader, delimiter rune) {
	reader.Comma = delimiter

	// Exports from different tools disagree on trailing columns.
	reader.FieldsPerRecord = -1

	// Booking texts contain stray quotes, e.g. 12" Monitor.
	reader.LazyQuotes = true

	reader.TrimLeadingSpace = true
}

// ParseRecords validates rows that have already been split into cells. The
// first record is the header. encoding is reported as is.
func ParseRecords(records [][]string, encoding string, opts Options) (*types.ParseResult, error) {
	if len(records) == 0 || isRowEmpty(records[0]) {
		return nil, types.ErrEmptyInput
	}

	headers := cleanHeaders(records[0])
	layout, err := newColumnLayout(headers, opts.normalizer())
	if err != nil {
		return nil, err
	}

	log := opts.logger()
	sanitizer := opts.sanitizer()

	result := &types.ParseResult{
		Rows:         []types.TransactionRecord{},
		RowErrors:    []types.RowError{},
		EncodingUsed: encoding,
	}

	for rowIndex, row := range records[1:] {
		if isRowEmpty(row) {
			continue
		}
		result.TotalRows++

		record, rowErrs := layout.extract(rowIndex, row, opts.Transform)
		if len(rowErrs) > 0 {
			result.RowErrors = append(result.RowErrors, rowErrs...)
			result.InvalidRows++
			log.Debug().
				Int("row", rowIndex).
				Int("errors", len(rowErrs)).
				Str("bookingText", sanitizer.Sanitize(record.BookingText, pii.ModeMask)).
				Msg("row rejected")
			continue
		}

		result.Rows = append(result.Rows, record)
		result.ValidRows++
		log.Debug().
			Int("row", rowIndex).
			Str("documentNumber", record.DocumentNumber).
			Str("bookingText", sanitizer.Sanitize(record.BookingText, pii.ModeMask)).
			Msg("row accepted")
	}

	log.Info().
		Str("encoding", encoding).
		Int("totalRows", result.TotalRows).
		Int("validRows", result.ValidRows).
		Int("invalidRows", result.InvalidRows).
		Msg("input parsed")

	return result, nil
}

// cleanHeaders trims headers and names empty ones by position.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}
	return cleaned
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
