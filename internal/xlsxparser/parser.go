// =============================================================================
// GoBD DATEV Export - XLSX Parser Module
// =============================================================================
//
// Many clients keep their cash book in Excel. This module reads one sheet of
// an XLSX workbook into rows of strings and hands them to the CSV row
// validator, so both inputs share the same alias table, row checks and
// RowError reporting.
//
// CELL HANDLING:
//   - Cells are read raw, so amounts arrive as plain numbers ("1190.5")
//     rather than in the workbook's display format.
//   - Numeric cells in the date column are Excel serial dates and are
//     rewritten to DD.MM.YYYY. Text dates are left alone.
//
// =============================================================================

package xlsxparser

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/gobd-datev-export/internal/csvparser"
	"github.com/ginjaninja78/gobd-datev-export/internal/types"
)

// EncodingXLSX is reported as ParseResult.EncodingUsed for workbook input.
const EncodingXLSX = "xlsx"

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads the first sheet of a workbook and validates its rows.
//
// PARAMETERS:
//   - r: the workbook bytes
//   - opts: the same options the CSV parser takes
//
// RETURNS:
//   - the parse result, with EncodingUsed set to "xlsx"
//   - a fatal error, as csvparser.Parse
func Parse(r io.Reader, opts csvparser.Options) (*types.ParseResult, error) {
	return ParseSheet(r, "", opts)
}

// ParseSheet is Parse for a named sheet. An empty name selects the first
// sheet.
func ParseSheet(r io.Reader, sheetName string, opts csvparser.Options) (*types.ParseResult, error) {
	limit := opts.MaxBytes
	if limit <= 0 {
		limit = csvparser.DefaultMaxBytes
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}
	if len(data) == 0 {
		return nil, types.ErrEmptyInput
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: limit is %d bytes", types.ErrInputTooLarge, limit)
	}

	records, err := readRecords(bytes.NewReader(data), sheetName, normalizerOf(opts))
	if err != nil {
		return nil, err
	}

	return csvparser.ParseRecords(records, EncodingXLSX, opts)
}

// ParseFile opens and parses a workbook on disk.
func ParseFile(filePath string, opts csvparser.Options) (*types.ParseResult, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return Parse(f, opts)
}

func normalizerOf(opts csvparser.Options) *csvparser.ColumnNormalizer {
	if opts.Normalizer != nil {
		return opts.Normalizer
	}
	return csvparser.DefaultNormalizer()
}

// readRecords returns the rows of one sheet, header first.
func readRecords(r io.Reader, sheetName string, n *csvparser.ColumnNormalizer) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheetName == "" {
		sheetName = f.GetSheetName(0)
	}
	if sheetName == "" {
		return nil, fmt.Errorf("%w: workbook has no sheets", types.ErrEmptyInput)
	}

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of sheet %q: %w", sheetName, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %q has no rows", types.ErrEmptyInput, sheetName)
	}

	dateCols := dateColumns(rows[0], n)
	for i := 1; i < len(rows); i++ {
		for _, col := range dateCols {
			if col < len(rows[i]) {
				rows[i][col] = serialToGermanDate(rows[i][col])
			}
		}
	}

	return rows, nil
}

// dateColumns returns the indexes of header cells that normalize to the
// date field.
func dateColumns(header []string, n *csvparser.ColumnNormalizer) []int {
	var cols []int
	for i, h := range header {
		if n.Normalize(h) == types.FieldDate {
			cols = append(cols, i)
		}
	}
	return cols
}

// serialToGermanDate rewrites an Excel serial date to DD.MM.YYYY. Any other
// value is returned unchanged.
func serialToGermanDate(value string) string {
	serial, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || serial <= 0 {
		return value
	}

	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return value
	}
	return t.Format("02.01.2006")
}
