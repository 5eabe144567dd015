// =============================================================================
// GoBD DATEV Export - Converter Module
// =============================================================================
//
// This module ties the pipeline together. It is the single entry point used
// by the CLI and the HTTP server.
//
// PIPELINE FOR ONE FILE (Run):
//   1. Parse the input (CSV or XLSX) with the client's aliases and
//      transformation rules
//   2. Reject the file if any row failed to parse
//   3. Run the GoBD checks
//   4. Reject the file if any violation was found
//   5. Stop here unless the export was approved by a person
//   6. Serialize the DATEV Buchungsstapel
//   7. Write the output file (and optionally the XLSX report)
//   8. Archive the processed files
//
// CONCURRENCY:
//   A Converter holds only read-only state after New and may be shared by
//   goroutines. The batch command runs one Run per file concurrently.
//
// =============================================================================

package converter

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ginjaninja78/gobd-datev-export/internal/config"
	"github.com/ginjaninja78/gobd-datev-export/internal/csvparser"
	"github.com/ginjaninja78/gobd-datev-export/internal/extfwriter"
	"github.com/ginjaninja78/gobd-datev-export/internal/pii"
	"github.com/ginjaninja78/gobd-datev-export/internal/report"
	"github.com/ginjaninja78/gobd-datev-export/internal/types"
	"github.com/ginjaninja78/gobd-datev-export/internal/validation"
	"github.com/ginjaninja78/gobd-datev-export/internal/xlsxparser"
	"github.com/ginjaninja78/gobd-datev-export/pkg/utils"
)

// Errors returned in Result.Error by Run.
var (
	ErrRowsRejected     = errors.New("rows rejected during parsing")
	ErrValidationFailed = errors.New("gobd validation failed")
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of processing a single file.
type Result struct {
	// FilePath is the path to the input file that was processed.
	FilePath string

	// OutputFile is the path to the generated DATEV file. It is empty when
	// processing failed or the export is awaiting approval.
	OutputFile string

	// ReportFile is the XLSX validation report, if one was written.
	ReportFile string

	// ErrorLog is the error log written for a rejected file.
	ErrorLog string

	// ArchivePath is where the input file was moved.
	ArchivePath string

	// Success indicates the file passed parsing and validation. Exported
	// tells whether a DATEV file was also written.
	Success  bool
	Exported bool

	// Error contains the error if processing failed.
	Error error

	// Parse and Validation hold the intermediate results, when reached.
	Parse      *types.ParseResult
	Validation *types.ValidationResult

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	// RowsRead is the number of non-blank data rows.
	RowsRead int

	// ValidRows is the number of rows that parsed cleanly.
	ValidRows int

	// RowErrors is the number of per-field parse errors.
	RowErrors int

	// Transactions is the number of prepared bookings.
	Transactions int

	// Violations is the number of GoBD findings.
	Violations int

	// ProcessingTime is the time taken to process the file.
	ProcessingTime time.Duration
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Converter runs parse, validation and export with one configuration.
type Converter struct {
	cfg     *config.Config
	profile *config.ClientProfile

	log       zerolog.Logger
	sanitizer pii.Sanitizer
	now       func() time.Time
	approved  bool

	normalizer  *csvparser.ColumnNormalizer
	transformer *Transformer
	validator   *validation.Validator
	files       *utils.FileManager
}

// Option configures a Converter.
type Option func(*Converter)

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Converter) { c.log = log }
}

// WithSanitizer replaces the sanitizer used for log lines.
func WithSanitizer(s pii.Sanitizer) Option {
	return func(c *Converter) { c.sanitizer = s }
}

// WithClock sets the clock used for export timestamps and file names.
func WithClock(now func() time.Time) Option {
	return func(c *Converter) { c.now = now }
}

// WithProfile applies a client profile's aliases, rules and DATEV values.
func WithProfile(p *config.ClientProfile) Option {
	return func(c *Converter) { c.profile = p }
}

// WithApproval marks exports from Run as approved by a person. Without it
// Run validates and reports but never writes a DATEV file.
func WithApproval(approved bool) Option {
	return func(c *Converter) { c.approved = approved }
}

// =============================================================================
// CONSTRUCTOR
// =============================================================================

// New creates a Converter.
//
// PARAMETERS:
//   - cfg: the application configuration; nil means config.Default()
//   - opts: functional options
//
// RETURNS:
//   - the Converter
//   - an error if the column aliases or transformation rules are invalid
func New(cfg *config.Config, opts ...Option) (*Converter, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	c := &Converter{
		cfg: cfg,
		log: zerolog.Nop(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	// No token store: the converter is shared across calls and must not
	// hold booking data between them.
	if c.sanitizer == nil {
		c.sanitizer = pii.NewRegexSanitizer(nil)
	}

	if c.profile != nil {
		c.log = c.log.With().Str("client", c.profile.Code).Logger()
	}

	normalizer, err := csvparser.NewColumnNormalizer(cfg.AliasesFor(c.profile))
	if err != nil {
		return nil, fmt.Errorf("invalid column aliases: %w", err)
	}
	c.normalizer = normalizer

	transformer, err := NewTransformer(cfg.RulesFor(c.profile))
	if err != nil {
		return nil, fmt.Errorf("invalid transformation rules: %w", err)
	}
	c.transformer = transformer

	c.validator = validation.New(
		validation.WithLogger(c.log),
		validation.WithSanitizer(c.sanitizer),
	)

	c.files = utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.InputArchiveDir, cfg.OutputArchiveDir)
	c.files.Now = c.now

	return c, nil
}

// Metadata returns the DATEV header values for this converter: the config
// defaults overlaid with the client profile.
func (c *Converter) Metadata() types.ExportMetadata {
	return c.cfg.MetadataFor(c.profile)
}

// =============================================================================
// CORE OPERATIONS
// =============================================================================

func (c *Converter) parseOptions() csvparser.Options {
	log := c.log
	return csvparser.Options{
		MaxBytes:   c.cfg.MaxInputBytes,
		Normalizer: c.normalizer,
		Transform:  c.transformer.Func(),
		Sanitizer:  c.sanitizer,
		Logger:     &log,
	}
}

// ParseCSV parses an in-memory CSV export.
func (c *Converter) ParseCSV(data []byte) (*types.ParseResult, error) {
	return csvparser.Parse(data, c.parseOptions())
}

// ParseXLSX parses the first sheet of an XLSX workbook.
func (c *Converter) ParseXLSX(r io.Reader) (*types.ParseResult, error) {
	return xlsxparser.Parse(r, c.parseOptions())
}

// ParseFile parses a file, choosing the parser by extension.
func (c *Converter) ParseFile(path string) (*types.ParseResult, error) {
	if IsXLSX(path) {
		return xlsxparser.ParseFile(path, c.parseOptions())
	}
	return csvparser.ParseFile(path, c.parseOptions())
}

// ValidateGoBD runs the GoBD checks.
func (c *Converter) ValidateGoBD(records []types.TransactionRecord) (*types.ValidationResult, error) {
	return c.validator.Validate(records)
}

// ExportDatev serializes an export request.
func (c *Converter) ExportDatev(req types.ExportRequest) (*extfwriter.Output, error) {
	log := c.log
	return extfwriter.Serialize(req, extfwriter.Options{Now: c.now, Logger: &log})
}

// ValidateInvoice checks a single record on entry.
func (c *Converter) ValidateInvoice(check validation.InvoiceCheck) validation.InvoiceResult {
	return validation.ValidateInvoice(check)
}

// IsXLSX reports whether path names an XLSX workbook.
func IsXLSX(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xlsx")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the pipeline for one file.
//
// PARAMETERS:
//   - path: the input CSV or XLSX file
//   - meta: the DATEV header values for the export
//
// RETURNS:
//   - A Result describing the outcome. A file with row errors or GoBD
//     violations fails with ErrRowsRejected or ErrValidationFailed and gets
//     an error log in the output directory.
func (c *Converter) Run(path string, meta types.ExportMetadata) Result {
	start := c.now()
	result := Result{FilePath: path}
	log := c.log.With().Str("file", filepath.Base(path)).Logger()

	finish := func() Result {
		result.Stats.ProcessingTime = c.now().Sub(start)
		if result.Error != nil {
			log.Error().Err(result.Error).Msg("file failed")
		}
		return result
	}

	log.Info().Msg("processing file")

	// =========================================================================
	// STEP 1: PARSE
	// =========================================================================

	parsed, err := c.ParseFile(path)
	if err != nil {
		result.Error = fmt.Errorf("failed to parse input: %w", err)
		return finish()
	}
	result.Parse = parsed
	result.Stats.RowsRead = parsed.TotalRows
	result.Stats.ValidRows = parsed.ValidRows
	result.Stats.RowErrors = len(parsed.RowErrors)

	// =========================================================================
	// STEP 2: REJECT PARTIAL INPUT
	// =========================================================================
	// An export of the remaining rows would silently drop bookings.

	if len(parsed.RowErrors) > 0 {
		result.ErrorLog = c.writeErrorLog(path, utils.RowErrorEntries(filepath.Base(path), parsed.RowErrors, start), log)
		result.Error = fmt.Errorf("%w: %d error(s) in %d row(s)", ErrRowsRejected, len(parsed.RowErrors), parsed.InvalidRows)
		return finish()
	}

	// =========================================================================
	// STEP 3: VALIDATE
	// =========================================================================

	validated, err := c.ValidateGoBD(parsed.Rows)
	if err != nil {
		result.Error = fmt.Errorf("failed to validate: %w", err)
		return finish()
	}
	result.Validation = validated
	result.Stats.Transactions = len(validated.PreparedTransactions)
	result.Stats.Violations = len(validated.Violations)

	if !validated.Valid {
		result.ErrorLog = c.writeErrorLog(path, utils.ViolationEntries(filepath.Base(path), validated.Violations, start), log)
		result.ReportFile = c.writeReport(utils.SourceName(path)+"_report.xlsx", validated, log)
		result.Error = fmt.Errorf("%w: %d violation(s)", ErrValidationFailed, len(validated.Violations))
		return finish()
	}

	result.Success = true

	// =========================================================================
	// STEP 4: HUMAN APPROVAL GATE
	// =========================================================================

	if validated.RequiresHumanApproval && !c.approved {
		result.ReportFile = c.writeReport(utils.SourceName(path)+"_report.xlsx", validated, log)
		log.Warn().
			Int("transactions", result.Stats.Transactions).
			Str("period", validated.Summary.Period).
			Msg("export withheld, human approval required")
		return finish()
	}

	// =========================================================================
	// STEP 5: SERIALIZE AND WRITE
	// =========================================================================

	out, err := c.ExportDatev(types.ExportRequest{
		Transactions: validated.PreparedTransactions,
		Metadata:     meta,
	})
	if err != nil {
		result.Success = false
		result.Error = fmt.Errorf("failed to export: %w", err)
		return finish()
	}

	fileName := utils.GenerateOutputFileName(c.cfg.OutputNameFormat, map[string]string{
		"consultant": strings.TrimSpace(meta.ConsultantNumber),
		"client":     strings.TrimSpace(meta.ClientNumber),
		"fy":         strings.TrimSpace(meta.FiscalYearBegin),
		"source":     utils.SourceName(path),
	}, start)

	outputPath, err := c.files.WriteOutputFile(fileName, out.Data)
	if err != nil {
		result.Success = false
		result.Error = fmt.Errorf("failed to write output: %w", err)
		return finish()
	}
	result.OutputFile = outputPath
	result.Exported = true

	if c.cfg.WriteReport {
		result.ReportFile = c.writeReport(strings.TrimSuffix(fileName, filepath.Ext(fileName))+"_report.xlsx", validated, log)
	}

	log.Info().
		Str("output", outputPath).
		Int("rows", out.Rows).
		Str("encoding", out.Encoding).
		Msg("datev file written")

	// =========================================================================
	// STEP 6: ARCHIVE
	// =========================================================================
	// Archival failures are logged; the export itself succeeded.

	if archived, err := c.files.ArchiveInputFile(path); err != nil {
		log.Warn().Err(err).Msg("failed to archive input file")
	} else {
		result.ArchivePath = archived
	}
	if _, err := c.files.ArchiveOutputFile(outputPath); err != nil {
		log.Warn().Err(err).Msg("failed to archive output file")
	}

	return finish()
}

// writeErrorLog writes entries and returns the log path. Failures are only
// logged so the original error is not masked.
func (c *Converter) writeErrorLog(path string, entries []utils.ErrorLogEntry, log zerolog.Logger) string {
	if err := os.MkdirAll(c.cfg.OutputDir, 0755); err != nil {
		log.Warn().Err(err).Msg("failed to create output directory")
		return ""
	}
	logPath, err := utils.WriteErrorLog(entries, c.cfg.OutputDir, path)
	if err != nil {
		log.Warn().Err(err).Msg("failed to write error log")
		return ""
	}
	return logPath
}

func (c *Converter) writeReport(name string, res *types.ValidationResult, log zerolog.Logger) string {
	if err := os.MkdirAll(c.cfg.OutputDir, 0755); err != nil {
		log.Warn().Err(err).Msg("failed to create output directory")
		return ""
	}
	reportPath := filepath.Join(c.cfg.OutputDir, name)
	if err := report.SaveValidationReport(reportPath, res); err != nil {
		log.Warn().Err(err).Msg("failed to write validation report")
		return ""
	}
	return reportPath
}
