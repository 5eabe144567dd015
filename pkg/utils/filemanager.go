// =============================================================================
// GoBD DATEV Export - File Manager Utility
// =============================================================================
//
// This module provides the file handling around batch processing:
//   - Input discovery (CSV and XLSX exports)
//   - Output writing and naming
//   - Archival of processed inputs and generated exports
//   - Error logs and run summaries
//
// ARCHIVAL STRATEGY:
//   - Input files are moved to input_archive after a successful export
//   - DATEV files are copied to output_archive for retention
//   - Rejected files stay in the input directory
//   - Error logs are written next to the outputs
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ginjaninja78/gobd-datev-export/internal/types"
)

// DefaultInputPatterns are the file kinds picked up from the input directory.
var DefaultInputPatterns = []string{"*.csv", "*.CSV", "*.xlsx", "*.XLSX"}

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for batch processing.
type FileManager struct {
	// InputDir is the directory where input files are placed.
	InputDir string

	// OutputDir is the directory where DATEV files and logs are written.
	OutputDir string

	// InputArchiveDir is the directory for archived input files.
	InputArchiveDir string

	// OutputArchiveDir is the directory for archived DATEV files.
	OutputArchiveDir string

	// UseTimestampSubdirs creates date-based subdirectories in archives.
	// Example: input_archive/2024/01/15/buchungen.csv
	UseTimestampSubdirs bool

	// ArchiveOnSuccess determines whether to archive files after a
	// successful export.
	ArchiveOnSuccess bool

	// Now is the clock used for archive paths and log names.
	Now func() time.Time
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inputDir, outputDir, inputArchiveDir, outputArchiveDir string) *FileManager {
	return &FileManager{
		InputDir:         inputDir,
		OutputDir:        outputDir,
		InputArchiveDir:  inputArchiveDir,
		OutputArchiveDir: outputArchiveDir,
		ArchiveOnSuccess: true,
		Now:              time.Now,
	}
}

func (fm *FileManager) now() time.Time {
	if fm.Now != nil {
		return fm.Now()
	}
	return time.Now()
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates all configured directories if they don't exist.
func (fm *FileManager) EnsureDirectories() error {
	dirs := []string{
		fm.InputDir,
		fm.OutputDir,
		fm.InputArchiveDir,
		fm.OutputArchiveDir,
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverInputFiles scans the input directory for files matching any of
// the patterns.
//
// PARAMETERS:
//   - patterns: glob patterns such as "*.csv". Empty means
//     DefaultInputPatterns.
//
// RETURNS:
//   - the matching regular files, sorted and without duplicates
//   - an error if a pattern is malformed
func (fm *FileManager) DiscoverInputFiles(patterns ...string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = DefaultInputPatterns
	}

	seen := make(map[string]struct{})
	var result []string

	for _, pattern := range patterns {
		files, err := filepath.Glob(filepath.Join(fm.InputDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to scan input directory: %w", err)
		}

		for _, file := range files {
			if _, dup := seen[file]; dup {
				continue
			}
			info, err := os.Stat(file)
			if err != nil || info.IsDir() {
				continue
			}
			seen[file] = struct{}{}
			result = append(result, file)
		}
	}

	sort.Strings(result)
	return result, nil
}

// =============================================================================
// OUTPUT WRITING
// =============================================================================

// WriteOutputFile writes data into the output directory under fileName.
// The file is written under a temporary name first so a reader never sees
// a partial export.
func (fm *FileManager) WriteOutputFile(fileName string, data []byte) (string, error) {
	if err := os.MkdirAll(fm.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(fm.OutputDir, filepath.Base(fileName))

	tmp, err := os.CreateTemp(fm.OutputDir, ".partial-*")
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close output file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to set output permissions: %w", err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to move output file into place: %w", err)
	}

	return outputPath, nil
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves an input file to the archive directory.
//
// PARAMETERS:
//   - filePath: The path to the file to archive.
//
// RETURNS:
//   - The path to the archived file, or filePath when archival is off.
//   - An error if archival fails.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	if !fm.ArchiveOnSuccess || fm.InputArchiveDir == "" {
		return filePath, nil
	}

	archivePath := fm.getArchivePath(fm.InputArchiveDir, filePath)

	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// Cross-device moves need a copy.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}

	return archivePath, nil
}

// ArchiveOutputFile copies a generated file to the archive directory. The
// original stays in the output directory.
func (fm *FileManager) ArchiveOutputFile(filePath string) (string, error) {
	if !fm.ArchiveOnSuccess || fm.OutputArchiveDir == "" {
		return filePath, nil
	}

	archivePath := fm.getArchivePath(fm.OutputArchiveDir, filePath)

	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := copyFile(filePath, archivePath); err != nil {
		return "", fmt.Errorf("failed to copy file to archive: %w", err)
	}

	return archivePath, nil
}

// getArchivePath constructs the archive path for a file.
func (fm *FileManager) getArchivePath(archiveDir, filePath string) string {
	fileName := filepath.Base(filePath)

	if fm.UseTimestampSubdirs {
		now := fm.now()
		return filepath.Join(
			archiveDir,
			fmt.Sprintf("%d", now.Year()),
			fmt.Sprintf("%02d", now.Month()),
			fmt.Sprintf("%02d", now.Day()),
			fileName,
		)
	}

	return filepath.Join(archiveDir, fileName)
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName fills the placeholders of an output name format.
//
// PARAMETERS:
//   - format: The format string for the file name.
//     Built-in placeholders:
//     {uuid}      - A random UUID
//     {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//     {date}      - Current date (YYYYMMDD)
//     Any key of params can be used as {key}, e.g. {consultant}, {client},
//     {fy}, {source}.
//   - params: A map of placeholder values.
//   - now: The time used for {timestamp} and {date}.
//
// RETURNS:
//   - The generated file name, always ending in .csv.
//
// EXAMPLE:
//
//	format: "DATEV_EXTF_{consultant}_{client}_{fy}_{uuid}.csv"
//	params: {"consultant": "1001", "client": "1", "fy": "20240101"}
//	output: "DATEV_EXTF_1001_1_20240101_a1b2c3d4-e5f6-7890-abcd-ef1234567890.csv"
func GenerateOutputFileName(format string, params map[string]string, now time.Time) string {
	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
	}

	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	// Path separators would escape the output directory.
	result = strings.NewReplacer("/", "_", `\`, "_").Replace(result)

	if !strings.HasSuffix(strings.ToLower(result), ".csv") {
		result += ".csv"
	}

	return result
}

// SourceName returns a file name without directory and extension.
func SourceName(filePath string) string {
	base := filepath.Base(filePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// =============================================================================
// ERROR LOG GENERATION
// =============================================================================

// Error types in the error log.
const (
	ErrorTypeRow       = "ROW_ERROR"
	ErrorTypeViolation = "GOBD_VIOLATION"
	ErrorTypeFatal     = "FATAL"
)

// ErrorLogEntry represents a single error log entry.
type ErrorLogEntry struct {
	Timestamp      time.Time
	FileName       string
	ErrorType      string
	Kind           string
	ErrorMessage   string
	RowIndex       *int
	FieldName      string
	DocumentNumber string
}

// RowErrorEntries converts parse errors into log entries.
func RowErrorEntries(fileName string, errs []types.RowError, at time.Time) []ErrorLogEntry {
	entries := make([]ErrorLogEntry, 0, len(errs))
	for _, e := range errs {
		row := e.RowIndex
		entries = append(entries, ErrorLogEntry{
			Timestamp:    at,
			FileName:     fileName,
			ErrorType:    ErrorTypeRow,
			ErrorMessage: e.Message,
			RowIndex:     &row,
			FieldName:    e.Field,
		})
	}
	return entries
}

// ViolationEntries converts GoBD violations into log entries.
func ViolationEntries(fileName string, violations []types.Violation, at time.Time) []ErrorLogEntry {
	entries := make([]ErrorLogEntry, 0, len(violations))
	for _, v := range violations {
		entries = append(entries, ErrorLogEntry{
			Timestamp:      at,
			FileName:       fileName,
			ErrorType:      ErrorTypeViolation,
			Kind:           string(v.Kind),
			ErrorMessage:   v.Detail,
			RowIndex:       v.RowIndex,
			FieldName:      v.Field,
			DocumentNumber: v.DocumentNumber,
		})
	}
	return entries
}

// WriteErrorLog writes error entries to <source>_errors.txt in outputDir.
//
// PARAMETERS:
//   - entries: The error entries to write.
//   - outputDir: The directory to write the log file.
//   - source: The input file the entries belong to.
//
// RETURNS:
//   - The path to the error log file, empty when there is nothing to log.
//   - An error if writing fails.
func WriteErrorLog(entries []ErrorLogEntry, outputDir, source string) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	logPath := filepath.Join(outputDir, SourceName(source)+"_errors.txt")

	file, err := os.Create(logPath)
	if err != nil {
		return "", fmt.Errorf("failed to create error log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "GoBD DATEV Export - Error Log\n"+
		"Source: %s\n"+
		"Total Errors: %d\n"+
		"================================================================================\n\n",
		filepath.Base(source),
		len(entries))

	for i, entry := range entries {
		fmt.Fprintf(writer, "Error #%d\n"+
			"  Timestamp:      %s\n"+
			"  File:           %s\n"+
			"  Error Type:     %s\n",
			i+1,
			entry.Timestamp.Format("2006-01-02 15:04:05"),
			entry.FileName,
			entry.ErrorType)

		if entry.Kind != "" {
			fmt.Fprintf(writer, "  Kind:           %s\n", entry.Kind)
		}
		fmt.Fprintf(writer, "  Message:        %s\n", entry.ErrorMessage)
		if entry.RowIndex != nil {
			fmt.Fprintf(writer, "  Row Index:      %d\n", *entry.RowIndex)
		}
		if entry.FieldName != "" {
			fmt.Fprintf(writer, "  Field:          %s\n", entry.FieldName)
		}
		if entry.DocumentNumber != "" {
			fmt.Fprintf(writer, "  Document:       %s\n", entry.DocumentNumber)
		}
		writer.WriteString("\n")
	}

	writer.WriteString("================================================================================\n" +
		"End of Error Log\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush error log: %w", err)
	}

	return logPath, nil
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about a processing run.
type ProcessingSummary struct {
	StartTime       time.Time
	EndTime         time.Time
	TotalFiles      int
	SuccessfulFiles int
	FailedFiles     int
	WithheldFiles   int
	TotalRows       int
	ValidRows       int
	Transactions    int
	RowErrors       int
	Violations      int
	ProcessedFiles  []ProcessedFileInfo
	FailedFilesList []FailedFileInfo
}

// ProcessedFileInfo contains information about a successfully processed file.
type ProcessedFileInfo struct {
	InputFile    string
	OutputFile   string
	ArchivePath  string
	Rows         int
	Transactions int
	Period       string
	ProcessTime  time.Duration
}

// FailedFileInfo contains information about a failed file.
type FailedFileInfo struct {
	InputFile    string
	ErrorMessage string
	ErrorLog     string
}

// WriteSummaryLog writes a processing summary to processing_summary_<ts>.txt.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	summaryFileName := fmt.Sprintf("processing_summary_%s.txt", summary.EndTime.Format("20060102_150405"))
	summaryPath := filepath.Join(outputDir, summaryFileName)

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	duration := summary.EndTime.Sub(summary.StartTime)
	fmt.Fprintf(writer, "GoBD DATEV Export - Processing Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n"+
		"Statistics:\n"+
		"  Total Files:        %d\n"+
		"  Exported:           %d\n"+
		"  Awaiting Approval:  %d\n"+
		"  Failed:             %d\n"+
		"  Total Rows:         %d\n"+
		"  Valid Rows:         %d\n"+
		"  Transactions:       %d\n"+
		"  Row Errors:         %d\n"+
		"  GoBD Violations:    %d\n\n",
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		duration.String(),
		summary.TotalFiles,
		summary.SuccessfulFiles,
		summary.WithheldFiles,
		summary.FailedFiles,
		summary.TotalRows,
		summary.ValidRows,
		summary.Transactions,
		summary.RowErrors,
		summary.Violations)

	if len(summary.ProcessedFiles) > 0 {
		writer.WriteString("Processed Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, pf := range summary.ProcessedFiles {
			fmt.Fprintf(writer, "  Input:        %s\n", pf.InputFile)
			if pf.OutputFile != "" {
				fmt.Fprintf(writer, "  Output:       %s\n", pf.OutputFile)
			} else {
				writer.WriteString("  Output:       (awaiting approval)\n")
			}
			fmt.Fprintf(writer, "  Rows:         %d\n", pf.Rows)
			fmt.Fprintf(writer, "  Transactions: %d\n", pf.Transactions)
			fmt.Fprintf(writer, "  Period:       %s\n", pf.Period)
			fmt.Fprintf(writer, "  Process Time: %s\n\n", pf.ProcessTime.String())
		}
	}

	if len(summary.FailedFilesList) > 0 {
		writer.WriteString("Failed Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, ff := range summary.FailedFilesList {
			fmt.Fprintf(writer, "  File:  %s\n", ff.InputFile)
			fmt.Fprintf(writer, "  Error: %s\n", ff.ErrorMessage)
			if ff.ErrorLog != "" {
				fmt.Fprintf(writer, "  Log:   %s\n", ff.ErrorLog)
			}
			writer.WriteString("\n")
		}
	}

	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}

	return summaryPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}
