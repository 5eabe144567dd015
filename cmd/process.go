// =============================================================================
// GoBD DATEV Export - Process Command
// =============================================================================
//
// This file defines the 'process' command, which runs the whole pipeline over
// every file in the input directory.
//
// COMMAND USAGE:
//   gobdx process [flags]
//
// FLAGS:
//   --approved : Write DATEV files; without it files are validated only
//   --file     : Process only this file
//   --client   : Process only files matching this client profile
//
// PROCESSING PIPELINE:
//   1. Load the client profiles
//   2. Discover CSV and XLSX files in the input directory
//   3. Match each file to a client profile
//   4. For each file (concurrently, max_concurrency at a time):
//      a. Parse with the profile's aliases and transformation rules
//      b. Run the GoBD checks
//      c. Export and archive, if approved
//   5. Write the processing summary
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/gobd-datev-export/internal/config"
	"github.com/ginjaninja78/gobd-datev-export/internal/converter"
	"github.com/ginjaninja78/gobd-datev-export/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// singleFilePath restricts processing to one file.
var singleFilePath string

// clientFilter restricts processing to one client profile.
var clientFilter string

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Validate and export every file in the input directory",
	Long: `The process command scans the input directory for CSV and XLSX files,
matches each to a client profile and runs parse, GoBD validation and, when
--approved is given, the DATEV export.

Files are processed concurrently. A failure in one file does not affect the
others unless stop_on_error is set.

On export:
  - The DATEV file is placed in the output directory
  - The input file is moved to the input archive
  - The DATEV file is copied to the output archive

On error:
  - An error log is written to the output directory
  - The input file stays in the input directory

Without --approved every file is validated, a report is written and the
input stays in place for review.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runProcess(ctx, cmd)
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().BoolVar(&approved, "approved", false, "Confirm that a person reviewed the input; write DATEV files")
	processCmd.Flags().StringVar(&singleFilePath, "file", "", "Process only this file")
	processCmd.Flags().StringVar(&clientFilter, "client", "", "Process only files for this client profile code")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runProcess(ctx context.Context, cmd *cobra.Command) error {
	start := time.Now()
	out := cmd.OutOrStdout()

	// =========================================================================
	// STEP 1: LOAD PROFILES
	// =========================================================================

	profiles, err := config.LoadProfiles(appConfig.ProfilesDir)
	if err != nil {
		return fmt.Errorf("failed to load client profiles: %w", err)
	}
	appLog.Info().Int("profiles", len(profiles)).Msg("client profiles loaded")

	if clientFilter != "" {
		if _, ok := profiles[clientFilter]; !ok {
			return fmt.Errorf("unknown client profile %q", clientFilter)
		}
	}

	// =========================================================================
	// STEP 2: DISCOVER INPUT FILES
	// =========================================================================

	fm := utils.NewFileManager(appConfig.InputDir, appConfig.OutputDir, appConfig.InputArchiveDir, appConfig.OutputArchiveDir)
	if err := fm.EnsureDirectories(); err != nil {
		return err
	}

	var inputFiles []string
	if singleFilePath != "" {
		inputFiles = []string{singleFilePath}
	} else {
		inputFiles, err = fm.DiscoverInputFiles()
		if err != nil {
			return fmt.Errorf("failed to discover input files: %w", err)
		}
	}

	if len(inputFiles) == 0 {
		fmt.Fprintln(out, "No input files found.")
		return nil
	}

	// =========================================================================
	// STEP 3: MATCH PROFILES AND BUILD JOBS
	// =========================================================================
	// One converter per profile; converters are safe for concurrent use.

	convs := make(map[string]*converter.Converter)
	convErrs := make(map[string]error)
	var jobs []converter.Job

	for _, path := range inputFiles {
		profile := config.FindProfile(profiles, filepath.Base(path))
		code := ""
		if profile != nil {
			code = profile.Code
		}
		if clientFilter != "" && code != clientFilter {
			continue
		}

		conv, seen := convs[code]
		if !seen && convErrs[code] == nil {
			conv, err = converter.New(appConfig,
				converter.WithLogger(appLog),
				converter.WithProfile(profile),
				converter.WithApproval(approved),
			)
			if err != nil {
				convErrs[code] = err
			} else {
				convs[code] = conv
			}
		}

		jobs = append(jobs, converter.Job{
			Path:      path,
			Converter: conv,
			Metadata:  appConfig.MetadataFor(profile),
			Err:       convErrs[code],
		})
	}

	fmt.Fprintf(out, "Processing %d file(s)...\n", len(jobs))

	// =========================================================================
	// STEP 4: PROCESS FILES CONCURRENTLY
	// =========================================================================

	results := converter.RunBatch(ctx, jobs, converter.BatchOptions{
		Concurrency: appConfig.MaxConcurrency,
		StopOnError: appConfig.StopOnError,
	})

	for _, r := range results {
		name := filepath.Base(r.FilePath)
		switch {
		case r.Error != nil:
			fmt.Fprintf(out, "  ✗ %s: %v\n", name, r.Error)
		case r.Exported:
			fmt.Fprintf(out, "  ✓ %s -> %s\n", name, r.OutputFile)
		default:
			fmt.Fprintf(out, "  ? %s: valid, awaiting approval (report: %s)\n", name, r.ReportFile)
		}
	}

	// =========================================================================
	// STEP 5: WRITE SUMMARY
	// =========================================================================

	summary := converter.Summarize(results, start, time.Now())

	fmt.Fprintln(out, "\n=== Processing Complete ===")
	fmt.Fprintf(out, "Total files:        %d\n", summary.TotalFiles)
	fmt.Fprintf(out, "Exported:           %d\n", summary.SuccessfulFiles)
	fmt.Fprintf(out, "Awaiting approval:  %d\n", summary.WithheldFiles)
	fmt.Fprintf(out, "Failed:             %d\n", summary.FailedFiles)
	fmt.Fprintf(out, "Time elapsed:       %s\n", summary.EndTime.Sub(summary.StartTime))

	summaryPath, err := utils.WriteSummaryLog(summary, appConfig.OutputDir)
	if err != nil {
		appLog.Warn().Err(err).Msg("failed to write processing summary")
	} else {
		fmt.Fprintf(out, "Summary:            %s\n", summaryPath)
	}

	if summary.FailedFiles > 0 {
		return fmt.Errorf("%d of %d file(s) failed", summary.FailedFiles, summary.TotalFiles)
	}
	return nil
}
