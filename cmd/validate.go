package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/gobd-datev-export/internal/converter"
	"github.com/ginjaninja78/gobd-datev-export/internal/report"
	"github.com/ginjaninja78/gobd-datev-export/internal/types"
	"github.com/ginjaninja78/gobd-datev-export/internal/validation"
)

// reportPath is where validate writes the XLSX report, if set.
var reportPath string

// validateCmd runs the GoBD checks on one input file.
var validateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Run the GoBD checks on a bookkeeping file",
	Long: `Parse a bookkeeping export, run the GoBD checks and print the validation
result as JSON. The violations are also listed on stderr. Exits non-zero when
any row failed to parse or any violation was found.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conv, err := newConverter()
		if err != nil {
			return err
		}

		res, err := validateFile(conv, args[0])
		if err != nil {
			return err
		}

		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), validation.FormatViolations(res.Violations))

		if reportPath != "" {
			if err := report.SaveValidationReport(reportPath, res); err != nil {
				return err
			}
			appLog.Info().Str("report", reportPath).Msg("validation report written")
		}

		if !res.Valid {
			return fmt.Errorf("%w: %d violation(s)", converter.ErrValidationFailed, len(res.Violations))
		}
		return nil
	},
}

// validateFile parses path and validates its rows. Row errors abort, so no
// booking is silently left out of the validation.
func validateFile(conv *converter.Converter, path string) (*types.ValidationResult, error) {
	parsed, err := conv.ParseFile(path)
	if err != nil {
		return nil, err
	}
	if len(parsed.RowErrors) > 0 {
		for _, re := range parsed.RowErrors {
			appLog.Error().Int("row", re.RowIndex).Str("field", re.Field).Msg(re.Message)
		}
		return nil, fmt.Errorf("%w: %d error(s) in %d row(s)", converter.ErrRowsRejected, len(parsed.RowErrors), parsed.InvalidRows)
	}
	return conv.ValidateGoBD(parsed.Rows)
}

func init() {
	rootCmd.AddCommand(validateCmd)
	addProfileFlag(validateCmd)
	validateCmd.Flags().StringVar(&reportPath, "report", "", "Write an XLSX validation report to this path")
}
