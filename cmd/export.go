package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/gobd-datev-export/internal/converter"
	"github.com/ginjaninja78/gobd-datev-export/internal/types"
	"github.com/ginjaninja78/gobd-datev-export/internal/validation"
	"github.com/ginjaninja78/gobd-datev-export/pkg/utils"
)

// errApprovalRequired is returned by export and process without --approved.
var errApprovalRequired = errors.New("export requires human approval; review the validation result and rerun with --approved")

var (
	outPath  string
	approved bool
	metaFlag types.ExportMetadata
)

// exportCmd writes the DATEV Buchungsstapel for one input file.
var exportCmd = &cobra.Command{
	Use:   "export FILE",
	Short: "Export a validated bookkeeping file as DATEV EXTF",
	Long: `Parse and validate a bookkeeping export and, when it is free of errors and
the export was approved, write the DATEV EXTF Buchungsstapel.

The DATEV header values come from the configuration and the client profile;
the flags below override them.`,
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
		if !res.Valid {
			fmt.Fprintln(cmd.ErrOrStderr(), validation.FormatViolations(res.Violations))
			return fmt.Errorf("%w: %d violation(s)", converter.ErrValidationFailed, len(res.Violations))
		}

		if !approved {
			appLog.Warn().
				Int("transactions", len(res.PreparedTransactions)).
				Str("period", res.Summary.Period).
				Msg("export withheld")
			return errApprovalRequired
		}

		out, err := conv.ExportDatev(types.ExportRequest{
			Transactions: res.PreparedTransactions,
			Metadata:     exportMetadata(cmd, conv.Metadata()),
		})
		if err != nil {
			return err
		}

		target := outPath
		if target == "" {
			target = out.FileName
		}
		fm := utils.NewFileManager("", filepath.Dir(target), "", "")
		written, err := fm.WriteOutputFile(filepath.Base(target), out.Data)
		if err != nil {
			return err
		}

		appLog.Info().
			Str("output", written).
			Int("rows", out.Rows).
			Str("encoding", out.Encoding).
			Msg("datev file written")
		fmt.Fprintln(cmd.OutOrStdout(), written)
		return nil
	},
}

// exportMetadata overlays the flags the user set on base.
func exportMetadata(cmd *cobra.Command, base types.ExportMetadata) types.ExportMetadata {
	flags := cmd.Flags()
	if flags.Changed("consultant") {
		base.ConsultantNumber = metaFlag.ConsultantNumber
	}
	if flags.Changed("client") {
		base.ClientNumber = metaFlag.ClientNumber
	}
	if flags.Changed("fiscal-year-begin") {
		base.FiscalYearBegin = metaFlag.FiscalYearBegin
	}
	if flags.Changed("account-length") {
		base.AccountLength = metaFlag.AccountLength
	}
	if flags.Changed("description") {
		base.Description = metaFlag.Description
	}
	return base
}

func init() {
	rootCmd.AddCommand(exportCmd)
	addProfileFlag(exportCmd)

	f := exportCmd.Flags()
	f.StringVarP(&outPath, "out", "o", "", "Output path (default: the DATEV file name in the current directory)")
	f.BoolVar(&approved, "approved", false, "Confirm that a person reviewed the validation result")
	f.StringVar(&metaFlag.ConsultantNumber, "consultant", "", "DATEV consultant number (Beraternummer)")
	f.StringVar(&metaFlag.ClientNumber, "client", "", "DATEV client number (Mandantennummer)")
	f.StringVar(&metaFlag.FiscalYearBegin, "fiscal-year-begin", "", "Fiscal year begin as YYYYMMDD")
	f.IntVar(&metaFlag.AccountLength, "account-length", 0, "Account number length (4-8)")
	f.StringVar(&metaFlag.Description, "description", "", "Batch description")
}
