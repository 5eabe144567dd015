package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// parseCmd parses one input file and prints the result as JSON.
var parseCmd = &cobra.Command{
	Use:   "parse FILE",
	Short: "Parse a bookkeeping CSV or XLSX file",
	Long: `Parse a German-locale bookkeeping export and print the valid rows, the
row errors and the counts as JSON. Exits non-zero when any row failed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conv, err := newConverter()
		if err != nil {
			return err
		}

		res, err := conv.ParseFile(args[0])
		if err != nil {
			return err
		}
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}

		if len(res.RowErrors) > 0 {
			return fmt.Errorf("%d row error(s) in %d row(s)", len(res.RowErrors), res.InvalidRows)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
	addProfileFlag(parseCmd)
}
