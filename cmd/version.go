// =============================================================================
// GoBD DATEV Export - Version Command
// =============================================================================
//
// COMMAND USAGE:
//   gobdx version
//
// OUTPUT:
//   GoBD DATEV Export
//   Version:      1.0.0
//   Build Date:   2024-01-01
//   EXTF Format:  510 / Buchungsstapel 7
//   Go Version:   go1.24.11
//
// =============================================================================

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/gobd-datev-export/internal/extfwriter"
)

// =============================================================================
// VERSION INFORMATION
// =============================================================================
// These variables are set at build time using ldflags:
//   go build -ldflags "-X 'github.com/ginjaninja78/gobd-datev-export/cmd.Version=1.0.0'"

// Version is the application version.
var Version = "1.0.0"

// BuildDate is the date the application was built.
var BuildDate = "unknown"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the application version",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "GoBD DATEV Export")
		fmt.Fprintf(out, "Version:      %s\n", Version)
		fmt.Fprintf(out, "Build Date:   %s\n", BuildDate)
		fmt.Fprintf(out, "EXTF Format:  %d / %s %d\n", extfwriter.FormatVersion, extfwriter.FormatName, extfwriter.FormatSubVersion)
		fmt.Fprintf(out, "Go Version:   %s\n", runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
