// =============================================================================
// GoBD DATEV Export - Main Entry Point
// =============================================================================
//
// USAGE:
//   gobdx parse FILE      - Parse a bookkeeping CSV or XLSX file
//   gobdx validate FILE   - Run the GoBD checks
//   gobdx export FILE     - Write the DATEV EXTF Buchungsstapel
//   gobdx process         - Batch every file in the input directory
//   gobdx serve           - Start the HTTP API
//   gobdx version         - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : parsing, validation, export and transport
//   - pkg/       : file management shared by the batch pipeline
//   - profiles/  : per-client YAML profiles
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/gobd-datev-export/cmd"
)

func main() {
	cmd.Execute()
}
