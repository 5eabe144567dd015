// =============================================================================
// GoBD DATEV Export - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. All other commands
// are attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (gobdx)
//   ├── parseCmd    (gobdx parse FILE)
//   ├── validateCmd (gobdx validate FILE)
//   ├── exportCmd   (gobdx export FILE --out PATH --approved)
//   ├── processCmd  (gobdx process)
//   ├── serveCmd    (gobdx serve)
//   └── versionCmd  (gobdx version)
//
// CONFIGURATION:
//   Before any subcommand runs, the root command:
//   1. Loads the .env file (missing file is fine)
//   2. Loads the YAML configuration with environment overrides
//   3. Sets up the zerolog logger
//
// =============================================================================

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/gobd-datev-export/internal/config"
	"github.com/ginjaninja78/gobd-datev-export/internal/converter"
	"github.com/ginjaninja78/gobd-datev-export/internal/logger"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// envFile holds the path to the .env file.
var envFile string

// verbose forces debug logging.
var verbose bool

// profileCode selects a client profile by code for single-file commands.
var profileCode string

// appConfig and appLog are set in PersistentPreRunE.
var (
	appConfig *config.Config
	appLog    zerolog.Logger
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "gobdx",
	Short: "GoBD DATEV Export - validate bookkeeping CSV and export DATEV Buchungsstapel",
	Long: `gobdx reads German-locale bookkeeping exports (CSV or XLSX), checks every
booking against the GoBD rules and writes validated bookings as a DATEV EXTF
Buchungsstapel for import into tax software.

Every export requires explicit human approval (--approved).

Example Usage:
  gobdx parse buchungen.csv                       # Parse and print rows as JSON
  gobdx validate buchungen.csv --report r.xlsx    # Run the GoBD checks
  gobdx export buchungen.csv --out extf.csv --approved
  gobdx process --approved                        # Batch the input directory
  gobdx serve                                     # Start the HTTP API`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if verbose {
			cfg.LogLevel = "debug"
		}

		appConfig = cfg
		appLog = logger.New(cfg.LogLevel, cfg.LogFormat)
		appLog.Debug().Str("config", cfgFile).Msg("configuration loaded")
		return nil
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "Path to the main configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to the .env file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// =============================================================================
// HELPERS
// =============================================================================

// addProfileFlag registers --profile on a single-file command.
func addProfileFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&profileCode, "profile", "", "Client profile code from the profiles directory")
}

// selectedProfile returns the profile named by --profile, or nil.
func selectedProfile() (*config.ClientProfile, error) {
	if profileCode == "" {
		return nil, nil
	}
	profiles, err := config.LoadProfiles(appConfig.ProfilesDir)
	if err != nil {
		return nil, err
	}
	p, ok := profiles[profileCode]
	if !ok {
		return nil, fmt.Errorf("unknown client profile %q", profileCode)
	}
	return p, nil
}

// newConverter builds a converter for the selected profile.
func newConverter(opts ...converter.Option) (*converter.Converter, error) {
	profile, err := selectedProfile()
	if err != nil {
		return nil, err
	}
	opts = append([]converter.Option{
		converter.WithLogger(appLog),
		converter.WithProfile(profile),
	}, opts...)
	return converter.New(appConfig, opts...)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
