// =============================================================================
// GoBD DATEV Export - Configuration Module
// =============================================================================
//
// This module loads the application configuration and the per-client
// profiles used by batch processing.
//
// CONFIGURATION SOURCES (later wins):
//   1. Built-in defaults
//   2. Main config file (gobdx.yaml)
//   3. Environment variables, optionally seeded from a .env file
//
// CLIENT PROFILES:
//   Each YAML file in the profiles directory describes one DATEV client
//   (Mandant): which input files belong to it, its DATEV header values, extra
//   column aliases, and field transformations.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/gobd-datev-export/internal/types"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "gobdx.yaml"

// DefaultMaxInputBytes caps the size of one input file.
const DefaultMaxInputBytes = 10 * 1024 * 1024

// Environment variables that override file settings.
const (
	EnvLogLevel         = "GOBDX_LOG_LEVEL"
	EnvLogFormat        = "GOBDX_LOG_FORMAT"
	EnvServerAddr       = "GOBDX_SERVER_ADDR"
	EnvMaxInputBytes    = "GOBDX_MAX_INPUT_BYTES"
	EnvPIIMode          = "GOBDX_PII_MODE"
	EnvConsultantNumber = "DATEV_CONSULTANT_NUMBER"
	EnvClientNumber     = "DATEV_CLIENT_NUMBER"
	EnvFiscalYearBegin  = "DATEV_FISCAL_YEAR_BEGIN"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the global application configuration.
type Config struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned by the process command for bookkeeping exports.
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// OutputDir receives generated DATEV files and reports.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// InputArchiveDir receives input files after a successful export.
	// Default: "./input_archive"
	InputArchiveDir string `yaml:"input_archive_dir"`

	// OutputArchiveDir receives a copy of every generated DATEV file.
	// Default: "./output_archive"
	OutputArchiveDir string `yaml:"output_archive_dir"`

	// ProfilesDir holds one YAML file per client profile.
	// Default: "./profiles"
	ProfilesDir string `yaml:"profiles_dir"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel is one of "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// LogFormat is "console" or "json".
	// Default: "console"
	LogFormat string `yaml:"log_format"`

	// PIIMode is the default mode of the PII sanitize endpoint when a
	// request names none: "mask", "remove" or "tokenize". Log lines are
	// always masked.
	// Default: "mask"
	PIIMode string `yaml:"pii_mode"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputNameFormat defines generated file names.
	// Placeholders:
	//   {uuid}       - A random UUID
	//   {timestamp}  - Current timestamp (YYYYMMDD_HHMMSS)
	//   {consultant} - DATEV consultant number
	//   {client}     - DATEV client number
	//   {fy}         - Fiscal year begin (YYYYMMDD)
	//   {source}     - Input file name without extension
	// Default: "DATEV_EXTF_{consultant}_{client}_{fy}_{uuid}.csv"
	OutputNameFormat string `yaml:"output_name_format"`

	// WriteReport also writes an XLSX validation report next to each export.
	WriteReport bool `yaml:"write_report"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency is the number of files processed at once.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency"`

	// StopOnError skips the remaining files after the first failure.
	StopOnError bool `yaml:"stop_on_error"`

	// MaxInputBytes is the largest accepted input file.
	// Default: 10 MiB
	MaxInputBytes int64 `yaml:"max_input_bytes"`

	// ColumnAliases extends the built-in header alias table.
	// Keys are header spellings, values are canonical field names.
	ColumnAliases map[string]string `yaml:"column_aliases,omitempty"`

	// TransformationRules are applied to raw cells before parsing.
	TransformationRules []TransformationRule `yaml:"transformation_rules,omitempty"`

	// Datev holds the default DATEV header values.
	Datev types.ExportMetadata `yaml:"datev"`

	// Server configures the HTTP transport.
	Server ServerConfig `yaml:"server"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	// Addr is the listen address. Default: ":8080"
	Addr string `yaml:"addr"`

	// RequestsPerSecond and Burst configure the global rate limiter.
	// Defaults: 10 and 30. A negative RequestsPerSecond disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// =============================================================================
// CLIENT PROFILE STRUCTURE
// =============================================================================

// ClientProfile holds the settings for one DATEV client.
type ClientProfile struct {
	// Name is the human-readable client name used in logs.
	Name string `yaml:"name"`

	// Code identifies the profile. Defaults to the file name.
	Code string `yaml:"code"`

	// FileMatchingPatterns are glob patterns matched against input file
	// names, e.g. "mueller_*.csv".
	FileMatchingPatterns []string `yaml:"file_matching_patterns"`

	// Datev overrides the global DATEV header values field by field.
	Datev types.ExportMetadata `yaml:"datev"`

	// ColumnAliases extend the global alias table for this client.
	ColumnAliases map[string]string `yaml:"column_aliases,omitempty"`

	// TransformationRules run after the global rules.
	TransformationRules []TransformationRule `yaml:"transformation_rules,omitempty"`
}

// Matches reports whether fileName matches any of the profile's patterns.
func (p *ClientProfile) Matches(fileName string) bool {
	base := filepath.Base(fileName)
	for _, pattern := range p.FileMatchingPatterns {
		if ok, err := filepath.Match(pattern, base); err == nil && ok {
			return true
		}
	}
	return false
}

// =============================================================================
// TRANSFORMATION RULE STRUCTURE
// =============================================================================

// TransformationRule defines transformations for one column.
type TransformationRule struct {
	// Field is a canonical field name (e.g. "account") or a passthrough
	// column header.
	Field string `yaml:"field"`

	// Actions are applied in order.
	Actions []TransformationAction `yaml:"actions"`
}

// TransformationAction defines a single transformation step.
type TransformationAction struct {
	// Type is one of:
	//   trim, uppercase, lowercase, prepend_string, append_string,
	//   replace, regex_replace, pad_zeros_to_length, remove_leading_zeros,
	//   extract_digits, lookup, if_empty_use_default
	Type string `yaml:"type"`

	// Value is the action parameter: the string to add, the replacement,
	// the target length or the default.
	Value string `yaml:"value"`

	// Find is the substring or pattern for replace and regex_replace.
	Find string `yaml:"find,omitempty"`

	// LookupTable maps input values to output values for lookup.
	LookupTable map[string]string `yaml:"lookup_table,omitempty"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// LoadDotEnv loads environment variables from the given .env files. Missing
// files are ignored; variables already set are not overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}

	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Load reads the main configuration from configPath. A missing file yields
// the defaults. Environment overrides are applied last.
//
// PARAMETERS:
//   - configPath: path to the YAML file; empty means DefaultPath.
//
// RETURNS:
//   - the validated configuration
//   - an error if the file cannot be parsed or a value is out of range
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultPath
	}

	var cfg Config

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// defaults only
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// applyEnvOverrides copies set environment variables into cfg.
func applyEnvOverrides(cfg *Config) error {
	overrides := []struct {
		env    string
		target *string
	}{
		{EnvLogLevel, &cfg.LogLevel},
		{EnvLogFormat, &cfg.LogFormat},
		{EnvServerAddr, &cfg.Server.Addr},
		{EnvPIIMode, &cfg.PIIMode},
		{EnvConsultantNumber, &cfg.Datev.ConsultantNumber},
		{EnvClientNumber, &cfg.Datev.ClientNumber},
		{EnvFiscalYearBegin, &cfg.Datev.FiscalYearBegin},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.env); ok && v != "" {
			*o.target = v
		}
	}

	if v := os.Getenv(EnvMaxInputBytes); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxInputBytes, err)
		}
		cfg.MaxInputBytes = n
	}

	return nil
}

// applyDefaults sets default values for any unset option.
func applyDefaults(cfg *Config) {
	if cfg.InputDir == "" {
		cfg.InputDir = "./input"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "./output"
	}
	if cfg.InputArchiveDir == "" {
		cfg.InputArchiveDir = "./input_archive"
	}
	if cfg.OutputArchiveDir == "" {
		cfg.OutputArchiveDir = "./output_archive"
	}
	if cfg.ProfilesDir == "" {
		cfg.ProfilesDir = "./profiles"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
	}
	if cfg.PIIMode == "" {
		cfg.PIIMode = "mask"
	}
	if cfg.OutputNameFormat == "" {
		cfg.OutputNameFormat = "DATEV_EXTF_{consultant}_{client}_{fy}_{uuid}.csv"
	}
	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.MaxInputBytes == 0 {
		cfg.MaxInputBytes = DefaultMaxInputBytes
	}
	if cfg.Datev.AccountLength == 0 {
		cfg.Datev.AccountLength = types.DefaultAccountLength
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.RequestsPerSecond == 0 {
		cfg.Server.RequestsPerSecond = 10
	}
	if cfg.Server.Burst == 0 {
		cfg.Server.Burst = 30
	}
}

// Validate checks option ranges. It does not touch the filesystem.
func (c *Config) Validate() error {
	var problems []string

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}

	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("log_format %q is not one of console, json", c.LogFormat))
	}

	switch strings.ToLower(c.PIIMode) {
	case "mask", "remove", "tokenize":
	default:
		problems = append(problems, fmt.Sprintf("pii_mode %q is not one of mask, remove, tokenize", c.PIIMode))
	}

	if c.MaxConcurrency < 1 {
		problems = append(problems, "max_concurrency must be at least 1")
	}
	if c.MaxInputBytes < 1 {
		problems = append(problems, "max_input_bytes must be positive")
	}
	if l := c.Datev.AccountLength; l != 0 && (l < 4 || l > 8) {
		problems = append(problems, fmt.Sprintf("datev.account_length %d is outside 4-8", l))
	}
	if c.Server.Burst < 0 {
		problems = append(problems, "server.burst must not be negative")
	}

	for header := range c.ColumnAliases {
		if strings.TrimSpace(header) == "" {
			problems = append(problems, "column_aliases contains an empty header")
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// =============================================================================
// CLIENT PROFILE LOADING
// =============================================================================

// LoadProfiles loads every *.yaml and *.yml file in profilesDir. A missing
// directory yields no profiles.
//
// RETURNS:
//   - profiles keyed by code, falling back to the file name
//   - an error if any file cannot be parsed
func LoadProfiles(profilesDir string) (map[string]*ClientProfile, error) {
	profiles := make(map[string]*ClientProfile)

	var files []string
	for _, ext := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(profilesDir, ext))
		if err != nil {
			return nil, fmt.Errorf("failed to list profile files: %w", err)
		}
		files = append(files, matches...)
	}

	for _, file := range files {
		profile, err := loadProfile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}

		key := profile.Code
		if key == "" {
			key = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
			profile.Code = key
		}
		profiles[key] = profile
	}

	return profiles, nil
}

func loadProfile(filePath string) (*ClientProfile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var profile ClientProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}
	if profile.Name == "" {
		profile.Name = profile.Code
	}

	return &profile, nil
}

// FindProfile returns the first profile, in code order, whose patterns match
// fileName, or nil.
func FindProfile(profiles map[string]*ClientProfile, fileName string) *ClientProfile {
	codes := make([]string, 0, len(profiles))
	for code := range profiles {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		if profiles[code].Matches(fileName) {
			return profiles[code]
		}
	}
	return nil
}

// =============================================================================
// MERGING
// =============================================================================

// MetadataFor merges the profile's DATEV values over the global ones.
func (c *Config) MetadataFor(p *ClientProfile) types.ExportMetadata {
	meta := c.Datev
	if p == nil {
		return meta
	}
	if p.Datev.ConsultantNumber != "" {
		meta.ConsultantNumber = p.Datev.ConsultantNumber
	}
	if p.Datev.ClientNumber != "" {
		meta.ClientNumber = p.Datev.ClientNumber
	}
	if p.Datev.FiscalYearBegin != "" {
		meta.FiscalYearBegin = p.Datev.FiscalYearBegin
	}
	if p.Datev.AccountLength != 0 {
		meta.AccountLength = p.Datev.AccountLength
	}
	if p.Datev.Description != "" {
		meta.Description = p.Datev.Description
	}
	return meta
}

// AliasesFor merges the profile's column aliases over the global ones.
func (c *Config) AliasesFor(p *ClientProfile) map[string]string {
	merged := make(map[string]string, len(c.ColumnAliases))
	for k, v := range c.ColumnAliases {
		merged[k] = v
	}
	if p != nil {
		for k, v := range p.ColumnAliases {
			merged[k] = v
		}
	}
	return merged
}

// RulesFor returns the global rules followed by the profile's rules.
func (c *Config) RulesFor(p *ClientProfile) []TransformationRule {
	rules := append([]TransformationRule(nil), c.TransformationRules...)
	if p != nil {
		rules = append(rules, p.TransformationRules...)
	}
	return rules
}
