package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dhcgn/mail-grep/model"
	"github.com/dhcgn/mail-grep/report"
)

// Environment variables read as fallbacks.
const (
	EnvPostgresDSN = "MAILGREP_PG_DSN"
	EnvDebug       = "MAILGREP_DEBUG"
)

// ResultsDir holds outputs written under a default name.
const ResultsDir = "results"

// ErrConfig marks invalid command-line input.
var ErrConfig = errors.New("invalid configuration")

// Config captures all command-line options of a search run.
type Config struct {
	Pattern    string
	IgnoreCase bool
	// Output is the explicit output path; empty selects a default name
	// under ResultsDir.
	Output    string
	Source    string
	Workers   int
	Parts     []string
	NoExclude bool
	SkipSent  bool
	LogLevel  string
	LogDir    string
	// AllLogs keeps debug and info records emitted outside this module.
	AllLogs bool
	PGDSN   string
}

var searchableParts = []string{
	model.PartPlain,
	model.PartHTML,
	model.PartHTMLTextOnly,
	model.PartHTMLConcat,
}

// RegisterFlags attaches all CLI flags to the provided command.
func RegisterFlags(cmd *cobra.Command) error {
	defaultSource, err := defaultSource()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	flags.BoolP("ignore-case", "i", false, "Match case-insensitively")
	flags.StringP("output", "o", "", "Output path ending in .csv or .xlsx (both formats are written); defaults to results/<pattern>_<time>")
	flags.StringP("source", "s", defaultSource, "Apple Mail store, mailbox directory or single .emlx/mbox file")
	flags.Int("workers", 1, "Number of messages parsed in parallel")
	flags.StringArray("part", nil, "Body view to search, repeatable: "+strings.Join(searchableParts, ", ")+" (default text/plain and text/html_textonly)")
	flags.Bool("no-exclude", false, "Also search drafts, trash, junk, outbox and archive mailboxes")
	flags.Bool("skip-sent", false, "Skip sent mailboxes")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-dir", "", "Directory for a log file copy of the console output")
	flags.Bool("all-logs", false, "Also show debug and info records from code outside mail-grep")
	flags.String("pg-dsn", "", "PostgreSQL DSN to export hits to (falls back to "+EnvPostgresDSN+" env var)")

	return nil
}

// LoadConfig converts the parsed Cobra flags and arguments into a Config
// struct with validation.
func LoadConfig(cmd *cobra.Command, args []string) (Config, error) {
	flags := cmd.Flags()

	if len(args) != 1 {
		return Config{}, fmt.Errorf("%w: exactly one PATTERN argument is required", ErrConfig)
	}

	ignoreCase, err := flags.GetBool("ignore-case")
	if err != nil {
		return Config{}, err
	}
	output, err := flags.GetString("output")
	if err != nil {
		return Config{}, err
	}
	source, err := flags.GetString("source")
	if err != nil {
		return Config{}, err
	}
	workers, err := flags.GetInt("workers")
	if err != nil {
		return Config{}, err
	}
	parts, err := flags.GetStringArray("part")
	if err != nil {
		return Config{}, err
	}
	noExclude, err := flags.GetBool("no-exclude")
	if err != nil {
		return Config{}, err
	}
	skipSent, err := flags.GetBool("skip-sent")
	if err != nil {
		return Config{}, err
	}
	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return Config{}, err
	}
	logDir, err := flags.GetString("log-dir")
	if err != nil {
		return Config{}, err
	}
	allLogs, err := flags.GetBool("all-logs")
	if err != nil {
		return Config{}, err
	}
	pgDSN, err := flags.GetString("pg-dsn")
	if err != nil {
		return Config{}, err
	}

	if pgDSN == "" {
		pgDSN = os.Getenv(EnvPostgresDSN)
	}

	logLevel = strings.ToLower(logLevel)
	if logLevel == "warning" {
		logLevel = "warn"
	}
	if os.Getenv(EnvDebug) == "1" {
		logLevel = "debug"
	}

	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}

	cfg := Config{
		Pattern:    args[0],
		IgnoreCase: ignoreCase,
		Output:     strings.TrimSpace(output),
		Source:     cleanPath(source),
		Workers:    workers,
		Parts:      parts,
		NoExclude:  noExclude,
		SkipSent:   skipSent,
		LogLevel:   logLevel,
		LogDir:     logDir,
		AllLogs:    allLogs,
		PGDSN:      strings.TrimSpace(pgDSN),
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// OutputBase returns the output path without extension. defaultName is
// used under ResultsDir when no output was given.
func (c Config) OutputBase(defaultName string) string {
	if c.Output == "" {
		return filepath.Join(ResultsDir, defaultName)
	}
	return strings.TrimSuffix(c.Output, filepath.Ext(c.Output))
}

func validateConfig(cfg Config) error {
	if cfg.Pattern == "" {
		return fmt.Errorf("%w: PATTERN must not be empty", ErrConfig)
	}
	if cfg.Output != "" && !report.Supported(cfg.Output) {
		return fmt.Errorf("%w: --output %q: %w", ErrConfig, cfg.Output, report.ErrUnsupportedFormat)
	}
	if cfg.Source == "" {
		return fmt.Errorf("%w: --source is required", ErrConfig)
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("%w: --workers must be at least 1", ErrConfig)
	}
	for _, p := range cfg.Parts {
		if !isSearchablePart(p) {
			return fmt.Errorf("%w: --part %q must be one of %s", ErrConfig, p, strings.Join(searchableParts, ", "))
		}
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: invalid --log-level: %s", ErrConfig, cfg.LogLevel)
	}

	return nil
}

func isSearchablePart(p string) bool {
	for _, s := range searchableParts {
		if p == s {
			return true
		}
	}
	return false
}

func defaultSource() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Library", "Mail"), nil
}

func cleanPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}
