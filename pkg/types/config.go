// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types holds the configuration values shared by the CLI and the
// conversion packages. Values are built once per run and passed by value.
package types

// DefaultMinSourceBytes is the smallest registrar export accepted by default.
// A real export is several megabytes; anything at or under this size is
// treated as truncated.
const DefaultMinSourceBytes int64 = 2_000_000

// LegacyMinSourceBytes is the threshold used by the older full-export tool.
const LegacyMinSourceBytes int64 = 64

// ConversionConfig holds settings for a single CSV-to-JSON conversion.
type ConversionConfig struct {
	// IncludeOnlyGraduates drops rows whose degree status date is blank
	// (compact mode). When false every row is written (full mode).
	IncludeOnlyGraduates bool `json:"include_only_graduates" yaml:"include_only_graduates"`

	// Overwrite permits replacing an existing destination file.
	Overwrite bool `json:"overwrite" yaml:"overwrite"`

	// MinSourceBytes is the sanity threshold for the source file. The
	// source must be strictly larger than this.
	MinSourceBytes int64 `json:"min_source_bytes" yaml:"min_source_bytes"`
}

// DefaultConversionConfig returns the compact, no-overwrite configuration
// with the strict size threshold.
func DefaultConversionConfig() ConversionConfig {
	return ConversionConfig{
		IncludeOnlyGraduates: true,
		MinSourceBytes:       DefaultMinSourceBytes,
	}
}

// Mode names the output variant: "compact" or "full".
func (c ConversionConfig) Mode() string {
	if c.IncludeOnlyGraduates {
		return "compact"
	}
	return "full"
}

// LoggingConfig holds settings for the process logger.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error (default info).
	Level string `json:"level" yaml:"level"`

	// Format is "console" for human-readable output or "json".
	Format string `json:"format" yaml:"format"`
}

// LedgerConfig holds settings for the run history database.
type LedgerConfig struct {
	// Path is the SQLite file. Empty disables the ledger.
	Path string `json:"path" yaml:"path"`
}

// Enabled reports whether runs should be recorded.
func (c LedgerConfig) Enabled() bool {
	return c.Path != ""
}

// RunConfig groups everything the CLI resolves before a conversion.
type RunConfig struct {
	Conversion ConversionConfig `json:"conversion" yaml:"conversion"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
	Ledger     LedgerConfig     `json:"ledger" yaml:"ledger"`

	// WriteManifest enables the YAML sidecar next to the output.
	WriteManifest bool `json:"write_manifest" yaml:"write_manifest"`
}
