// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the registrar-json CLI, which turns
// the registrar's graduation export into the graduation service's JSON.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/registrar-json/internal/registrar"
)

// version is set at build time via ldflags.
var version = "dev"

const envPrefix = "REGISTRAR_JSON"

// newRootCmd builds the command tree. The root command itself performs
// the conversion; history and version are subcommands.
func newRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:   "registrar-json [flags] <csv_path> [json_path]",
		Short: "Reformat the Registrar's CSV export as JSON",
		Long: `registrar-json converts the Registrar's CSV export of graduation records into
the JSON document read by the graduation service. Each record is keyed by its
"etd record key" column; field names are lowercased and sorted.

By default only students with a degree status date are kept (--compact). Use
--full to keep every row. An existing output file is never replaced unless
--force is given.

When json_path is omitted the output is written to
registrar-data-<YYYYMMDD>-<compact|full>.json in the current directory.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfgFile, _ := cmd.Flags().GetString("config")
			return initConfig(v, cfgFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, args, v)
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default: registrar-json.yaml in . or ~/.config/registrar-json/)")
	pf.String("ledger", "", "SQLite file recording conversion runs (empty disables)")
	pf.String("log-level", "warn", "log level: trace, debug, info, warn, error")
	pf.String("log-format", "console", "log format: console or json")

	_ = v.BindPFlag("ledger", pf.Lookup("ledger"))
	_ = v.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = v.BindPFlag("log_format", pf.Lookup("log-format"))

	addConvertFlags(root, v)

	root.AddCommand(newHistoryCmd(v))
	root.AddCommand(newVersionCmd())
	return root
}

// initConfig loads the optional config file and environment overrides
// into v. A missing default config file is not an error; a missing file
// named with --config is.
func initConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("registrar-json")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "registrar-json"))
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

// execute runs the CLI and returns the process exit status. Every failure
// prints one diagnostic line to stdout and exits 1.
func execute(args []string, stdout, stderr io.Writer) int {
	v := viper.New()
	root := newRootCmd(v)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(stdout, diagnose(err))
		return 1
	}
	return 0
}

// diagnose turns an error into the message shown to the operator.
func diagnose(err error) string {
	switch registrar.KindOf(err) {
	case registrar.UnsafeDestination, registrar.SourceMissingOrTooSmall:
		return fmt.Sprintf("Something is wrong with the arguments supplied: %v. "+
			"Double check that the CSV exists, and the JSON does not.", err)
	case registrar.MissingRequiredField, registrar.MalformedInput, registrar.FilesystemError:
		return fmt.Sprintf("Conversion failed: %v. No JSON was written.", err)
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}
