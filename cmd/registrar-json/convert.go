// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/registrar-json/internal/ledger"
	"github.com/pdiddy/registrar-json/internal/logging"
	"github.com/pdiddy/registrar-json/internal/manifest"
	"github.com/pdiddy/registrar-json/internal/registrar"
	"github.com/pdiddy/registrar-json/pkg/types"
)

func addConvertFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.Flags()
	f.BoolP("force", "f", false, "overwrite an existing output file")
	f.BoolP("overwrite", "o", false, "same as --force")
	f.BoolP("compact", "c", false, "only keep rows with a degree status date (default)")
	f.Bool("full", false, "keep every row")
	f.Int64("min-size", types.DefaultMinSourceBytes, "reject CSV files of this many bytes or fewer")
	f.Bool("manifest", false, "write <json_path>.manifest.yaml describing the run")

	cmd.MarkFlagsMutuallyExclusive("compact", "full")

	_ = v.BindPFlag("full", f.Lookup("full"))
	_ = v.BindPFlag("min_size", f.Lookup("min-size"))
	_ = v.BindPFlag("manifest", f.Lookup("manifest"))
}

// resolveRunConfig merges flags, environment, and config file into the
// immutable configuration for this run. Overwrite comes only from the
// command line.
func resolveRunConfig(cmd *cobra.Command, v *viper.Viper) (types.RunConfig, error) {
	conv := types.DefaultConversionConfig()

	force, _ := cmd.Flags().GetBool("force")
	overwrite, _ := cmd.Flags().GetBool("overwrite")
	conv.Overwrite = force || overwrite

	if v.GetBool("full") && !cmd.Flags().Changed("compact") {
		conv.IncludeOnlyGraduates = false
	}
	if v.IsSet("min_size") {
		conv.MinSourceBytes = v.GetInt64("min_size")
	}

	ledgerFile, err := ledgerPath(v)
	if err != nil {
		return types.RunConfig{}, err
	}

	return types.RunConfig{
		Conversion: conv,
		Logging: types.LoggingConfig{
			Level:  v.GetString("log_level"),
			Format: v.GetString("log_format"),
		},
		Ledger:        types.LedgerConfig{Path: ledgerFile},
		WriteManifest: v.GetBool("manifest"),
	}, nil
}

func runConvert(cmd *cobra.Command, args []string, v *viper.Viper) error {
	rc, err := resolveRunConfig(cmd, v)
	if err != nil {
		return err
	}

	opts := logging.FromConfig(rc.Logging)
	opts.Writer = cmd.ErrOrStderr()
	logging.Init(opts)

	csvPath, err := expandPath(args[0])
	if err != nil {
		return err
	}
	target := registrar.DefaultOutputPath(time.Now(), rc.Conversion.IncludeOnlyGraduates)
	if len(args) > 1 {
		target = args[1]
	}
	jsonPath, err := expandPath(target)
	if err != nil {
		return err
	}

	conv := registrar.New(rc.Conversion, logging.Named("registrar"))
	run := ledger.NewRun(csvPath, jsonPath, rc.Conversion.Mode(), time.Now())

	sum, convErr := conv.Convert(csvPath, jsonPath)

	var manifestErr error
	if convErr == nil && rc.WriteManifest {
		manifestErr = writeManifest(run, csvPath, jsonPath, rc.Conversion.Mode(), sum)
	}

	run.Finish(sum, errors.Join(convErr, manifestErr), time.Now())
	if rc.Ledger.Enabled() {
		recordRun(rc.Ledger, run)
	}

	if convErr != nil {
		return convErr
	}
	return manifestErr
}

func writeManifest(run ledger.Run, csvPath, jsonPath, mode string, sum registrar.Summary) error {
	m, err := manifest.Build(run.ID, mode, csvPath, jsonPath, sum, time.Now())
	if err != nil {
		return fmt.Errorf("building manifest: %w", err)
	}
	path, err := manifest.Write(m)
	if err != nil {
		return err
	}
	log := logging.Named("manifest")
	log.Info().Str("path", path).Msg("manifest written")
	return nil
}

// recordRun stores the run in the ledger. Ledger problems are logged and
// never change the outcome of the conversion.
func recordRun(cfg types.LedgerConfig, run ledger.Run) {
	log := logging.Named("ledger")

	store, err := ledger.Open(cfg)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.Path).Msg("ledger unavailable, run not recorded")
		return
	}
	defer store.Close()

	if err := store.Record(context.Background(), run); err != nil {
		log.Warn().Err(err).Str("run_id", run.ID).Msg("recording run")
		return
	}
	log.Debug().Str("run_id", run.ID).Str("outcome", run.Outcome).Msg("run recorded")
}

// expandPath resolves a leading ~ and makes p absolute.
func expandPath(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding %s: %w", p, err)
		}
		p = filepath.Join(home, p[1:])
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", p, err)
	}
	return abs, nil
}

// ledgerPath returns the configured ledger as an absolute path, or ""
// when no ledger is configured.
func ledgerPath(v *viper.Viper) (string, error) {
	p := v.GetString("ledger")
	if p == "" {
		return "", nil
	}
	abs, err := expandPath(p)
	if err != nil {
		return "", fmt.Errorf("ledger path: %w", err)
	}
	return abs, nil
}
