// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/registrar-json/internal/ledger"
	"github.com/pdiddy/registrar-json/pkg/types"
)

func newHistoryCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded conversion runs",
		Long: `History prints the conversion runs stored in the ledger, newest first.
A ledger must be configured with --ledger, the ledger config key, or
REGISTRAR_JSON_LEDGER.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, v)
		},
	}

	f := cmd.Flags()
	f.Int("limit", 20, "maximum number of runs to show")
	f.String("source", "", "only show runs of this CSV file")
	f.Bool("failed", false, "only show runs that did not write a document")
	f.Bool("json", false, "print runs as JSON")
	f.Bool("yaml", false, "print runs as YAML")
	cmd.MarkFlagsMutuallyExclusive("json", "yaml")
	return cmd
}

func runHistory(cmd *cobra.Command, v *viper.Viper) error {
	path, err := ledgerPath(v)
	if err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("no ledger configured: pass --ledger or set ledger in the config file")
	}

	store, err := ledger.Open(types.LedgerConfig{Path: path})
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	source, _ := cmd.Flags().GetString("source")
	failed, _ := cmd.Flags().GetBool("failed")
	if source != "" {
		if source, err = expandPath(source); err != nil {
			return err
		}
	}

	runs, err := store.List(context.Background(), ledger.QueryOptions{
		Limit:      limit,
		Source:     source,
		FailedOnly: failed,
	})
	if err != nil {
		return err
	}
	return ledger.Export(cmd.OutOrStdout(), runs, historyFormat(cmd))
}

func historyFormat(cmd *cobra.Command) ledger.Format {
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return ledger.FormatJSON
	}
	if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
		return ledger.FormatYAML
	}
	return ledger.FormatTable
}
