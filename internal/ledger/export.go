// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"go.yaml.in/yaml/v3"
)

// Format selects how runs are printed.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Export writes runs to w in the given format.
func Export(w io.Writer, runs []Run, format Format) error {
	switch format {
	case FormatJSON:
		if runs == nil {
			runs = []Run{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	case FormatYAML:
		if runs == nil {
			runs = []Run{}
		}
		data, err := yaml.Marshal(runs)
		if err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		_, err = w.Write(data)
		return err
	case FormatTable, "":
		return writeTable(w, runs)
	default:
		return fmt.Errorf("unsupported format %q: use table, json, or yaml", format)
	}
}

func writeTable(w io.Writer, runs []Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}

	fmt.Fprintf(w, "%-20s  %-7s  %-28s  %-8s  %-8s  %-10s  %s\n",
		"Started", "Mode", "Outcome", "Written", "Skipped", "Output", "Source")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for _, r := range runs {
		outcome := r.Outcome
		if len(outcome) > 28 {
			outcome = outcome[:25] + "..."
		}
		fmt.Fprintf(w, "%-20s  %-7s  %-28s  %-8d  %-8d  %-10s  %s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.Mode, outcome,
			r.Written, r.Skipped, humanize.Bytes(uint64(r.OutputBytes)), r.Source)
	}

	_, err := fmt.Fprintf(w, "\n%d runs\n", len(runs))
	return err
}
