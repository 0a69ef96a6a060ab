// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package manifest writes the YAML sidecar that describes a finished
// conversion, so the graduation service operators can tell which export a
// JSON document came from without opening it.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/registrar-json/internal/registrar"
)

// Suffix is appended to the document path to name its manifest.
const Suffix = ".manifest.yaml"

// Manifest describes one conversion run.
type Manifest struct {
	RunID       string    `json:"run_id" yaml:"run_id"`
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
	Mode        string    `json:"mode" yaml:"mode"`

	Source      string `json:"source" yaml:"source"`
	SourceBytes int64  `json:"source_bytes" yaml:"source_bytes"`

	Output       string `json:"output" yaml:"output"`
	OutputBytes  int64  `json:"output_bytes" yaml:"output_bytes"`
	OutputSHA256 string `json:"output_sha256" yaml:"output_sha256"`

	Rows    int `json:"rows" yaml:"rows"`
	Written int `json:"written" yaml:"written"`
	Skipped int `json:"skipped" yaml:"skipped"`
}

// PathFor returns the manifest path for a document path.
func PathFor(jsonPath string) string {
	return jsonPath + Suffix
}

// Build assembles a manifest for a completed conversion and hashes the
// output document.
func Build(runID, mode, csvPath, jsonPath string, sum registrar.Summary, now time.Time) (*Manifest, error) {
	digest, err := fileSHA256(jsonPath)
	if err != nil {
		return nil, err
	}
	return &Manifest{
		RunID:        runID,
		GeneratedAt:  now.UTC().Truncate(time.Second),
		Mode:         mode,
		Source:       csvPath,
		SourceBytes:  sum.SourceBytes,
		Output:       jsonPath,
		OutputBytes:  sum.OutputBytes,
		OutputSHA256: digest,
		Rows:         sum.Rows,
		Written:      sum.Written,
		Skipped:      sum.Skipped,
	}, nil
}

// Write saves m next to its output document and returns the path written.
// An existing manifest is replaced; it belongs to the document that was
// just overwritten.
func Write(m *Manifest) (string, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshaling manifest: %w", err)
	}
	path := PathFor(m.Output)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing manifest %s: %w", path, err)
	}
	return path, nil
}

// Read loads a manifest file.
func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return &m, nil
}

// Verify reports whether the document at m.Output still matches the
// recorded hash.
func Verify(m *Manifest) (bool, error) {
	digest, err := fileSHA256(m.Output)
	if err != nil {
		return false, err
	}
	return digest == m.OutputSHA256, nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
