// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/registrar-json/internal/ledger"
	"github.com/pdiddy/registrar-json/internal/manifest"
	"github.com/pdiddy/registrar-json/internal/registrar"
	"github.com/pdiddy/registrar-json/pkg/types"
)

const export = "\uFEFF\"ETD Record Key\",Degree Status Date,Name\n" +
	"1,2026-05-15,Ada\n" +
	"2,,Alan\n" +
	"3,2026-08-20,Grace\n"

const compactDoc = `{"1":{"degree status date":"2026-05-15","etd record key":"1","name":"Ada"},` + "\n" +
	`"3":{"degree status date":"2026-08-20","etd record key":"3","name":"Grace"}}`

// isolate keeps the user's config file and environment out of the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func writeExport(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(export), 0o644))
	return path
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestExecute_ConvertsSilently(t *testing.T) {
	dir := isolate(t)
	src := writeExport(t, dir)
	dst := filepath.Join(dir, "out.json")

	code, stdout, stderr := run(t, "--min-size", "0", src, dst)
	require.Equal(t, 0, code, stdout)
	assert.Empty(t, stdout)
	assert.Empty(t, stderr)
	assert.Equal(t, compactDoc, readFile(t, dst))
}

func TestExecute_Full(t *testing.T) {
	dir := isolate(t)
	src := writeExport(t, dir)
	dst := filepath.Join(dir, "out.json")

	code, stdout, _ := run(t, "--min-size", "0", "--full", src, dst)
	require.Equal(t, 0, code, stdout)

	var doc map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(readFile(t, dst)), &doc))
	assert.Len(t, doc, 3)
	assert.Equal(t, "", doc["2"]["degree status date"])
}

func TestExecute_CompactAndFullConflict(t *testing.T) {
	dir := isolate(t)
	src := writeExport(t, dir)
	dst := filepath.Join(dir, "out.json")

	code, stdout, _ := run(t, "--min-size", "0", "-c", "--full", src, dst)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "compact")
	assert.NoFileExists(t, dst)
}

func TestExecute_RefusesExistingDestination(t *testing.T) {
	dir := isolate(t)
	src := writeExport(t, dir)
	dst := filepath.Join(dir, "out.json")
	require.NoError(t, os.WriteFile(dst, []byte("keep me"), 0o644))

	code, stdout, _ := run(t, "--min-size", "0", src, dst)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "Something is wrong with the arguments supplied")
	assert.Equal(t, "keep me", readFile(t, dst))
}

func TestExecute_OverwriteFlags(t *testing.T) {
	for _, flag := range []string{"--force", "--overwrite", "-f", "-o"} {
		t.Run(flag, func(t *testing.T) {
			dir := isolate(t)
			src := writeExport(t, dir)
			dst := filepath.Join(dir, "out.json")
			require.NoError(t, os.WriteFile(dst, []byte("stale"), 0o644))

			code, stdout, _ := run(t, "--min-size", "0", flag, src, dst)
			require.Equal(t, 0, code, stdout)
			assert.Equal(t, compactDoc, readFile(t, dst))
		})
	}
}

func TestExecute_SourceTooSmallByDefault(t *testing.T) {
	dir := isolate(t)
	src := writeExport(t, dir)
	dst := filepath.Join(dir, "out.json")

	code, stdout, _ := run(t, src, dst)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "Double check that the CSV exists")
	assert.NoFileExists(t, dst)
}

func TestExecute_MissingSource(t *testing.T) {
	dir := isolate(t)

	code, stdout, _ := run(t, filepath.Join(dir, "nope.csv"), filepath.Join(dir, "out.json"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "nope.csv")
}

func TestExecute_MissingKeyColumn(t *testing.T) {
	dir := isolate(t)
	src := filepath.Join(dir, "export.csv")
	require.NoError(t, os.WriteFile(src, []byte("Degree Status Date,Name\n2026-05-15,Ada\n"), 0o644))
	dst := filepath.Join(dir, "out.json")

	code, stdout, _ := run(t, "--min-size", "0", src, dst)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "Conversion failed")
	assert.Contains(t, stdout, "etd record key")
	assert.NoFileExists(t, dst)
}

func TestExecute_DefaultOutputPath(t *testing.T) {
	dir := isolate(t)
	src := writeExport(t, dir)

	code, stdout, _ := run(t, "--min-size", "0", "--full", src)
	require.Equal(t, 0, code, stdout)

	matches, err := filepath.Glob(filepath.Join(dir, "registrar-data-*-full.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestExecute_ArgumentCount(t *testing.T) {
	isolate(t)

	code, stdout, _ := run(t)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "Error:")

	code, _, _ = run(t, "a.csv", "b.json", "c.json")
	assert.Equal(t, 1, code)
}

func TestExecute_ConfigFile(t *testing.T) {
	dir := isolate(t)
	src := writeExport(t, dir)
	dst := filepath.Join(dir, "out.json")
	cfg := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("min_size: 0\nfull: true\n"), 0o644))

	code, stdout, _ := run(t, "--config", cfg, src, dst)
	require.Equal(t, 0, code, stdout)
	assert.Contains(t, readFile(t, dst), `"2":`)
}

func TestExecute_CompactFlagOverridesConfig(t *testing.T) {
	dir := isolate(t)
	src := writeExport(t, dir)
	dst := filepath.Join(dir, "out.json")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "registrar-json.yaml"), []byte("min_size: 0\nfull: true\n"), 0o644))

	code, stdout, _ := run(t, "--compact", src, dst)
	require.Equal(t, 0, code, stdout)
	assert.Equal(t, compactDoc, readFile(t, dst))
}

func TestExecute_MissingConfigFile(t *testing.T) {
	dir := isolate(t)
	src := writeExport(t, dir)

	code, stdout, _ := run(t, "--config", filepath.Join(dir, "absent.yaml"), src, filepath.Join(dir, "out.json"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "reading config")
}

func TestExecute_EnvironmentOverride(t *testing.T) {
	dir := isolate(t)
	src := writeExport(t, dir)
	dst := filepath.Join(dir, "out.json")
	t.Setenv("REGISTRAR_JSON_MIN_SIZE", "0")

	code, stdout, _ := run(t, src, dst)
	require.Equal(t, 0, code, stdout)
	assert.Equal(t, compactDoc, readFile(t, dst))
}

func TestExecute_InfoLogging(t *testing.T) {
	dir := isolate(t)
	src := writeExport(t, dir)

	code, stdout, stderr := run(t, "--min-size", "0", "--log-level", "info", "--log-format", "json", src, filepath.Join(dir, "out.json"))
	require.Equal(t, 0, code, stdout)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, `"message":"conversion complete"`)
	assert.Contains(t, stderr, `"component":"registrar"`)
}

func TestExecute_Manifest(t *testing.T) {
	dir := isolate(t)
	src := writeExport(t, dir)
	dst := filepath.Join(dir, "out.json")

	code, stdout, _ := run(t, "--min-size", "0", "--manifest", src, dst)
	require.Equal(t, 0, code, stdout)

	m, err := manifest.Read(manifest.PathFor(dst))
	require.NoError(t, err)
	assert.Equal(t, "compact", m.Mode)
	assert.Equal(t, src, m.Source)
	assert.Equal(t, 3, m.Rows)
	assert.Equal(t, 2, m.Written)
	assert.Equal(t, 1, m.Skipped)

	ok, err := manifest.Verify(m)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExecute_NoManifestOnFailure(t *testing.T) {
	dir := isolate(t)
	src := writeExport(t, dir)
	dst := filepath.Join(dir, "out.json")
	require.NoError(t, os.WriteFile(dst, []byte("keep me"), 0o644))

	code, _, _ := run(t, "--min-size", "0", "--manifest", src, dst)
	assert.Equal(t, 1, code)
	assert.NoFileExists(t, manifest.PathFor(dst))
}

func TestExecute_LedgerAndHistory(t *testing.T) {
	dir := isolate(t)
	src := writeExport(t, dir)
	dst := filepath.Join(dir, "out.json")
	db := filepath.Join(dir, "state", "runs.db")

	code, stdout, _ := run(t, "--ledger", db, "--min-size", "0", src, dst)
	require.Equal(t, 0, code, stdout)

	// Second attempt fails because the document now exists.
	code, _, _ = run(t, "--ledger", db, "--min-size", "0", src, dst)
	require.Equal(t, 1, code)

	code, stdout, _ = run(t, "history", "--ledger", db, "--json")
	require.Equal(t, 0, code, stdout)

	var runs []ledger.Run
	require.NoError(t, json.Unmarshal([]byte(stdout), &runs))
	require.Len(t, runs, 2)
	outcomes := []string{runs[0].Outcome, runs[1].Outcome}
	assert.ElementsMatch(t, []string{ledger.OutcomeOK, "unsafe_destination"}, outcomes)
	for _, r := range runs {
		assert.Equal(t, src, r.Source)
		assert.Equal(t, dst, r.Destination)
	}

	code, stdout, _ = run(t, "history", "--ledger", db, "--failed", "--json")
	require.Equal(t, 0, code, stdout)
	require.NoError(t, json.Unmarshal([]byte(stdout), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "unsafe_destination", runs[0].Outcome)

	code, stdout, _ = run(t, "history", "--ledger", db)
	require.Equal(t, 0, code, stdout)
	assert.Contains(t, stdout, "2 runs")
}

func TestExecute_ManifestFailureIsRecorded(t *testing.T) {
	dir := isolate(t)
	src := writeExport(t, dir)
	dst := filepath.Join(dir, "out.json")
	db := filepath.Join(dir, "runs.db")
	require.NoError(t, os.Mkdir(manifest.PathFor(dst), 0o755))

	code, stdout, _ := run(t, "--ledger", db, "--manifest", "--min-size", "0", src, dst)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "writing manifest")
	assert.Equal(t, compactDoc, readFile(t, dst))

	code, stdout, _ = run(t, "history", "--ledger", db, "--json")
	require.Equal(t, 0, code, stdout)
	var runs []ledger.Run
	require.NoError(t, json.Unmarshal([]byte(stdout), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, ledger.OutcomeFailed, runs[0].Outcome)
	assert.Equal(t, 2, runs[0].Written)
}

func TestExecute_UnresolvableLedgerPath(t *testing.T) {
	dir := isolate(t)
	src := writeExport(t, dir)
	dst := filepath.Join(dir, "out.json")
	t.Setenv("HOME", "")

	code, stdout, _ := run(t, "--ledger", "~/runs.db", "--min-size", "0", src, dst)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "ledger path")
	assert.NoFileExists(t, dst)
	assert.NoDirExists(t, filepath.Join(dir, "~"))

	code, stdout, _ = run(t, "history", "--ledger", "~/runs.db")
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "ledger path")
}

func TestResolveRunConfig_Defaults(t *testing.T) {
	isolate(t)
	v := viper.New()
	root := newRootCmd(v)
	require.NoError(t, root.ParseFlags(nil))

	rc, err := resolveRunConfig(root, v)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultConversionConfig(), rc.Conversion)
	assert.False(t, rc.Ledger.Enabled())
	assert.False(t, rc.WriteManifest)
}

func TestExecute_LedgerFailureDoesNotFailRun(t *testing.T) {
	dir := isolate(t)
	src := writeExport(t, dir)
	dst := filepath.Join(dir, "out.json")
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	code, stdout, stderr := run(t, "--ledger", filepath.Join(blocker, "runs.db"), "--min-size", "0", src, dst)
	require.Equal(t, 0, code, stdout)
	assert.Contains(t, stderr, "ledger unavailable")
	assert.Equal(t, compactDoc, readFile(t, dst))
}

func TestHistory_RequiresLedger(t *testing.T) {
	isolate(t)

	code, stdout, _ := run(t, "history")
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "no ledger configured")
}

func TestHistory_EmptyLedger(t *testing.T) {
	dir := isolate(t)

	code, stdout, _ := run(t, "history", "--ledger", filepath.Join(dir, "runs.db"))
	require.Equal(t, 0, code, stdout)
	assert.Equal(t, "No runs recorded.\n", stdout)
}

func TestVersion(t *testing.T) {
	isolate(t)

	code, stdout, _ := run(t, "version")
	assert.Equal(t, 0, code)
	assert.Equal(t, "registrar-json dev\n", stdout)
}

func TestExpandPath(t *testing.T) {
	home := isolate(t)

	got, err := expandPath("~/exports/a.csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "exports", "a.csv"), got)

	got, err = expandPath("b.csv")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
	assert.Equal(t, "b.csv", filepath.Base(got))
}

func TestDiagnose(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "argument problem",
			err:  &registrar.Error{Kind: registrar.UnsafeDestination, Path: "/x.json"},
			want: "Something is wrong with the arguments supplied",
		},
		{
			name: "conversion problem",
			err:  &registrar.Error{Kind: registrar.MissingRequiredField, Field: "etd record key"},
			want: "Conversion failed",
		},
		{
			name: "other",
			err:  errors.New("boom"),
			want: "Error: boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, diagnose(tt.err), tt.want)
		})
	}
}
