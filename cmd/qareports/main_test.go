package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/qareports/internal/core"
)

// run executes the CLI against a sqlite cache in dir.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CACHE_DRIVER", "sqlite")
	t.Setenv("CACHE_PATH", filepath.Join(dir, "cache.db"))
	t.Setenv("REMOTE_SYNC_ENABLED", "false")
	t.Setenv("LOG_LEVEL", "error")

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestSampleThenStats(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, dir, "sample")
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if !strings.Contains(out, "100 parts") {
		t.Errorf("sample output = %q", out)
	}

	// A second process sees the state through the local cache.
	out, err = run(t, dir, "stats", "--format", "json", "--charts")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var got statsOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("stats output is not JSON: %v\n%s", err, out)
	}
	want := core.Stats{TotalParts: 100, MissingExtensions: 35, SurfaceBodies: 14, CorrectedParts: 46, PendingParts: 54}
	if got.Stats != want {
		t.Errorf("stats = %+v, want %+v", got.Stats, want)
	}
	if got.Charts == nil || len(got.Charts.SheetDistribution) != 5 {
		t.Errorf("charts = %+v, want five sheets", got.Charts)
	}
}

func TestStatsFormats(t *testing.T) {
	dir := t.TempDir()
	if _, err := run(t, dir, "sample"); err != nil {
		t.Fatalf("sample: %v", err)
	}

	out, err := run(t, dir, "stats", "--format", "yaml")
	if err != nil {
		t.Fatalf("stats yaml: %v", err)
	}
	if !strings.Contains(out, "total_parts: 100") {
		t.Errorf("yaml output missing total_parts:\n%s", out)
	}

	out, err = run(t, dir, "stats")
	if err != nil {
		t.Fatalf("stats text: %v", err)
	}
	if !strings.Contains(out, "Missing extensions") {
		t.Errorf("text output:\n%s", out)
	}

	if _, err := run(t, dir, "stats", "--format", "xml"); err == nil {
		t.Error("stats --format xml: expected error")
	}
}

func TestIngestAndClear(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "parts.csv")
	if err := os.WriteFile(good, []byte("Part Number\nAB1234567890.sldprt\nPN01\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, dir, "ingest", good)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !strings.Contains(out, "parts.csv") || !strings.Contains(out, "2 parts") {
		t.Errorf("ingest output = %q", out)
	}

	if _, err := run(t, dir, "ingest", filepath.Join(dir, "missing.xlsx")); err == nil {
		t.Error("ingest of a missing file: expected error")
	}

	if _, err := run(t, dir, "clear"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	out, err = run(t, dir, "stats", "--format", "json")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(out, `"totalParts": 0`) {
		t.Errorf("stats after clear = %s", out)
	}
}

func TestClearPurgeRequiresRemote(t *testing.T) {
	_, err := run(t, t.TempDir(), "clear", "--purge-remote")
	if err == nil || !strings.Contains(err.Error(), "REM001") {
		t.Errorf("clear --purge-remote error = %v, want REM001", err)
	}
}
