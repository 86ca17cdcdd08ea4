package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/powerlog-ingest/internal/infrastructure/influxdb"
	"github.com/nerrad567/powerlog-ingest/internal/ledger"
)

const v002Export = "02001171\t02001171\n" +
	"MV_T302_V002\tPh 1 V\n" +
	"03/08/25 03:20:00\t242.25\n" +
	"03/08/25 03:30:00\t243.00\n"

// isolateEnv clears the variables that would enable real services.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"INFLUXDB_HOST", "INFLUXDB_ADMIN_TOKEN", "INFLUXDB_ORG",
		"POWERLOG_INFLUXDB_URL", "POWERLOG_INFLUXDB_TOKEN", "POWERLOG_INFLUXDB_ORG",
		"POWERLOG_DATA_FOLDER", "POWERLOG_WORKERS", "POWERLOG_DATABASE_PATH",
		"POWERLOG_PUSHGATEWAY_URL", "POWERLOG_REPORT_DIR", "POWERLOG_FAILED_DIR",
		"POWERLOG_CONFIG",
	} {
		t.Setenv(key, "")
	}
}

// writeConfig writes a config with the ledger enabled and every network
// service disabled.
func writeConfig(t *testing.T, dir, dataFolder string) string {
	t.Helper()
	content := `
ingest:
  data_folder: "` + dataFolder + `"
  workers: 2
  report_dir: "` + filepath.Join(dir, "reports") + `"

influxdb:
  enabled: false

database:
  enabled: true
  path: "` + filepath.Join(dir, "ledger.db") + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

logging:
  level: debug
  format: text
  output: discard
`
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func writeExport(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestRunIngest_DryRunWithLedger(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	file := filepath.Join(data, "site_a", "camp1", "02001171", "export.tsv")
	writeExport(t, file, v002Export)
	cfgPath := writeConfig(t, dir, data)

	var out bytes.Buffer
	if err := runIngest(context.Background(), ingestOptions{ConfigPath: cfgPath}, &out); err != nil {
		t.Fatalf("runIngest() error = %v", err)
	}

	if !strings.Contains(out.String(), "(dry run): success, 1 files (1 ok") {
		t.Errorf("summary = %q", out.String())
	}
	if _, err := os.Stat(file); err != nil {
		t.Errorf("dry run must leave the file in place: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "ledger.db")); err != nil {
		t.Errorf("ledger not created: %v", err)
	}

	reports, err := filepath.Glob(filepath.Join(dir, "reports", "run_*.json"))
	if err != nil || len(reports) != 1 {
		t.Fatalf("run reports = %v, %v; want one", reports, err)
	}
	raw, err := os.ReadFile(reports[0])
	if err != nil {
		t.Fatal(err)
	}
	var report map[string]any
	if err := json.Unmarshal(raw, &report); err != nil {
		t.Fatal(err)
	}
	if report["nb_points_total"] != float64(2) {
		t.Errorf("nb_points_total = %v, want 2", report["nb_points_total"])
	}
}

func TestRunIngest_FailedFileExitsNonZero(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	writeExport(t, filepath.Join(data, "b", "c", "m", "bad.tsv"), "not a logger export\n")
	cfgPath := writeConfig(t, dir, data)

	var out bytes.Buffer
	err := runIngest(context.Background(), ingestOptions{ConfigPath: cfgPath}, &out)
	if !errors.Is(err, errRunFailed) {
		t.Fatalf("runIngest() error = %v, want errRunFailed", err)
	}
	if !strings.Contains(out.String(), "failed: ") {
		t.Errorf("summary does not list the failed file: %q", out.String())
	}
}

func TestRunIngest_SingleFileOverridesFolder(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	file := filepath.Join(data, "b", "c", "m", "one.tsv")
	writeExport(t, file, v002Export)
	writeExport(t, filepath.Join(data, "b", "c", "m", "two.tsv"), v002Export)
	cfgPath := writeConfig(t, dir, filepath.Join(dir, "elsewhere"))

	var out bytes.Buffer
	err := runIngest(context.Background(), ingestOptions{
		ConfigPath: cfgPath,
		DataFolder: data,
		File:       file,
		DryRun:     true,
	}, &out)
	if err != nil {
		t.Fatalf("runIngest() error = %v", err)
	}
	if !strings.Contains(out.String(), "1 files") {
		t.Errorf("summary = %q, want a single file", out.String())
	}
}

func TestRunIngest_InvalidConfig(t *testing.T) {
	isolateEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := runIngest(ctx, ingestOptions{ConfigPath: "/nonexistent/path/config.yaml"}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("runIngest() should fail with invalid config path")
	}
}

func TestRunToken_InfluxDisabled(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, dir)

	err := runToken(context.Background(), cfgPath, "site_a", &bytes.Buffer{})
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("runToken() error = %v, want ErrDisabled", err)
	}
}

func TestRunInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.tsv")
	writeExport(t, path, v002Export)

	var out bytes.Buffer
	if err := runInspect(path, &out); err != nil {
		t.Fatalf("runInspect() error = %v", err)
	}

	var got inspection
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if got.Format != "MV_T302_V002" || len(got.Channels) != 1 {
		t.Errorf("inspection = %+v", got)
	}
	if got.Channels[0].ChannelID != "M02001171_Ch1_M02001171" {
		t.Errorf("channel id = %q", got.Channels[0].ChannelID)
	}
}

func TestApp_Commands(t *testing.T) {
	app := newApp(&bytes.Buffer{})

	for _, name := range []string{"ingest", "token", "inspect", "migrate", "history", "check"} {
		if app.Command(name) == nil {
			t.Errorf("command %q missing", name)
		}
	}

	var out bytes.Buffer
	app = newApp(&out)
	if err := app.Run([]string{"powerlog-ingest", "inspect"}); err == nil {
		t.Error("inspect without a file should fail")
	}
}

func TestApp_IngestCommandFlags(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	writeExport(t, filepath.Join(data, "b", "c", "m", "one.tsv"), v002Export)
	cfgPath := writeConfig(t, dir, filepath.Join(dir, "elsewhere"))

	var out bytes.Buffer
	err := newApp(&out).Run([]string{"powerlog-ingest", "ingest", "-c", cfgPath, "-d", data, "-w", "3", "--dry-run"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out.String(), "(dry run): success, 1 files") {
		t.Errorf("summary = %q", out.String())
	}
}

func TestRunHistory(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	file := filepath.Join(data, "b", "c", "m", "export.tsv")
	writeExport(t, file, v002Export)
	cfgPath := writeConfig(t, dir, data)
	ctx := context.Background()

	var out bytes.Buffer
	if err := runIngest(ctx, ingestOptions{ConfigPath: cfgPath}, &out); err != nil {
		t.Fatalf("runIngest() error = %v", err)
	}
	fields := strings.Fields(out.String())
	if len(fields) < 2 {
		t.Fatalf("unexpected summary %q", out.String())
	}
	runID := fields[1]

	out.Reset()
	if err := runHistory(ctx, cfgPath, runID, "", &out); err != nil {
		t.Fatalf("runHistory(run) error = %v", err)
	}
	var entries []ledger.Entry
	if err := json.Unmarshal(out.Bytes(), &entries); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != file {
		t.Fatalf("entries = %+v, want the one ingested file", entries)
	}
	if entries[0].Status != ledger.StatusDecoded {
		t.Errorf("status = %q, want %q for a dry run", entries[0].Status, ledger.StatusDecoded)
	}

	out.Reset()
	if err := runHistory(ctx, cfgPath, "", file, &out); err != nil {
		t.Fatalf("runHistory(file) error = %v", err)
	}
	var entry ledger.Entry
	if err := json.Unmarshal(out.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry.RunID != runID || entry.Points != 2 || len(entry.ChannelStats) != 1 {
		t.Errorf("entry = %+v", entry)
	}

	err := runHistory(ctx, cfgPath, "", filepath.Join(data, "unknown.tsv"), &bytes.Buffer{})
	if !errors.Is(err, ledger.ErrFileNotFound) {
		t.Errorf("runHistory(unknown) error = %v, want ErrFileNotFound", err)
	}
}

func TestRunHistory_NeedsOneSelector(t *testing.T) {
	tests := []struct {
		name  string
		runID string
		path  string
	}{
		{name: "none"},
		{name: "both", runID: "r", path: "f.tsv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := runHistory(context.Background(), "", tt.runID, tt.path, &bytes.Buffer{}); err == nil {
				t.Error("runHistory() should fail")
			}
		})
	}
}

func TestRunMigrate(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, dir)
	ctx := context.Background()

	var out bytes.Buffer
	if err := runMigrate(ctx, cfgPath, migrateStatus, &out); err != nil {
		t.Fatalf("runMigrate(status) error = %v", err)
	}
	if strings.Count(out.String(), "pending") != 2 {
		t.Errorf("fresh status = %q, want 2 pending", out.String())
	}

	out.Reset()
	if err := runMigrate(ctx, cfgPath, migrateUp, &out); err != nil {
		t.Fatalf("runMigrate(up) error = %v", err)
	}
	if strings.Count(out.String(), "applied") != 2 || strings.Contains(out.String(), "pending") {
		t.Errorf("status after up = %q", out.String())
	}

	out.Reset()
	if err := runMigrate(ctx, cfgPath, migrateDown, &out); err != nil {
		t.Fatalf("runMigrate(down) error = %v", err)
	}
	if strings.Count(out.String(), "applied") != 1 || strings.Count(out.String(), "pending") != 1 {
		t.Errorf("status after down = %q", out.String())
	}

	if err := runMigrate(ctx, cfgPath, "sideways", &bytes.Buffer{}); err == nil {
		t.Error("unknown direction should fail")
	}
}

func TestRunMigrate_LedgerDisabled(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("database:\n  enabled: false\nlogging:\n  output: discard\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	err := runMigrate(context.Background(), path, migrateStatus, &bytes.Buffer{})
	if !errors.Is(err, errLedgerDisabled) {
		t.Errorf("runMigrate() error = %v, want errLedgerDisabled", err)
	}
}

func TestRunCheck(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, dir)

	var out bytes.Buffer
	if err := runCheck(context.Background(), cfgPath, &out); err != nil {
		t.Fatalf("runCheck() error = %v", err)
	}
	for _, want := range []string{"influxdb  disabled", "database  ok", "mqtt      disabled"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output %q missing %q", out.String(), want)
		}
	}
}
