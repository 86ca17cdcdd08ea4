package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/powerlog-ingest/internal/tsv"
)

// FileStatus is the outcome of one file.
type FileStatus string

// File outcomes.
const (
	FileSuccess FileStatus = "success"
	FileFailed  FileStatus = "failed"
	FileSkipped FileStatus = "skipped"
)

// RunStatus is the overall outcome of a run.
type RunStatus string

// Run outcomes.
const (
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
	RunEmpty   RunStatus = "empty"
)

// reportFileMode is the permission of written run reports.
const reportFileMode = 0o640

// FileReport is the outcome of one file.
type FileReport struct {
	FilePath           string     `json:"file_path"`
	FileName           string     `json:"file_name"`
	Bucket             string     `json:"bucket"`
	Campaign           string     `json:"campaign"`
	DeviceMasterSerial string     `json:"device_master_sn"`
	SHA256             string     `json:"sha256,omitempty"`
	Status             FileStatus `json:"status"`
	Error              string     `json:"error,omitempty"`

	Format            tsv.FormatTag `json:"format,omitempty"`
	Rows              int           `json:"nb_rows"`
	Channels          int           `json:"nb_channels"`
	Points            int           `json:"nb_points"`
	InvalidTimestamps int           `json:"nb_invalid_timestamps"`
	InvalidValues     int           `json:"nb_invalid_values"`

	ChannelStats map[string]*tsv.ChannelStats `json:"channels,omitempty"`
	Metadata     map[string]any               `json:"metadata,omitempty"`

	// ParsedPath is set once the file has been renamed.
	ParsedPath string `json:"parsed_path,omitempty"`

	// FailedPath is set when a failed file was moved away.
	FailedPath string `json:"failed_path,omitempty"`

	DurationSeconds float64 `json:"duration_s"`
}

// applyReport copies the decode counters into the file report.
func (f *FileReport) applyReport(r *tsv.ParseReport) {
	f.Format = r.Format
	f.Rows = r.Rows
	f.Channels = r.Channels
	f.Points = r.Samples
	f.InvalidTimestamps = r.InvalidTimestamps
	f.InvalidValues = r.InvalidValues
	f.ChannelStats = r.ChannelStats
	if len(r.Metadata) > 0 {
		f.Metadata = r.Metadata
	}
}

// RunReport summarises one run over a data folder.
type RunReport struct {
	RunID           string    `json:"run_id"`
	Status          RunStatus `json:"status"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	DurationSeconds float64   `json:"duration_s"`
	BaseFolder      string    `json:"base_folder"`
	DryRun          bool      `json:"dry_run,omitempty"`

	FilesTotal   int `json:"nb_files_total"`
	FilesSuccess int `json:"nb_files_success"`
	FilesFailed  int `json:"nb_files_failed"`
	FilesSkipped int `json:"nb_files_skipped"`
	PointsTotal  int `json:"nb_points_total"`

	Files []*FileReport `json:"files"`
}

// NewRunReport starts a report with a fresh run id.
func NewRunReport(baseFolder string, startedAt time.Time) *RunReport {
	return &RunReport{
		RunID:      uuid.NewString(),
		StartedAt:  startedAt.UTC(),
		BaseFolder: baseFolder,
		Files:      []*FileReport{},
	}
}

// Add appends a file outcome and updates the totals.
func (r *RunReport) Add(f *FileReport) {
	r.Files = append(r.Files, f)
	r.FilesTotal++
	switch f.Status {
	case FileSuccess:
		r.FilesSuccess++
		r.PointsTotal += f.Points
	case FileFailed:
		r.FilesFailed++
	case FileSkipped:
		r.FilesSkipped++
	}
}

// Finish stamps the end time and derives the run status.
func (r *RunReport) Finish(finishedAt time.Time) {
	r.FinishedAt = finishedAt.UTC()
	r.DurationSeconds = r.FinishedAt.Sub(r.StartedAt).Seconds()

	switch {
	case r.FilesTotal == 0:
		r.Status = RunEmpty
	case r.FilesFailed == 0:
		r.Status = RunSuccess
	case r.FilesFailed == r.FilesTotal:
		r.Status = RunFailed
	default:
		r.Status = RunPartial
	}
}

// FileName returns the report file name, run_<UTC start>_<run id prefix>.json.
func (r *RunReport) FileName() string {
	id := r.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("run_%s_%s.json", r.StartedAt.Format("20060102T150405Z"), id)
}

// WriteJSON writes the indented report into dir, creating it if needed,
// and returns the file path.
func (r *RunReport) WriteJSON(dir string) (string, error) {
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding run report: %w", err)
	}

	path := filepath.Join(dir, r.FileName())
	if err := os.WriteFile(path, data, reportFileMode); err != nil {
		return "", fmt.Errorf("writing run report: %w", err)
	}
	return path, nil
}
