package influxdb

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/powerlog-ingest/internal/ingest"
	"github.com/nerrad567/powerlog-ingest/internal/tsv"
)

// Measurements of the monitoring summaries.
const (
	RunMeasurement  = "tsv_parser_run"
	FileMeasurement = "tsv_parser_file"
)

// writeChunkSize bounds the number of points sent in one request.
const writeChunkSize = 5000

// WriteSamples writes one point per sample to bucket. The call blocks until
// every chunk is acknowledged and fails on the first rejected chunk.
func (c *Client) WriteSamples(ctx context.Context, bucket, measurement string, samples []tsv.Sample) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	points := make([]*write.Point, 0, len(samples))
	for i := range samples {
		points = append(points, samplePoint(measurement, &samples[i]))
	}
	return c.writePoints(ctx, bucket, points)
}

// WriteRunSummary writes one tsv_parser_run point and one tsv_parser_file
// point per file to the meta bucket, creating it if needed.
func (c *Client) WriteRunSummary(ctx context.Context, run *ingest.RunReport) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if err := c.EnsureBucket(ctx, c.cfg.MetaBucket); err != nil {
		return err
	}

	ts := run.FinishedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	points := make([]*write.Point, 0, len(run.Files)+1)
	points = append(points, runPoint(run, ts))
	for _, f := range run.Files {
		points = append(points, filePoint(f, ts))
	}
	return c.writePoints(ctx, c.cfg.MetaBucket, points)
}

func (c *Client) writePoints(ctx context.Context, bucket string, points []*write.Point) error {
	writeAPI := c.client.WriteAPIBlocking(c.cfg.Org, bucket)

	for start := 0; start < len(points); start += writeChunkSize {
		end := min(start+writeChunkSize, len(points))
		if err := writeAPI.WritePoint(ctx, points[start:end]...); err != nil {
			return fmt.Errorf("%w: bucket %q: %w", ErrWriteFailed, bucket, err)
		}
	}
	return nil
}

func samplePoint(measurement string, s *tsv.Sample) *write.Point {
	return write.NewPoint(
		measurement,
		s.Tags(),
		map[string]interface{}{s.Field(): s.Value},
		s.Timestamp,
	)
}

func runPoint(run *ingest.RunReport, ts time.Time) *write.Point {
	return write.NewPoint(
		RunMeasurement,
		map[string]string{"status": string(run.Status)},
		map[string]interface{}{
			"nb_files_total":   run.FilesTotal,
			"nb_files_success": run.FilesSuccess,
			"nb_files_failed":  run.FilesFailed,
			"nb_files_skipped": run.FilesSkipped,
			"nb_points_total":  run.PointsTotal,
			"duration_s":       run.DurationSeconds,
			"base_folder":      run.BaseFolder,
			"run_id":           run.RunID,
		},
		ts,
	)
}

func filePoint(f *ingest.FileReport, ts time.Time) *write.Point {
	return write.NewPoint(
		FileMeasurement,
		map[string]string{
			"status":           string(f.Status),
			"bucket":           f.Bucket,
			"campaign":         f.Campaign,
			"device_master_sn": f.DeviceMasterSerial,
			"file_name":        filepath.Base(f.FilePath),
		},
		map[string]interface{}{
			"nb_rows":               f.Rows,
			"nb_channels":           f.Channels,
			"nb_points":             f.Points,
			"nb_invalid_timestamps": f.InvalidTimestamps,
			"nb_invalid_values":     f.InvalidValues,
		},
		ts,
	)
}
