// Package metrics exposes ingest runs as Prometheus metrics.
//
// A run is a short-lived process, so metrics are pushed to a Pushgateway
// once the run has finished rather than scraped. The Pusher implements
// ingest.Notifier: file counters accumulate while the run progresses and
// RunFinished pushes the whole registry under the configured job.
//
// # Metrics
//
//	powerlog_ingest_runs_total{status}
//	powerlog_ingest_files_total{status}
//	powerlog_ingest_points_total
//	powerlog_ingest_invalid_timestamps_total
//	powerlog_ingest_invalid_values_total
//	powerlog_ingest_last_run_duration_seconds
//	powerlog_ingest_last_run_timestamp_seconds
package metrics
