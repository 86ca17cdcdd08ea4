package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/nerrad567/powerlog-ingest/internal/infrastructure/config"
	"github.com/nerrad567/powerlog-ingest/internal/ingest"
)

const (
	namespace = "powerlog"
	subsystem = "ingest"
)

// Logger receives push failures.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Warn(msg string, args ...any)
}

// Pusher collects run metrics and pushes them to a Pushgateway.
// It is safe for concurrent use.
type Pusher struct {
	registry *prometheus.Registry
	pusher   *push.Pusher
	logger   Logger

	runsTotal         *prometheus.CounterVec
	filesTotal        *prometheus.CounterVec
	pointsTotal       prometheus.Counter
	invalidTimestamps prometheus.Counter
	invalidValues     prometheus.Counter
	lastRunDuration   prometheus.Gauge
	lastRunTimestamp  prometheus.Gauge
}

// NewPusher creates a Pusher for the configured Pushgateway and job.
func NewPusher(cfg config.MetricsConfig, logger Logger) (*Pusher, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if cfg.PushgatewayURL == "" {
		return nil, fmt.Errorf("%w: pushgateway_url is empty", ErrPushFailed)
	}

	p := &Pusher{
		registry: prometheus.NewRegistry(),
		logger:   logger,

		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "runs_total",
			Help:      "Ingest runs by final status",
		}, []string{"status"}), // status: success, partial, failed, empty

		filesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "files_total",
			Help:      "Processed files by status",
		}, []string{"status"}), // status: success, failed, skipped

		pointsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "points_total",
			Help:      "Samples written from successful files",
		}),

		invalidTimestamps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "invalid_timestamps_total",
			Help:      "Rows dropped for an unparsable timestamp",
		}),

		invalidValues: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "invalid_values_total",
			Help:      "Cells dropped for a missing or non-finite value",
		}),

		lastRunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last run",
		}),

		lastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}

	p.registry.MustRegister(
		p.runsTotal,
		p.filesTotal,
		p.pointsTotal,
		p.invalidTimestamps,
		p.invalidValues,
		p.lastRunDuration,
		p.lastRunTimestamp,
	)

	p.pusher = push.New(cfg.PushgatewayURL, cfg.Job).Gatherer(p.registry)
	return p, nil
}

// FileProcessed counts one file outcome.
func (p *Pusher) FileProcessed(_ context.Context, f *ingest.FileReport) {
	p.filesTotal.WithLabelValues(string(f.Status)).Inc()
	p.invalidTimestamps.Add(float64(f.InvalidTimestamps))
	p.invalidValues.Add(float64(f.InvalidValues))
	if f.Status == ingest.FileSuccess {
		p.pointsTotal.Add(float64(f.Points))
	}
}

// RunFinished records the run outcome and pushes the registry.
// Push failures are logged only.
func (p *Pusher) RunFinished(ctx context.Context, r *ingest.RunReport) {
	p.runsTotal.WithLabelValues(string(r.Status)).Inc()
	p.lastRunDuration.Set(r.DurationSeconds)
	p.lastRunTimestamp.Set(float64(r.FinishedAt.Unix()))

	if err := p.Push(ctx); err != nil && p.logger != nil {
		p.logger.Warn("could not push run metrics", "run_id", r.RunID, "error", err)
	}
}

// Push replaces the job's metrics on the Pushgateway.
func (p *Pusher) Push(ctx context.Context) error {
	if err := p.pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrPushFailed, err)
	}
	return nil
}
