package mqtt

import (
	"context"
	"time"

	"github.com/nerrad567/powerlog-ingest/internal/ingest"
)

// jsonPublisher is the part of Client used by EventPublisher.
type jsonPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// EventPublisher publishes ingest progress. It implements ingest.Notifier.
// Publish failures are logged and never affect the run.
type EventPublisher struct {
	client jsonPublisher
	topics Topics
	logger Logger
}

// NewEventPublisher creates a publisher using the client's topic prefix.
func NewEventPublisher(client *Client, logger Logger) *EventPublisher {
	return newEventPublisher(client, client.Topics(), logger)
}

func newEventPublisher(client jsonPublisher, topics Topics, logger Logger) *EventPublisher {
	return &EventPublisher{client: client, topics: topics, logger: logger}
}

// runEvent is the run summary without per-file details, which were
// already published one by one.
type runEvent struct {
	RunID           string           `json:"run_id"`
	Status          ingest.RunStatus `json:"status"`
	StartedAt       time.Time        `json:"started_at"`
	FinishedAt      time.Time        `json:"finished_at"`
	DurationSeconds float64          `json:"duration_s"`
	BaseFolder      string           `json:"base_folder"`
	DryRun          bool             `json:"dry_run,omitempty"`
	FilesTotal      int              `json:"nb_files_total"`
	FilesSuccess    int              `json:"nb_files_success"`
	FilesFailed     int              `json:"nb_files_failed"`
	FilesSkipped    int              `json:"nb_files_skipped"`
	PointsTotal     int              `json:"nb_points_total"`
}

// FileProcessed publishes the file report to <prefix>/ingest/file.
func (p *EventPublisher) FileProcessed(_ context.Context, f *ingest.FileReport) {
	if err := p.client.PublishJSON(p.topics.IngestFile(), f, false); err != nil {
		p.warn("could not publish file event", "file", f.FilePath, "error", err)
	}
}

// RunFinished publishes the run summary to <prefix>/ingest/run, retained
// so that a dashboard sees the last run on connect.
func (p *EventPublisher) RunFinished(_ context.Context, r *ingest.RunReport) {
	ev := runEvent{
		RunID:           r.RunID,
		Status:          r.Status,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		DurationSeconds: r.DurationSeconds,
		BaseFolder:      r.BaseFolder,
		DryRun:          r.DryRun,
		FilesTotal:      r.FilesTotal,
		FilesSuccess:    r.FilesSuccess,
		FilesFailed:     r.FilesFailed,
		FilesSkipped:    r.FilesSkipped,
		PointsTotal:     r.PointsTotal,
	}
	if err := p.client.PublishJSON(p.topics.IngestRun(), ev, true); err != nil {
		p.warn("could not publish run event", "run_id", r.RunID, "error", err)
	}
}

func (p *EventPublisher) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
