package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/powerlog-ingest/internal/ledger"
	"github.com/nerrad567/powerlog-ingest/internal/tsv"
)

// Defaults applied by NewProcessor.
const (
	DefaultMeasurement  = "campaign"
	DefaultParsedPrefix = "PARSED_"
	DefaultWriteTimeout = 60 * time.Second
)

// Sink persists decoded samples.
type Sink interface {
	// EnsureBucket creates the bucket when it does not exist.
	EnsureBucket(ctx context.Context, bucket string) error

	// WriteSamples writes all samples of one file to bucket.
	WriteSamples(ctx context.Context, bucket, measurement string, samples []tsv.Sample) error
}

// Ledger remembers processed files across runs.
type Ledger interface {
	IsProcessed(ctx context.Context, sha256 string) (bool, error)
	Record(ctx context.Context, e *ledger.Entry) error
}

// Notifier is told about each file and about the finished run.
// FileProcessed is called from worker goroutines and must be safe for
// concurrent use. Implementations handle their own errors.
type Notifier interface {
	FileProcessed(ctx context.Context, f *FileReport)
	RunFinished(ctx context.Context, r *RunReport)
}

// Logger is the logging surface used by the processor.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures a Processor.
type Options struct {
	// BaseFolder is the root that bucket/campaign/device paths are read from.
	BaseFolder string

	// Measurement is the time-series measurement samples are written to.
	Measurement string

	// Workers bounds the number of files processed at once. Values below 1
	// mean one.
	Workers int

	// ParsedPrefix is prepended to a file name once it has been written.
	ParsedPrefix string

	// FailedDir receives failed files. Empty leaves them in place.
	FailedDir string

	// SkipProcessed skips files whose content hash is already recorded
	// as successful in the ledger.
	SkipProcessed bool

	// WriteTimeout bounds the sink calls of one file.
	WriteTimeout time.Duration
}

// Deps are the optional collaborators of a Processor.
type Deps struct {
	Sink      Sink
	Ledger    Ledger
	Notifiers []Notifier
	Logger    Logger
}

// Processor ingests a data folder.
type Processor struct {
	parser    *tsv.Parser
	opts      Options
	sink      Sink
	ledger    Ledger
	notifiers []Notifier
	logger    Logger
	now       func() time.Time
}

// NewProcessor creates a processor using parser for every file.
func NewProcessor(parser *tsv.Parser, opts Options, deps Deps) *Processor {
	if opts.Measurement == "" {
		opts.Measurement = DefaultMeasurement
	}
	if opts.ParsedPrefix == "" {
		opts.ParsedPrefix = DefaultParsedPrefix
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}

	logger := deps.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	return &Processor{
		parser:    parser,
		opts:      opts,
		sink:      deps.Sink,
		ledger:    deps.Ledger,
		notifiers: deps.Notifiers,
		logger:    logger,
		now:       time.Now,
	}
}

// DryRun reports whether samples are only decoded and not written.
func (p *Processor) DryRun() bool {
	return p.sink == nil
}

// RunFolder discovers the unparsed files under the base folder and
// processes them.
func (p *Processor) RunFolder(ctx context.Context) (*RunReport, error) {
	files, err := FindFiles(p.opts.BaseFolder, p.opts.ParsedPrefix)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, files)
}

// Run processes the given files and returns the run report. Per-file
// failures are recorded in the report, not returned. The error is non-nil
// only when ctx is cancelled; the report then covers the files handled so
// far.
func (p *Processor) Run(ctx context.Context, files []string) (*RunReport, error) {
	report := NewRunReport(p.opts.BaseFolder, p.now())
	report.DryRun = p.DryRun()

	p.logger.Info("ingest run started",
		"run_id", report.RunID,
		"base_folder", p.opts.BaseFolder,
		"files", len(files),
		"workers", p.opts.Workers,
		"dry_run", report.DryRun,
	)

	results := make([]*FileReport, len(files))
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(p.opts.Workers)

	for i, path := range files {
		if ctx.Err() != nil {
			break
		}
		i, path := i, path
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			fr := p.processFile(ctx, report.RunID, path)
			mu.Lock()
			results[i] = fr
			mu.Unlock()
			p.notifyFile(ctx, fr)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors

	for _, fr := range results {
		if fr != nil {
			report.Add(fr)
		}
	}
	report.Finish(p.now())

	p.logger.Info("ingest run finished",
		"run_id", report.RunID,
		"status", report.Status,
		"files_total", report.FilesTotal,
		"files_success", report.FilesSuccess,
		"files_failed", report.FilesFailed,
		"files_skipped", report.FilesSkipped,
		"points_total", report.PointsTotal,
		"duration_s", report.DurationSeconds,
	)

	// Notifiers still get the partial report after cancellation.
	p.notifyRun(context.WithoutCancel(ctx), report)

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("ingest run interrupted: %w", err)
	}
	return report, nil
}

// processFile handles one file end to end. It never returns nil.
func (p *Processor) processFile(ctx context.Context, runID, path string) *FileReport {
	start := p.now()
	fr := &FileReport{
		FilePath: path,
		FileName: filepath.Base(path),
	}

	defer func() {
		fr.DurationSeconds = p.now().Sub(start).Seconds()
		p.record(ctx, runID, fr)
	}()

	comps, err := ExtractPathComponents(p.opts.BaseFolder, path)
	if err != nil {
		p.fail(ctx, fr, err)
		return fr
	}
	fr.Bucket = comps.Bucket
	fr.Campaign = comps.Campaign
	fr.DeviceMasterSerial = comps.DeviceMasterSerial

	fr.SHA256, err = HashFile(path)
	if err != nil {
		p.fail(ctx, fr, err)
		return fr
	}

	if p.opts.SkipProcessed && p.ledger != nil {
		done, err := p.ledger.IsProcessed(ctx, fr.SHA256)
		if err != nil {
			p.logger.Warn("ledger lookup failed", "file", path, "error", err)
		} else if done {
			fr.Status = FileSkipped
			fr.Error = ErrAlreadyProcessed.Error()
			p.logger.Info("file skipped", "file", path, "sha256", fr.SHA256)
			return fr
		}
	}

	res, err := p.parser.ParseFile(path, tsv.DecodeOptions{
		Campaign: comps.Campaign,
		FileName: comps.FileName,
	})
	if err != nil {
		p.fail(ctx, fr, err)
		return fr
	}
	fr.applyReport(res.Report)

	if p.sink != nil {
		if err := p.write(ctx, comps.Bucket, res.Samples); err != nil {
			p.fail(ctx, fr, err)
			return fr
		}

		parsed, err := RenameParsed(path, p.opts.ParsedPrefix)
		if err != nil {
			// Samples are already written; only the marker is missing.
			p.logger.Warn("could not mark file as parsed", "file", path, "error", err)
		} else {
			fr.ParsedPath = parsed
		}
	}

	fr.Status = FileSuccess
	p.logger.Info("file processed",
		"file", path,
		"format", fr.Format,
		"bucket", fr.Bucket,
		"campaign", fr.Campaign,
		"rows", fr.Rows,
		"channels", fr.Channels,
		"points", fr.Points,
		"invalid_timestamps", fr.InvalidTimestamps,
		"invalid_values", fr.InvalidValues,
	)
	return fr
}

func (p *Processor) write(ctx context.Context, bucket string, samples []tsv.Sample) error {
	ctx, cancel := context.WithTimeout(ctx, p.opts.WriteTimeout)
	defer cancel()

	if err := p.sink.EnsureBucket(ctx, bucket); err != nil {
		return fmt.Errorf("ensuring bucket %q: %w", bucket, err)
	}
	if len(samples) == 0 {
		return nil
	}
	if err := p.sink.WriteSamples(ctx, bucket, p.opts.Measurement, samples); err != nil {
		return fmt.Errorf("writing samples to %q: %w", bucket, err)
	}
	return nil
}

// fail marks fr as failed and moves the file away when configured.
// Files are left in place when the run itself was cancelled.
func (p *Processor) fail(ctx context.Context, fr *FileReport, err error) {
	fr.Status = FileFailed
	fr.Error = err.Error()
	p.logger.Error("file failed", "file", fr.FilePath, "error", err)

	if p.opts.FailedDir == "" || ctx.Err() != nil {
		return
	}
	moved, mvErr := MoveFailed(p.opts.BaseFolder, fr.FilePath, p.opts.FailedDir)
	if mvErr != nil {
		p.logger.Warn("could not move failed file", "file", fr.FilePath, "error", mvErr)
		return
	}
	fr.FailedPath = moved
}

// record stores the outcome in the ledger. Skipped files and files that
// could not be hashed are not recorded. A dry-run success is recorded as
// decoded so a later real run still writes the file.
func (p *Processor) record(ctx context.Context, runID string, fr *FileReport) {
	if p.ledger == nil || fr.Status == FileSkipped || fr.SHA256 == "" {
		return
	}

	status := ledger.Status(fr.Status)
	if fr.Status == FileSuccess && p.DryRun() {
		status = ledger.StatusDecoded
	}

	entry := &ledger.Entry{
		RunID:              runID,
		Path:               fr.FilePath,
		SHA256:             fr.SHA256,
		Bucket:             fr.Bucket,
		Campaign:           fr.Campaign,
		DeviceMasterSerial: fr.DeviceMasterSerial,
		Format:             string(fr.Format),
		Status:             status,
		Error:              fr.Error,
		Rows:               fr.Rows,
		Channels:           fr.Channels,
		Points:             fr.Points,
		InvalidTimestamps:  fr.InvalidTimestamps,
		InvalidValues:      fr.InvalidValues,
		ChannelStats:       channelStats(fr.ChannelStats),
	}

	if err := p.ledger.Record(context.WithoutCancel(ctx), entry); err != nil {
		p.logger.Warn("could not record file in ledger", "file", fr.FilePath, "error", err)
	}
}

func (p *Processor) notifyFile(ctx context.Context, fr *FileReport) {
	for _, n := range p.notifiers {
		n.FileProcessed(ctx, fr)
	}
}

func (p *Processor) notifyRun(ctx context.Context, r *RunReport) {
	for _, n := range p.notifiers {
		n.RunFinished(ctx, r)
	}
}

// channelStats converts decode statistics to ledger rows, ordered by
// channel id.
func channelStats(stats map[string]*tsv.ChannelStats) []ledger.ChannelStat {
	if len(stats) == 0 {
		return nil
	}
	out := make([]ledger.ChannelStat, 0, len(stats))
	for id, s := range stats {
		out = append(out, ledger.ChannelStat{
			ChannelID: id,
			Unit:      s.Unit,
			Count:     s.Count,
			Min:       s.Min,
			Max:       s.Max,
			Mean:      s.Mean,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChannelID < out[j].ChannelID })
	return out
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
