// powerlog-ingest decodes power-logger TSV exports and writes them to
// InfluxDB.
//
// Files are read from <data_folder>/<bucket>/<campaign>/<device_master_sn>/
// and renamed with the PARSED_ prefix once their samples are stored. Each
// run can also be recorded in a SQLite ledger, published over MQTT and
// pushed to a Prometheus Pushgateway.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/nerrad567/powerlog-ingest/internal/infrastructure/config"
	"github.com/nerrad567/powerlog-ingest/internal/infrastructure/influxdb"
	"github.com/nerrad567/powerlog-ingest/internal/infrastructure/logging"
	"github.com/nerrad567/powerlog-ingest/internal/infrastructure/metrics"
	"github.com/nerrad567/powerlog-ingest/internal/infrastructure/mqtt"
	"github.com/nerrad567/powerlog-ingest/internal/ingest"
	"github.com/nerrad567/powerlog-ingest/internal/ledger"
	"github.com/nerrad567/powerlog-ingest/internal/tsv"
	"github.com/nerrad567/powerlog-ingest/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// summaryTimeout bounds the run summary write to the meta bucket.
const summaryTimeout = 30 * time.Second

// errRunFailed makes the process exit non-zero when a file failed.
var errRunFailed = errors.New("one or more files failed")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newApp builds the command tree. Command output goes to out; logs go
// where the logging config says.
func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:    "powerlog-ingest",
		Usage:   "decode power-logger TSV exports into InfluxDB",
		Version: fmt.Sprintf("%s (%s, %s)", version, commit, date),
		Commands: []*cli.Command{
			{
				Name:  "ingest",
				Usage: "decode every unparsed file of the data folder, or a single file",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:    "data-folder",
						Aliases: []string{"d"},
						Usage:   "root of <bucket>/<campaign>/<device_master_sn>/ (overrides ingest.data_folder)",
					},
					&cli.StringFlag{
						Name:    "tsv-file",
						Aliases: []string{"t"},
						Usage:   "process only this file; it must live under the data folder",
					},
					&cli.IntFlag{
						Name:    "workers",
						Aliases: []string{"w"},
						Usage:   "files processed in parallel (overrides ingest.workers)",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "decode and report without writing or renaming",
					},
				},
				Action: func(cCtx *cli.Context) error {
					return runIngest(cCtx.Context, ingestOptions{
						ConfigPath: cCtx.String("config"),
						DataFolder: cCtx.String("data-folder"),
						File:       cCtx.String("tsv-file"),
						Workers:    cCtx.Int("workers"),
						DryRun:     cCtx.Bool("dry-run"),
					}, out)
				},
			},
			{
				Name:  "token",
				Usage: "print a read/write token scoped to one bucket, creating it if needed",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "bucket",
						Aliases:  []string{"b"},
						Usage:    "bucket name",
						Required: true,
					},
				},
				Action: func(cCtx *cli.Context) error {
					return runToken(cCtx.Context, cCtx.String("config"), cCtx.String("bucket"), out)
				},
			},
			{
				Name:  "migrate",
				Usage: "manage the ledger database schema",
				Subcommands: []*cli.Command{
					migrateCommand(migrateUp, "apply pending migrations", out),
					migrateCommand(migrateDown, "roll back the latest migration", out),
					migrateCommand(migrateStatus, "list applied and pending migrations", out),
				},
			},
			{
				Name:  "history",
				Usage: "print ledger entries of a run or of a file",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "run",
						Usage: "run id, as printed by ingest",
					},
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "file path as it was discovered, before the PARSED_ rename",
					},
				},
				Action: func(cCtx *cli.Context) error {
					return runHistory(cCtx.Context, cCtx.String("config"), cCtx.String("run"), cCtx.String("file"), out)
				},
			},
			{
				Name:  "check",
				Usage: "check the connection to every enabled service",
				Flags: []cli.Flag{configFlag()},
				Action: func(cCtx *cli.Context) error {
					return runCheck(cCtx.Context, cCtx.String("config"), out)
				},
			},
			{
				Name:      "inspect",
				Usage:     "print the format and channel mapping of a file",
				ArgsUsage: "FILE",
				Action: func(cCtx *cli.Context) error {
					path := cCtx.Args().First()
					if path == "" {
						return errors.New("inspect: no file given")
					}
					return runInspect(path, out)
				},
			},
		},
	}
}

// configFlag is the -c flag shared by the commands that load a config.
func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "YAML configuration file (defaults and environment only when omitted)",
		EnvVars: []string{"POWERLOG_CONFIG"},
	}
}

func migrateCommand(direction, usage string, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  direction,
		Usage: usage,
		Flags: []cli.Flag{configFlag()},
		Action: func(cCtx *cli.Context) error {
			return runMigrate(cCtx.Context, cCtx.String("config"), direction, out)
		},
	}
}

// ingestOptions are the command-line overrides of the ingest command.
type ingestOptions struct {
	ConfigPath string
	DataFolder string
	File       string
	Workers    int
	DryRun     bool
}

// runIngest wires the configured components and runs one ingest pass.
func runIngest(ctx context.Context, opts ingestOptions, out io.Writer) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if opts.DataFolder != "" {
		cfg.Ingest.DataFolder = opts.DataFolder
	}
	if opts.Workers > 0 {
		cfg.Ingest.Workers = opts.Workers
	}

	log := logging.New(cfg.Logging, version)
	log.Info("starting powerlog-ingest",
		"version", version,
		"commit", commit,
		"build_date", date,
		"data_folder", cfg.Ingest.DataFolder,
	)

	deps := ingest.Deps{Logger: log}

	// InfluxDB is the sink; without it the run is a dry run.
	if cfg.InfluxDB.Enabled && !opts.DryRun {
		influxClient, connErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"retention", cfg.GetRetention(),
		)
		deps.Sink = influxClient
		deps.Notifiers = append(deps.Notifiers, &summaryNotifier{client: influxClient, log: log})
	} else {
		log.Info("InfluxDB disabled, running dry")
	}

	if cfg.Database.Enabled {
		db, openErr := openDatabase(ctx, cfg.Database)
		if openErr != nil {
			return openErr
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("ledger ready", "path", db.Path())
		deps.Ledger = ledger.NewSQLiteRepository(db.DB)
	}

	// MQTT and metrics only observe the run; failing to reach them is not fatal.
	if cfg.MQTT.Enabled {
		mqttClient, connErr := connectMQTT(ctx, cfg.MQTT, log)
		if connErr != nil {
			log.Warn("MQTT unavailable, events will not be published", "error", connErr)
		} else {
			defer func() {
				if closeErr := mqttClient.Close(); closeErr != nil {
					log.Error("error closing MQTT", "error", closeErr)
				}
			}()
			log.Info("MQTT connected",
				"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
				"topic_prefix", mqttClient.Topics().Prefix(),
			)
			deps.Notifiers = append(deps.Notifiers, mqtt.NewEventPublisher(mqttClient, log))
		}
	}

	if cfg.Metrics.Enabled {
		pusher, pushErr := metrics.NewPusher(cfg.Metrics, log)
		if pushErr != nil {
			log.Warn("metrics disabled", "error", pushErr)
		} else {
			deps.Notifiers = append(deps.Notifiers, pusher)
		}
	}

	processor := ingest.NewProcessor(
		tsv.NewParser(tsv.DefaultRegistry(log)),
		ingest.Options{
			BaseFolder:    cfg.Ingest.DataFolder,
			Measurement:   cfg.Ingest.Measurement,
			Workers:       cfg.Ingest.Workers,
			ParsedPrefix:  cfg.Ingest.ParsedPrefix,
			FailedDir:     cfg.Ingest.FailedDir,
			SkipProcessed: cfg.Ingest.SkipProcessed,
			WriteTimeout:  cfg.GetWriteTimeout(),
		},
		deps,
	)

	var report *ingest.RunReport
	if opts.File != "" {
		report, err = processor.Run(ctx, []string{opts.File})
	} else {
		report, err = processor.RunFolder(ctx)
	}
	if report == nil {
		return fmt.Errorf("ingest run: %w", err)
	}

	if cfg.Ingest.ReportDir != "" {
		path, writeErr := report.WriteJSON(cfg.Ingest.ReportDir)
		if writeErr != nil {
			log.Error("could not write run report", "error", writeErr)
		} else {
			log.Info("run report written", "path", path)
		}
	}

	printSummary(out, report)

	if err != nil {
		return err
	}
	if report.FilesFailed > 0 {
		return fmt.Errorf("%w: %d of %d", errRunFailed, report.FilesFailed, report.FilesTotal)
	}
	return nil
}

// connectMQTT connects to the broker and confirms the session is up.
func connectMQTT(ctx context.Context, cfg config.MQTTConfig, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg)
	if err != nil {
		return nil, err
	}
	client.SetLogger(log)
	if err := client.HealthCheck(ctx); err != nil {
		client.Close() //nolint:errcheck,gosec // already failing
		return nil, err
	}
	return client, nil
}

func printSummary(out io.Writer, r *ingest.RunReport) {
	mode := ""
	if r.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(out, "run %s%s: %s, %d files (%d ok, %d failed, %d skipped), %d points in %.1fs\n",
		r.RunID, mode, r.Status,
		r.FilesTotal, r.FilesSuccess, r.FilesFailed, r.FilesSkipped,
		r.PointsTotal, r.DurationSeconds,
	)
	for _, f := range r.Files {
		if f.Status == ingest.FileFailed {
			fmt.Fprintf(out, "  failed: %s: %s\n", f.FilePath, f.Error)
		}
	}
}

// runToken prints the token of the bucket's read/write authorization.
func runToken(ctx context.Context, configPath, bucket string, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.InfluxDB.Enabled {
		return fmt.Errorf("token: %w", influxdb.ErrDisabled)
	}

	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
	if err != nil {
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	defer client.Close()

	token, err := client.EnsureBucketToken(ctx, bucket)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}

// inspection is the output of the inspect command.
type inspection struct {
	Format   tsv.FormatTag           `json:"format"`
	Channels []tsv.ChannelDescriptor `json:"channels"`
}

// runInspect prints the channel mapping of a file without decoding rows.
func runInspect(path string, out io.Writer) error {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	format, channels, err := tsv.NewParser(tsv.DefaultRegistry(nil)).ParseHeader(data)
	if err != nil {
		return &tsv.FileError{Path: path, Err: err}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(inspection{Format: format, Channels: channels})
}

// summaryNotifier writes the run summary to the meta bucket.
type summaryNotifier struct {
	client *influxdb.Client
	log    *logging.Logger
}

func (n *summaryNotifier) FileProcessed(context.Context, *ingest.FileReport) {}

func (n *summaryNotifier) RunFinished(ctx context.Context, r *ingest.RunReport) {
	ctx, cancel := context.WithTimeout(ctx, summaryTimeout)
	defer cancel()

	if err := n.client.WriteRunSummary(ctx, r); err != nil {
		n.log.Warn("could not write run summary", "run_id", r.RunID, "error", err)
	}
}
