package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/nerrad567/powerlog-ingest/internal/infrastructure/config"
	"github.com/nerrad567/powerlog-ingest/internal/infrastructure/database"
	"github.com/nerrad567/powerlog-ingest/internal/infrastructure/influxdb"
	"github.com/nerrad567/powerlog-ingest/internal/infrastructure/mqtt"
	"github.com/nerrad567/powerlog-ingest/internal/ledger"
	"github.com/nerrad567/powerlog-ingest/migrations"
)

// errLedgerDisabled is returned by commands that need the ledger database.
var errLedgerDisabled = errors.New("ledger database is disabled (database.enabled=false)")

// errCheckFailed makes check exit non-zero when an enabled service is down.
var errCheckFailed = errors.New("one or more services are unhealthy")

// Migration directions of the migrate command.
const (
	migrateUp     = "up"
	migrateDown   = "down"
	migrateStatus = "status"
)

// openDatabase opens the ledger database and checks that it answers.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	if !cfg.Enabled {
		return nil, errLedgerDisabled
	}
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.HealthCheck(ctx); err != nil {
		db.Close() //nolint:errcheck,gosec // already failing
		return nil, err
	}
	return db, nil
}

// runMigrate applies, rolls back or lists the ledger schema migrations.
func runMigrate(ctx context.Context, configPath, direction string, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // read-mostly command

	switch direction {
	case migrateUp:
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	case migrateDown:
		if err := db.MigrateDown(ctx, migrations.FS); err != nil {
			return fmt.Errorf("rolling back migration: %w", err)
		}
	case migrateStatus:
	default:
		return fmt.Errorf("migrate: unknown direction %q", direction)
	}

	applied, pending, err := db.MigrationStatus(ctx, migrations.FS)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	fmt.Fprintf(out, "database %s\n", db.Path())
	for _, m := range applied {
		fmt.Fprintf(out, "  applied  %s  %s\n", m.Version, m.AppliedAt.UTC().Format("2006-01-02 15:04:05"))
	}
	for _, m := range pending {
		fmt.Fprintf(out, "  pending  %s  %s\n", m.Version, m.Name)
	}
	return nil
}

// runHistory prints the ledger entries of a run, or the latest entry of a
// file with its channel stats.
func runHistory(ctx context.Context, configPath, runID, path string, out io.Writer) error {
	if (runID == "") == (path == "") {
		return errors.New("history: give exactly one of --run or --file")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // read-only command

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	repo := ledger.NewSQLiteRepository(db.DB)

	var result any
	if runID != "" {
		entries, err := repo.ListByRun(ctx, runID)
		if err != nil {
			return err
		}
		if entries == nil {
			entries = []ledger.Entry{}
		}
		result = entries
	} else {
		entry, err := repo.GetLatestByPath(ctx, path)
		if err != nil {
			return fmt.Errorf("history %s: %w", path, err)
		}
		result = entry
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// runCheck reports the health of every configured service.
func runCheck(ctx context.Context, configPath string, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	failed := false
	report := func(name string, enabled bool, check func() error) {
		if !enabled {
			fmt.Fprintf(out, "%-9s disabled\n", name)
			return
		}
		if err := check(); err != nil {
			failed = true
			fmt.Fprintf(out, "%-9s FAIL %v\n", name, err)
			return
		}
		fmt.Fprintf(out, "%-9s ok\n", name)
	}

	report("influxdb", cfg.InfluxDB.Enabled, func() error {
		client, err := influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return err
		}
		defer client.Close()
		return client.HealthCheck(ctx)
	})

	report("database", cfg.Database.Enabled, func() error {
		db, err := openDatabase(ctx, cfg.Database)
		if err != nil {
			return err
		}
		return db.Close()
	})

	report("mqtt", cfg.MQTT.Enabled, func() error {
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return err
		}
		defer client.Close() //nolint:errcheck // check only
		return client.HealthCheck(ctx)
	})

	if failed {
		return errCheckFailed
	}
	return nil
}
