package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines ledger persistence operations.
type Repository interface {
	// Record stores an entry and its channel stats, setting e.ID.
	Record(ctx context.Context, e *Entry) error

	// IsProcessed reports whether a file with this content hash was
	// already ingested successfully.
	IsProcessed(ctx context.Context, sha256 string) (bool, error)

	// GetLatestByPath returns the most recent entry for a path.
	// Returns ErrFileNotFound if the path was never recorded.
	GetLatestByPath(ctx context.Context, path string) (*Entry, error)

	// ListByRun returns the entries of one run, oldest first, without
	// channel stats.
	ListByRun(ctx context.Context, runID string) ([]Entry, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open, migrated SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record stores an entry and its channel stats in one transaction.
func (r *SQLiteRepository) Record(ctx context.Context, e *Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ProcessedAt.IsZero() {
		e.ProcessedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	res, err := tx.ExecContext(ctx, `
		INSERT INTO ingested_files (
			run_id, path, sha256, bucket, campaign, device_master_sn, format,
			status, error, nb_rows, nb_channels, nb_points,
			invalid_timestamps, invalid_values, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Path, e.SHA256, e.Bucket, e.Campaign, e.DeviceMasterSerial, e.Format,
		string(e.Status), e.Error, e.Rows, e.Channels, e.Points,
		e.InvalidTimestamps, e.InvalidValues, e.ProcessedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting file entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading entry id: %w", err)
	}

	for _, cs := range e.ChannelStats {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO channel_stats (file_id, channel_id, unit, nb_points, min_value, max_value, mean_value)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, cs.ChannelID, cs.Unit, cs.Count, cs.Min, cs.Max, cs.Mean,
		); err != nil {
			return fmt.Errorf("inserting channel stats %s: %w", cs.ChannelID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing file entry: %w", err)
	}
	e.ID = id
	return nil
}

// IsProcessed reports whether a successful entry exists for the hash.
func (r *SQLiteRepository) IsProcessed(ctx context.Context, sha256 string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ingested_files WHERE sha256 = ? AND status = ?",
		sha256, string(StatusSuccess),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("querying file hash: %w", err)
	}
	return n > 0, nil
}

// GetLatestByPath returns the most recent entry for path with its channel stats.
func (r *SQLiteRepository) GetLatestByPath(ctx context.Context, path string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, selectEntry+`
		WHERE path = ?
		ORDER BY id DESC
		LIMIT 1`, path)

	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("querying file by path: %w", err)
	}

	stats, err := r.channelStats(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	e.ChannelStats = stats
	return e, nil
}

// ListByRun returns the entries recorded by one run.
func (r *SQLiteRepository) ListByRun(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, selectEntry+`
		WHERE run_id = ?
		ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying run entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return entries, nil
}

func (r *SQLiteRepository) channelStats(ctx context.Context, fileID int64) ([]ChannelStat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT channel_id, unit, nb_points, min_value, max_value, mean_value
		FROM channel_stats
		WHERE file_id = ?
		ORDER BY channel_id`, fileID)
	if err != nil {
		return nil, fmt.Errorf("querying channel stats: %w", err)
	}
	defer rows.Close()

	var stats []ChannelStat
	for rows.Next() {
		var cs ChannelStat
		var lo, hi, mean sql.NullFloat64
		if err := rows.Scan(&cs.ChannelID, &cs.Unit, &cs.Count, &lo, &hi, &mean); err != nil {
			return nil, fmt.Errorf("scanning channel stats: %w", err)
		}
		cs.Min, cs.Max, cs.Mean = nullable(lo), nullable(hi), nullable(mean)
		stats = append(stats, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating channel stats: %w", err)
	}
	return stats, nil
}

const selectEntry = `
	SELECT id, run_id, path, sha256, bucket, campaign, device_master_sn, format,
		status, error, nb_rows, nb_channels, nb_points,
		invalid_timestamps, invalid_values, processed_at
	FROM ingested_files`

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var e Entry
	var status, processedAt string
	err := s.Scan(
		&e.ID, &e.RunID, &e.Path, &e.SHA256, &e.Bucket, &e.Campaign, &e.DeviceMasterSerial, &e.Format,
		&status, &e.Error, &e.Rows, &e.Channels, &e.Points,
		&e.InvalidTimestamps, &e.InvalidValues, &processedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Status = Status(status)
	e.ProcessedAt, _ = time.Parse(time.RFC3339, processedAt) //nolint:errcheck // written by Record
	return &e, nil
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
