// Package database provides the SQLite connection behind the ingest ledger.
//
// This package manages:
//   - Opening a file or in-memory database with WAL mode and busy timeout
//   - Applying embedded schema migrations
//   - Connection lifecycle
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are named YYYYMMDD_HHMMSS_description.up.sql with a matching
// .down.sql, and are additive only.
package database
