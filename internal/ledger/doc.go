// Package ledger records the outcome of every ingested file.
//
// Each file is stored with its content hash, run id, decode counters and
// per-channel statistics. The hash lets a later run recognise a file that
// was already written even if it was copied back under another name.
//
// The schema lives in the migrations package and is applied with
// database.DB.Migrate before a repository is used.
//
// Usage:
//
//	repo := ledger.NewSQLiteRepository(db.DB)
//	done, err := repo.IsProcessed(ctx, sha)
package ledger
