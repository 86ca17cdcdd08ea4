package ingest

import "errors"

// Sentinel errors for ingest operations.
var (
	// ErrInvalidPath indicates a file is not laid out as
	// <bucket>/<campaign>/<device_master_sn>/<file> under the base folder.
	ErrInvalidPath = errors.New("ingest: invalid path structure")

	// ErrAlreadyProcessed indicates the file content is already in the ledger.
	ErrAlreadyProcessed = errors.New("ingest: already processed")
)
