// Package ingest drives the decoding of a data folder into the time-series
// store.
//
// Files are expected under
//
//	<base>/<bucket>/<campaign>/<device_master_sn>/<file>.tsv
//
// and the bucket and campaign are taken from that path. A Processor
// decodes each file with the tsv package, writes the samples through a
// Sink, renames the file with the parsed prefix and records the outcome in
// a RunReport. A failure in one file never stops the run: the file is
// reported as failed and optionally moved to a failed directory.
//
// Files are processed in parallel up to Options.Workers; each file is
// decoded by a single goroutine.
//
// Every collaborator is optional. Without a Sink the run only decodes and
// reports (dry run) and files stay where they are.
package ingest
