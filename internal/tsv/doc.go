// Package tsv decodes power-logger TSV exports into timestamped samples.
//
// Two file generations are supported and decode to the same sample model:
//
//   - MV_T302_V002: two header lines (device serials, then "name unit"
//     labels) followed directly by the tab-separated body.
//   - MV_T302_V003: a JSON metadata block between START_HEADER/END_HEADER
//     and a data block between START_DATA/END_DATA whose first two lines
//     are the device and label rows.
//
// # Pipeline
//
// The Registry maps the format tag found in the file to a Format. Each
// Format implements the three steps of a decode on its own:
//
//	header, err := format.ReadHeader(r)
//	channels := format.BuildChannels(header.Devices, header.Labels)
//	samples, report := format.DecodeRows(header, channels, opts)
//
// Parser wires these together for a whole file and is what callers
// normally use:
//
//	p := tsv.NewParser(tsv.DefaultRegistry(logger))
//	result, err := p.ParseFile(path, tsv.DecodeOptions{Campaign: "campaign1"})
//
// # Error Handling
//
// Unsupported format tags and broken headers are fatal for the file and
// are returned as *FileError. Unparsable timestamps, unparsable values and
// malformed V003 metadata are recoverable: they are counted in the
// ParseReport and logged, never returned.
//
// # Thread Safety
//
// A decode owns all of its state. Different files may be decoded
// concurrently with the same Parser; a single file is always decoded in
// column and row order.
package tsv
