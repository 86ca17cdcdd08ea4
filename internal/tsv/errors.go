package tsv

import (
	"errors"
	"fmt"
)

// Sentinel errors for TSV decoding.
//
// Only fatal conditions are represented as errors. Row and column level
// problems are counted in the ParseReport instead.
var (
	// ErrUnsupportedFormat indicates the format tag is not registered.
	ErrUnsupportedFormat = errors.New("tsv: unsupported format")

	// ErrStructuralHeader indicates the header rows are missing or inconsistent.
	ErrStructuralHeader = errors.New("tsv: structural header error")
)

// FileError is a fatal decode failure for one file.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("tsv: %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
