package tsv

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Block markers of the V003 layout.
const (
	markerStartHeader = "START_HEADER"
	markerEndHeader   = "END_HEADER"
	markerStartData   = "START_DATA"
	markerEndData     = "END_DATA"
)

// maxLineSize bounds a single line. Wide multi-device exports produce
// long label rows.
const maxLineSize = 4 * 1024 * 1024

// newLineScanner returns a scanner yielding lines without their
// terminator (including a trailing \r).
func newLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return sc
}

// splitHeaderRow trims a header line and splits it into cells.
func splitHeaderRow(line string) []string {
	return strings.Split(strings.TrimSpace(line), "\t")
}

// DetectTag returns the format tag of a file without decoding it.
//
// Files carrying a START_DATA marker hold the tag in the label row, the
// second line after the marker. Other files hold it in line 2.
func DetectTag(r io.Reader) (string, error) {
	sc := newLineScanner(r)

	var second string
	lineNo := 0
	afterMarker := -1

	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")

		switch {
		case afterMarker >= 0:
			afterMarker++
			if afterMarker == 2 {
				return splitHeaderRow(line)[0], nil
			}
		case strings.TrimSpace(line) == markerStartData:
			afterMarker = 0
		case lineNo == 2:
			second = line
		}
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}

	if afterMarker >= 0 {
		return "", fmt.Errorf("%w: label row missing after %s", ErrStructuralHeader, markerStartData)
	}
	if lineNo < 2 {
		return "", fmt.Errorf("%w: file has fewer than two header lines", ErrStructuralHeader)
	}
	return splitHeaderRow(second)[0], nil
}
