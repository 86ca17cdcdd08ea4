package tsv

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// v003 is the block layout with a JSON metadata header.
//
// Channel ids are rooted at the master serial: "M{master}_{label}" for the
// master and "M{master}_S{serial}_{label}" for slaves. The master subtype
// is detected from the phase labels.
type v003 struct {
	log Logger
}

// NewV003 returns the MV_T302_V003 format.
func NewV003(logger Logger) Format {
	return &v003{log: orNop(logger)}
}

func (f *v003) Tag() FormatTag { return FormatV003 }

// scan states of the V003 header reader.
const (
	stateSeek = iota
	stateMetadata
	stateDeviceRow
	stateLabelRow
	stateBody
	stateDone
)

// ReadHeader streams the file, collecting the optional metadata block and
// the data block. Malformed metadata is logged and replaced by an empty
// object. Missing data markers or header rows are fatal.
func (f *v003) ReadHeader(r io.Reader) (*Header, error) {
	sc := newLineScanner(r)
	h := &Header{Metadata: map[string]any{}}

	var meta []string
	metaSeen := false
	state := stateSeek
	lineNo := 0

	for state != stateDone && sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		marker := strings.TrimSpace(line)

		switch state {
		case stateSeek:
			switch {
			case marker == markerStartHeader && !metaSeen:
				state = stateMetadata
			case marker == markerStartData:
				state = stateDeviceRow
			}
		case stateMetadata:
			switch marker {
			case markerEndHeader:
				metaSeen = true
				h.Metadata = f.parseMetadata(meta, lineNo)
				state = stateSeek
			case markerStartData:
				f.log.Warn("metadata block not terminated", "line", lineNo)
				metaSeen = true
				state = stateDeviceRow
			default:
				meta = append(meta, line)
			}
		case stateDeviceRow:
			if marker == markerEndData {
				return nil, fmt.Errorf("%w: device row missing after %s", ErrStructuralHeader, markerStartData)
			}
			h.Devices = splitHeaderRow(line)
			state = stateLabelRow
		case stateLabelRow:
			if marker == markerEndData {
				return nil, fmt.Errorf("%w: label row missing after %s", ErrStructuralHeader, markerStartData)
			}
			h.Labels = splitHeaderRow(line)
			h.BodyLine = lineNo + 1
			state = stateBody
		case stateBody:
			if marker == markerEndData {
				state = stateDone
				continue
			}
			h.Body = append(h.Body, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	switch state {
	case stateDone:
		return h, nil
	case stateSeek, stateMetadata:
		return nil, fmt.Errorf("%w: %s marker not found", ErrStructuralHeader, markerStartData)
	case stateDeviceRow, stateLabelRow:
		return nil, fmt.Errorf("%w: header rows missing after %s", ErrStructuralHeader, markerStartData)
	default:
		return nil, fmt.Errorf("%w: %s marker not found", ErrStructuralHeader, markerEndData)
	}
}

// parseMetadata decodes the metadata block. Any failure yields an empty
// object.
func (f *v003) parseMetadata(lines []string, endLine int) map[string]any {
	raw := strings.TrimSpace(strings.Join(lines, "\n"))
	if raw == "" {
		return map[string]any{}
	}

	var meta map[string]any
	if err := json.Unmarshal([]byte(raw), &meta); err != nil || meta == nil {
		f.log.Warn("malformed header metadata",
			"end_line", endLine,
			"error", err,
		)
		return map[string]any{}
	}
	return meta
}

func (f *v003) BuildChannels(devices, labels []string) []ChannelDescriptor {
	return buildChannels(devices, labels, detectSubtype(labels), func(d ChannelDescriptor) string {
		if d.DeviceType == DeviceMaster {
			return "M" + d.DeviceMasterSerial + "_" + d.ChannelLabel
		}
		return "M" + d.DeviceMasterSerial + "_S" + d.DeviceSerial + "_" + d.ChannelLabel
	})
}

func (f *v003) DecodeRows(h *Header, channels []ChannelDescriptor, opts DecodeOptions) ([]Sample, *ParseReport) {
	return decodeRows(FormatV003, h, channels, opts, f.log)
}
