package tsv

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// v002 is the flat layout: device row, label row, then the body.
//
// Channel ids embed the device serial and running channel number:
// "{M|S}{serial}_Ch{n}_M{master}". Phase detection is not applied; the
// master is always mono.
type v002 struct {
	log Logger
}

// NewV002 returns the MV_T302_V002 format.
func NewV002(logger Logger) Format {
	return &v002{log: orNop(logger)}
}

func (f *v002) Tag() FormatTag { return FormatV002 }

// ReadHeader reads the first two lines as the header and keeps every
// following line as the body.
func (f *v002) ReadHeader(r io.Reader) (*Header, error) {
	sc := newLineScanner(r)

	var lines []string
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: file has fewer than two header lines", ErrStructuralHeader)
	}

	return &Header{
		Metadata: map[string]any{},
		Devices:  splitHeaderRow(lines[0]),
		Labels:   splitHeaderRow(lines[1]),
		Body:     lines[2:],
		BodyLine: 3,
	}, nil
}

func (f *v002) BuildChannels(devices, labels []string) []ChannelDescriptor {
	return buildChannels(devices, labels, SubtypeMono, func(d ChannelDescriptor) string {
		prefix := "S"
		if d.DeviceType == DeviceMaster {
			prefix = "M"
		}
		return prefix + d.DeviceSerial + "_Ch" + strconv.Itoa(d.ChannelNumber) + "_M" + d.DeviceMasterSerial
	})
}

func (f *v002) DecodeRows(h *Header, channels []ChannelDescriptor, opts DecodeOptions) ([]Sample, *ParseReport) {
	samples, report := decodeRows(FormatV002, h, channels, opts, f.log)
	report.Metadata = nil
	return samples, report
}
