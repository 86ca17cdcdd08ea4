package tsv

import (
	"io"
	"strconv"
	"time"
)

// FormatTag identifies a file generation. It is read from column 0 of the
// label row.
type FormatTag string

// Registered format tags.
const (
	FormatV002 FormatTag = "MV_T302_V002"
	FormatV003 FormatTag = "MV_T302_V003"
)

// DeviceType classifies the device owning a column.
type DeviceType string

// Device types.
const (
	DeviceMaster DeviceType = "master"
	DeviceSlave  DeviceType = "slave"
)

// DeviceSubtype is the phase-count classification of a master device.
// It is empty for slaves.
type DeviceSubtype string

// Device subtypes.
const (
	SubtypeMono DeviceSubtype = "mono"
	SubtypeTri  DeviceSubtype = "tri"
)

// ChannelDescriptor describes one data column of a file.
// Descriptors are built once from the header rows and never modified.
type ChannelDescriptor struct {
	// ColumnIndex is the position in a data row. 0 is the timestamp.
	ColumnIndex int `json:"column_idx"`

	// ChannelID identifies the column uniquely within the file.
	ChannelID string `json:"channel_id"`

	DeviceSerial       string        `json:"device_sn"`
	DeviceMasterSerial string        `json:"device_master_sn"`
	DeviceType         DeviceType    `json:"channel_type"`
	DeviceSubtype      DeviceSubtype `json:"device_subtype,omitempty"`

	// ChannelNumber is the 1-based running count of columns seen for
	// this device so far.
	ChannelNumber int `json:"channel_number"`

	// ChannelLabel is the positional label (U1..U3, Ch1..).
	ChannelLabel string `json:"channel_label"`

	ChannelName string `json:"channel_name"`
	Unit        string `json:"unit"`
}

// Field returns the time-series field name of the channel.
func (d ChannelDescriptor) Field() string {
	return d.ChannelID + "_" + d.Unit
}

// Header is the raw header of a file as returned by a HeaderReader.
type Header struct {
	// Metadata is the parsed V003 metadata block. Empty for V002 files
	// and for V003 files whose metadata is not valid JSON.
	Metadata map[string]any

	// Devices is the device serial row; Devices[0] is the master serial.
	Devices []string

	// Labels is the "name unit" row; Labels[0] is the format tag.
	Labels []string

	// Body holds the raw tab-delimited data lines.
	Body []string

	// BodyLine is the 1-based line number of Body[0] in the file.
	BodyLine int
}

// Tag returns the format tag carried by the label row.
func (h *Header) Tag() string {
	if len(h.Labels) == 0 {
		return ""
	}
	return h.Labels[0]
}

// Sample is one decoded measurement.
type Sample struct {
	Timestamp time.Time
	Value     float64
	Campaign  string
	FileName  string
	Channel   ChannelDescriptor
}

// Field returns the time-series field name of the sample.
func (s Sample) Field() string {
	return s.Channel.Field()
}

// Tags returns the tag set attached to the sample when it is persisted.
func (s Sample) Tags() map[string]string {
	tags := map[string]string{
		"campaign":         s.Campaign,
		"channel_id":       s.Channel.ChannelID,
		"channel_type":     string(s.Channel.DeviceType),
		"channel_label":    s.Channel.ChannelLabel,
		"channel_number":   strconv.Itoa(s.Channel.ChannelNumber),
		"channel_name":     s.Channel.ChannelName,
		"channel_unit":     s.Channel.Unit,
		"device_master_sn": s.Channel.DeviceMasterSerial,
		"device_sn":        s.Channel.DeviceSerial,
	}
	if s.Channel.DeviceSubtype != "" {
		tags["channel_subtype"] = string(s.Channel.DeviceSubtype)
	}
	if s.FileName != "" {
		tags["file_name"] = s.FileName
	}
	return tags
}

// ChannelStats aggregates the valid values of one channel.
// Min, Max and Mean are nil when the channel produced no sample.
type ChannelStats struct {
	ChannelDescriptor

	Count int      `json:"nb_points"`
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
	Mean  *float64 `json:"mean"`
}

// ParseReport summarises the decode of one file.
type ParseReport struct {
	Format            FormatTag                `json:"format"`
	Rows              int                      `json:"nb_rows"`
	Channels          int                      `json:"nb_channels"`
	Samples           int                      `json:"nb_points"`
	InvalidTimestamps int                      `json:"nb_invalid_timestamps"`
	InvalidValues     int                      `json:"nb_invalid_values"`
	ChannelStats      map[string]*ChannelStats `json:"channels"`
	Metadata          map[string]any           `json:"metadata,omitempty"`
}

// DecodeOptions carries caller context attached to every sample.
type DecodeOptions struct {
	// Campaign identifies the measurement run. It is not read from the file.
	Campaign string

	// FileName is attached as the file_name tag when set.
	FileName string
}

// Format is one file generation. Each implementation owns its header
// layout, channel naming and row decoding rules.
type Format interface {
	Tag() FormatTag
	ReadHeader(r io.Reader) (*Header, error)
	BuildChannels(devices, labels []string) []ChannelDescriptor
	DecodeRows(h *Header, channels []ChannelDescriptor, opts DecodeOptions) ([]Sample, *ParseReport)
}

// Logger receives recoverable decode warnings.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Warn(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Warn(string, ...any) {}

func orNop(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}
