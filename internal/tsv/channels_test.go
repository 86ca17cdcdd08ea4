package tsv

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectSubtype(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		want   DeviceSubtype
	}{
		{"single phase", []string{"TAG", "Ph 1 V", "Voie1 W"}, SubtypeMono},
		{"three phases", []string{"TAG", "Ph 1 V", "Ph 2 V", "Ph 3 V"}, SubtypeTri},
		{"no space", []string{"TAG", "Ph1 V", "Ph2 V", "Ph3 V"}, SubtypeTri},
		{"two phases", []string{"TAG", "Ph 1 V", "Ph 2 V"}, SubtypeMono},
		{"lowercase ignored", []string{"TAG", "ph 1 V", "ph 2 V", "ph 3 V"}, SubtypeMono},
		{"tag cell ignored", []string{"Ph 1", "Ph 2 V", "Ph 3 V"}, SubtypeMono},
		{"digit must end token", []string{"TAG", "Ph 12 V", "Ph 2 V", "Ph 3 V"}, SubtypeMono},
		{"empty", nil, SubtypeMono},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectSubtype(tt.labels))
		})
	}
}

func TestSplitLabel(t *testing.T) {
	tests := []struct {
		cell, name, unit string
	}{
		{"Ph 1 V", "Ph 1", "V"},
		{"Voie1 W", "Voie1", "W"},
		{"minipince", "minipince", ""},
		{"", "", ""},
		{"Energy active kWh", "Energy active", "kWh"},
	}

	for _, tt := range tests {
		t.Run(tt.cell, func(t *testing.T) {
			name, unit := splitLabel(tt.cell)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.unit, unit)
		})
	}
}

func TestChannelLabel(t *testing.T) {
	tests := []struct {
		typ     DeviceType
		subtype DeviceSubtype
		n       int
		want    string
	}{
		{DeviceMaster, SubtypeMono, 1, "U1"},
		{DeviceMaster, SubtypeMono, 2, "Ch1"},
		{DeviceMaster, SubtypeTri, 3, "U3"},
		{DeviceMaster, SubtypeTri, 4, "Ch1"},
		{DeviceSlave, "", 1, "Ch1"},
		{DeviceSlave, SubtypeTri, 2, "Ch2"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, channelLabel(tt.typ, tt.subtype, tt.n))
	}
}

func TestV003BuildChannels_MasterMono(t *testing.T) {
	channels := NewV003(nil).BuildChannels(
		[]string{"S1", "S1"},
		[]string{"TAG", "Ph 1 V"},
	)

	require.Len(t, channels, 1)
	c := channels[0]
	assert.Equal(t, 1, c.ColumnIndex)
	assert.Equal(t, DeviceMaster, c.DeviceType)
	assert.Equal(t, SubtypeMono, c.DeviceSubtype)
	assert.Equal(t, "U1", c.ChannelLabel)
	assert.Equal(t, "Ph 1", c.ChannelName)
	assert.Equal(t, "V", c.Unit)
	assert.Equal(t, "MS1_U1", c.ChannelID)
}

func TestV003BuildChannels_MasterTri(t *testing.T) {
	channels := NewV003(nil).BuildChannels(
		[]string{"02000800", "02000800", "02000800", "02000800", "02000800", "02000800"},
		[]string{"MV_T302_V003", "Ph 1 V", "Ph 2 V", "Ph 3 V", "Voie1 W", "Voie2 W"},
	)

	require.Len(t, channels, 5)
	labels := make([]string, len(channels))
	for i, c := range channels {
		labels[i] = c.ChannelLabel
		assert.Equal(t, SubtypeTri, c.DeviceSubtype)
	}
	assert.Equal(t, []string{"U1", "U2", "U3", "Ch1", "Ch2"}, labels)
	assert.Equal(t, "M02000800_Ch2", channels[4].ChannelID)
	assert.Equal(t, "M02000800_Ch2_W", channels[4].Field())
}

func TestV003BuildChannels_Slaves(t *testing.T) {
	devices := []string{"02000800", "02000800", "02000800", "02000800", "02000800", "04001002", "04001002"}
	labels := []string{"MV_T302_V003", "Ph 1 V", "Ph 2 V", "Ph 3 V", "Voie1 W", "Voie2 W", "Voie3 W"}

	channels := NewV003(nil).BuildChannels(devices, labels)
	require.Len(t, channels, 6)

	ids := channelIDs(channels)
	assert.Equal(t, []string{
		"M02000800_U1", "M02000800_U2", "M02000800_U3", "M02000800_Ch1",
		"M02000800_S04001002_Ch1", "M02000800_S04001002_Ch2",
	}, ids)

	slave := channels[4]
	assert.Equal(t, DeviceSlave, slave.DeviceType)
	assert.Empty(t, slave.DeviceSubtype)
	assert.Equal(t, "04001002", slave.DeviceSerial)
	assert.Equal(t, "02000800", slave.DeviceMasterSerial)
	assert.Equal(t, 1, slave.ChannelNumber)
}

func TestV002BuildChannels(t *testing.T) {
	channels := NewV002(nil).BuildChannels(
		[]string{"02001171", "02001171", "04000466"},
		[]string{"MV_T302_V002", "Ph 1 V", "Voie1 W"},
	)

	require.Len(t, channels, 2)

	m := channels[0]
	assert.Equal(t, 1, m.ColumnIndex)
	assert.Equal(t, "02001171", m.DeviceSerial)
	assert.Equal(t, DeviceMaster, m.DeviceType)
	assert.Equal(t, SubtypeMono, m.DeviceSubtype)
	assert.Equal(t, 1, m.ChannelNumber)
	assert.Equal(t, "M02001171_Ch1_M02001171", m.ChannelID)

	s := channels[1]
	assert.Equal(t, 2, s.ColumnIndex)
	assert.Equal(t, DeviceSlave, s.DeviceType)
	assert.Equal(t, "Voie1", s.ChannelName)
	assert.Equal(t, "W", s.Unit)
	assert.Equal(t, "S04000466_Ch1_M02001171", s.ChannelID)
}

func TestV002BuildChannels_IgnoresPhaseMarkers(t *testing.T) {
	channels := NewV002(nil).BuildChannels(
		[]string{"M", "M", "M", "M"},
		[]string{"MV_T302_V002", "Ph 1 V", "Ph 2 V", "Ph 3 V"},
	)

	require.Len(t, channels, 3)
	for _, c := range channels {
		assert.Equal(t, SubtypeMono, c.DeviceSubtype)
	}
	assert.Equal(t, "Ch2", channels[2].ChannelLabel)
}

func TestBuildChannels_ShortLabelRowDegrades(t *testing.T) {
	channels := NewV003(nil).BuildChannels(
		[]string{"A", "A", "B"},
		[]string{"TAG", "Ph 1 V"},
	)

	require.Len(t, channels, 2)
	assert.Empty(t, channels[1].ChannelName)
	assert.Empty(t, channels[1].Unit)
}

// Every column yields one descriptor, in column order, with a unique id.
func TestBuildChannels_OrderedAndUnique(t *testing.T) {
	devices := []string{"M1"}
	labels := []string{"TAG"}
	serials := []string{"M1", "S1", "S2"}
	for i := 0; i < 24; i++ {
		devices = append(devices, serials[i%len(serials)])
		labels = append(labels, "Voie W")
	}

	for _, f := range []Format{NewV002(nil), NewV003(nil)} {
		t.Run(string(f.Tag()), func(t *testing.T) {
			channels := f.BuildChannels(devices, labels)
			require.Len(t, channels, len(devices)-1)

			seen := make(map[string]bool)
			for i, c := range channels {
				assert.Equal(t, i+1, c.ColumnIndex)
				assert.False(t, seen[c.ChannelID], "duplicate id %s", c.ChannelID)
				seen[c.ChannelID] = true
			}
		})
	}
}

func channelIDs(channels []ChannelDescriptor) []string {
	ids := make([]string, len(channels))
	for i, c := range channels {
		ids[i] = c.ChannelID
	}
	return ids
}

func join(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}
