package tsv

import (
	"regexp"
	"strconv"
	"strings"
)

// phaseMarker matches the three-phase voltage labels "Ph 1".."Ph 3"
// (the space is optional).
var phaseMarker = regexp.MustCompile(`^Ph ?([123])\b`)

// voltageChannels is the number of leading master columns labelled U{n}
// for each subtype.
var voltageChannels = map[DeviceSubtype]int{
	SubtypeMono: 1,
	SubtypeTri:  3,
}

// detectSubtype returns SubtypeTri only when all three phase markers
// appear among the label cells after the format tag.
func detectSubtype(labels []string) DeviceSubtype {
	seen := make(map[string]bool, 3)
	for i := 1; i < len(labels); i++ {
		m := phaseMarker.FindStringSubmatch(strings.TrimSpace(labels[i]))
		if m != nil {
			seen[m[1]] = true
		}
	}
	if seen["1"] && seen["2"] && seen["3"] {
		return SubtypeTri
	}
	return SubtypeMono
}

// channelLabel derives the positional label of the n-th column of a device.
func channelLabel(deviceType DeviceType, subtype DeviceSubtype, n int) string {
	if deviceType == DeviceMaster {
		voltages := voltageChannels[subtype]
		if n <= voltages {
			return "U" + strconv.Itoa(n)
		}
		return "Ch" + strconv.Itoa(n-voltages)
	}
	return "Ch" + strconv.Itoa(n)
}

// splitLabel splits a "name unit" header cell on its last space.
// A cell without a space is all name.
func splitLabel(cell string) (name, unit string) {
	idx := strings.LastIndex(cell, " ")
	if idx < 0 {
		return strings.TrimSpace(cell), ""
	}
	return strings.TrimSpace(cell[:idx]), strings.TrimSpace(cell[idx+1:])
}

// channelIDFunc builds the file-unique id of a descriptor whose other
// fields are already set.
type channelIDFunc func(d ChannelDescriptor) string

// buildChannels walks the header columns left to right and derives one
// descriptor per data column. Malformed rows degrade the descriptors
// rather than failing.
func buildChannels(devices, labels []string, subtype DeviceSubtype, channelID channelIDFunc) []ChannelDescriptor {
	if len(devices) == 0 {
		return nil
	}
	master := strings.TrimSpace(devices[0])

	channels := make([]ChannelDescriptor, 0, len(devices)-1)
	perDevice := make(map[string]int)

	for col := 1; col < len(devices); col++ {
		serial := strings.TrimSpace(devices[col])
		var cell string
		if col < len(labels) {
			cell = labels[col]
		}

		perDevice[serial]++
		n := perDevice[serial]

		d := ChannelDescriptor{
			ColumnIndex:        col,
			DeviceSerial:       serial,
			DeviceMasterSerial: master,
			DeviceType:         DeviceSlave,
			ChannelNumber:      n,
		}
		if serial == master {
			d.DeviceType = DeviceMaster
			d.DeviceSubtype = subtype
		}
		d.ChannelLabel = channelLabel(d.DeviceType, subtype, n)
		d.ChannelName, d.Unit = splitLabel(cell)
		d.ChannelID = channelID(d)

		channels = append(channels, d)
	}

	return channels
}
