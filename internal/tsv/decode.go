package tsv

import (
	"math"
	"strconv"
	"strings"
)

// decodeRows is the single forward pass over the data body shared by all
// formats. A row with an unparsable timestamp yields no sample at all; an
// unparsable value only drops its own column.
func decodeRows(tag FormatTag, h *Header, channels []ChannelDescriptor, opts DecodeOptions, log Logger) ([]Sample, *ParseReport) {
	report := &ParseReport{
		Format:   tag,
		Channels: len(channels),
		Metadata: h.Metadata,
	}
	agg := newAggregator(channels)
	samples := make([]Sample, 0, len(h.Body)*len(channels))

	for i, line := range h.Body {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		report.Rows++
		lineNo := h.BodyLine + i

		cells := strings.Split(line, "\t")
		ts, ok := ParseTimestamp(cells[0])
		if !ok {
			report.InvalidTimestamps++
			log.Warn("could not parse timestamp",
				"file", opts.FileName,
				"line", lineNo,
				"value", cells[0],
			)
			continue
		}

		for _, ch := range channels {
			value, ok := parseValue(cells, ch.ColumnIndex)
			if !ok {
				report.InvalidValues++
				log.Warn("invalid value",
					"file", opts.FileName,
					"line", lineNo,
					"column", ch.ColumnIndex,
					"channel_id", ch.ChannelID,
				)
				continue
			}

			samples = append(samples, Sample{
				Timestamp: ts,
				Value:     value,
				Campaign:  opts.Campaign,
				FileName:  opts.FileName,
				Channel:   ch,
			})
			agg.add(ch.ChannelID, value)
		}
	}

	report.Samples = len(samples)
	report.ChannelStats = agg.finalize()
	return samples, report
}

// parseValue reads column idx of a row as a finite float64.
// Missing, empty, unparsable, NaN and infinite cells are invalid.
func parseValue(cells []string, idx int) (float64, bool) {
	if idx <= 0 || idx >= len(cells) {
		return 0, false
	}
	s := strings.TrimSpace(cells[idx])
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// running holds the in-flight aggregate of one channel. sum never leaves
// the decode pass.
type running struct {
	desc  ChannelDescriptor
	count int
	sum   float64
	min   float64
	max   float64
}

type aggregator struct {
	byID map[string]*running
}

func newAggregator(channels []ChannelDescriptor) *aggregator {
	a := &aggregator{byID: make(map[string]*running, len(channels))}
	for _, ch := range channels {
		a.byID[ch.ChannelID] = &running{desc: ch}
	}
	return a
}

func (a *aggregator) add(channelID string, v float64) {
	r := a.byID[channelID]
	if r.count == 0 {
		r.min, r.max = v, v
	} else {
		if v < r.min {
			r.min = v
		}
		if v > r.max {
			r.max = v
		}
	}
	r.count++
	r.sum += v
}

// finalize computes the means and drops the running sums.
func (a *aggregator) finalize() map[string]*ChannelStats {
	out := make(map[string]*ChannelStats, len(a.byID))
	for id, r := range a.byID {
		st := &ChannelStats{ChannelDescriptor: r.desc, Count: r.count}
		if r.count > 0 {
			lo, hi, mean := r.min, r.max, r.sum/float64(r.count)
			st.Min, st.Max, st.Mean = &lo, &hi, &mean
		}
		out[id] = st
	}
	return out
}
