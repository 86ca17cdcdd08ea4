package ledger

import "time"

// Status is the outcome of one file.
type Status string

// File outcomes. StatusDecoded marks a file that decoded cleanly in a dry
// run; nothing was written, so it does not count as processed.
const (
	StatusSuccess Status = "success"
	StatusDecoded Status = "decoded"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Entry is one processed file.
type Entry struct {
	ID                 int64     `json:"id"`
	RunID              string    `json:"run_id"`
	Path               string    `json:"file_path"`
	SHA256             string    `json:"sha256"`
	Bucket             string    `json:"bucket"`
	Campaign           string    `json:"campaign"`
	DeviceMasterSerial string    `json:"device_master_sn"`
	Format             string    `json:"format"`
	Status             Status    `json:"status"`
	Error              string    `json:"error,omitempty"`
	Rows               int       `json:"nb_rows"`
	Channels           int       `json:"nb_channels"`
	Points             int       `json:"nb_points"`
	InvalidTimestamps  int       `json:"nb_invalid_timestamps"`
	InvalidValues      int       `json:"nb_invalid_values"`
	ProcessedAt        time.Time `json:"processed_at"`

	// ChannelStats is only populated by GetLatestByPath.
	ChannelStats []ChannelStat `json:"channels,omitempty"`
}

// ChannelStat is the persisted summary of one channel of a file.
// Min, Max and Mean are nil for a channel without samples.
type ChannelStat struct {
	ChannelID string   `json:"channel_id"`
	Unit      string   `json:"unit"`
	Count     int      `json:"nb_points"`
	Min       *float64 `json:"min"`
	Max       *float64 `json:"max"`
	Mean      *float64 `json:"mean"`
}

// Validate checks the fields required to record an entry.
func (e *Entry) Validate() error {
	if e.Path == "" || e.SHA256 == "" || e.RunID == "" || e.Status == "" {
		return ErrInvalidEntry
	}
	return nil
}
