package mqtt

import "strings"

// DefaultTopicPrefix is used when the configuration leaves the prefix empty.
const DefaultTopicPrefix = "powerlog"

// Topics provides builders for ingest MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.NewTopics("powerlog")
//	topics.IngestFile() // "powerlog/ingest/file"
type Topics struct {
	prefix string
}

// NewTopics returns builders rooted at prefix. Surrounding slashes are
// trimmed.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the root of all topics.
func (t Topics) Prefix() string {
	return t.prefix
}

// Status returns the retained online/offline status topic.
//
// Example: powerlog/status
func (t Topics) Status() string {
	return t.prefix + "/status"
}

// IngestFile returns the topic carrying one event per processed file.
//
// Example: powerlog/ingest/file
func (t Topics) IngestFile() string {
	return t.prefix + "/ingest/file"
}

// IngestRun returns the topic carrying the summary of a finished run.
//
// Example: powerlog/ingest/run
func (t Topics) IngestRun() string {
	return t.prefix + "/ingest/run"
}
