package metrics

import "errors"

var (
	// ErrDisabled indicates metrics pushing is disabled in config.
	ErrDisabled = errors.New("metrics: disabled in configuration")

	// ErrPushFailed indicates the Pushgateway rejected or did not receive
	// the metrics.
	ErrPushFailed = errors.New("metrics: push failed")
)
