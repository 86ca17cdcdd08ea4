// Package mqtt publishes ingest events to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - One event per processed file and one per finished run
//
// # Topics
//
// All topics hang off the configured prefix (default "powerlog"):
//
//	<prefix>/status       retained online/offline status
//	<prefix>/ingest/file  one FileReport per processed file
//	<prefix>/ingest/run   retained summary of the last run
//
// # Security Considerations
//
//   - TLS should be enabled outside the lab (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	notifier := mqtt.NewEventPublisher(client, logger)
package mqtt
