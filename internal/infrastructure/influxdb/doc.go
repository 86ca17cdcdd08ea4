// Package influxdb provides InfluxDB connectivity for powerlog-ingest.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, bucket provisioning, sample writing and health monitoring.
//
// # Purpose
//
// This package handles time-series storage for:
//   - Decoded logger samples, one bucket per site directory
//   - Run and file summaries written to the meta bucket
//   - Read/write tokens scoped to a single bucket
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	if err := client.EnsureBucket(ctx, "site_a"); err != nil {
//	    return err
//	}
//	err = client.WriteSamples(ctx, "site_a", "campaign", result.Samples)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Writes are blocking and return ErrWriteFailed wrapping the server error,
// so a file is only marked parsed once its samples are stored. Timestamps
// are sent with second precision.
package influxdb
