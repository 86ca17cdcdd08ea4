// Package config handles loading and validating powerlog-ingest configuration.
//
// This package manages:
//   - Loading configuration from an optional YAML file
//   - Loading a .env file from the working directory
//   - Overriding with environment variables
//   - Validation of required fields
//
// Security Considerations:
//   - The InfluxDB token should be set via environment variables or .env
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/powerlog.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Ingest.DataFolder)
package config
