package influxdb

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/domain"

	"github.com/nerrad567/powerlog-ingest/internal/infrastructure/config"
)

// Default timeouts for InfluxDB operations.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	secondsPerDay = 24 * 60 * 60
)

// Client wraps the InfluxDB v2 client for sample ingestion.
//
// It provides connection management, bucket provisioning, blocking sample
// writes and health monitoring.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Resolved organisations and buckets are cached for the client lifetime.
type Client struct {
	client influxdb2.Client
	cfg    config.InfluxDBConfig

	// connected tracks current connection state.
	connected bool
	mu        sync.RWMutex

	// org is resolved on first use.
	org *domain.Organization

	// buckets caches buckets known to exist, by name.
	buckets map[string]*domain.Bucket
}

// Connect establishes a connection to the InfluxDB server.
//
// It performs the following setup:
//  1. Creates the client with token authentication and second precision
//  2. Verifies connectivity with a ping
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: If InfluxDB is disabled or connection fails
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().SetPrecision(time.Second),
	)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	return &Client{
		client:    client,
		cfg:       cfg,
		connected: true,
		buckets:   make(map[string]*domain.Bucket),
	}, nil
}

// Close shuts down the InfluxDB connection. Writes are blocking, so there
// is nothing to flush.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.client.Close()
	return nil
}

// HealthCheck verifies the InfluxDB connection is alive and functioning.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}

	return nil
}

// IsConnected returns the current connection state.
//
// Note: This reflects the last known state. For reliability,
// use HealthCheck which performs an active ping.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// organization resolves the configured organisation once.
func (c *Client) organization(ctx context.Context) (*domain.Organization, error) {
	c.mu.RLock()
	org := c.org
	c.mu.RUnlock()
	if org != nil {
		return org, nil
	}

	org, err := c.client.OrganizationsAPI().FindOrganizationByName(ctx, c.cfg.Org)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrOrgNotFound, c.cfg.Org, err)
	}

	c.mu.Lock()
	c.org = org
	c.mu.Unlock()
	return org, nil
}

// retentionRules converts the configured retention into bucket rules.
// Zero or negative days means infinite retention.
func retentionRules(days int) []domain.RetentionRule {
	if days <= 0 {
		return nil
	}
	return []domain.RetentionRule{{EverySeconds: int64(days) * secondsPerDay}}
}

// isNotFound reports whether a lookup error means the object is missing.
// The client library reports a missing bucket as a plain formatted error.
func isNotFound(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "not found")
}
