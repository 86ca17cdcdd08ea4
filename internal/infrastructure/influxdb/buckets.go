package influxdb

import (
	"context"
	"fmt"

	"github.com/influxdata/influxdb-client-go/v2/domain"
)

// EnsureBucket creates bucket in the configured organisation when it does
// not exist yet. New buckets get the configured retention.
func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	_, err := c.ensureBucket(ctx, bucket)
	return err
}

func (c *Client) ensureBucket(ctx context.Context, name string) (*domain.Bucket, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	if b := c.cachedBucket(name); b != nil {
		return b, nil
	}

	b, err := c.client.BucketsAPI().FindBucketByName(ctx, name)
	if err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("looking up bucket %q: %w", name, err)
	}

	if b == nil {
		org, err := c.organization(ctx)
		if err != nil {
			return nil, err
		}
		b, err = c.client.BucketsAPI().CreateBucketWithName(ctx, org, name, retentionRules(c.cfg.RetentionDays)...)
		if err != nil {
			// Another writer may have created it concurrently.
			if existing, findErr := c.client.BucketsAPI().FindBucketByName(ctx, name); findErr == nil && existing != nil {
				b = existing
			} else {
				return nil, fmt.Errorf("creating bucket %q: %w", name, err)
			}
		}
	}

	c.mu.Lock()
	c.buckets[name] = b
	c.mu.Unlock()
	return b, nil
}

// findBucket returns an existing bucket or ErrBucketNotFound.
func (c *Client) findBucket(ctx context.Context, name string) (*domain.Bucket, error) {
	if b := c.cachedBucket(name); b != nil {
		return b, nil
	}

	b, err := c.client.BucketsAPI().FindBucketByName(ctx, name)
	if isNotFound(err) || (err == nil && b == nil) {
		return nil, fmt.Errorf("%w: %q", ErrBucketNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up bucket %q: %w", name, err)
	}
	return b, nil
}

func (c *Client) cachedBucket(name string) *domain.Bucket {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.buckets[name]
}
