package influxdb

import (
	"context"
	"fmt"

	"github.com/influxdata/influxdb-client-go/v2/domain"
)

// TokenDescription returns the description identifying the read/write
// authorization of a bucket.
func TokenDescription(bucket string) string {
	return "powerview_token_for_bucket_" + bucket
}

// EnsureBucketToken returns the token of the read/write authorization
// scoped to bucket, creating the authorization when none exists. The bucket
// itself must already exist.
func (c *Client) EnsureBucketToken(ctx context.Context, bucket string) (string, error) {
	if !c.IsConnected() {
		return "", ErrNotConnected
	}

	org, err := c.organization(ctx)
	if err != nil {
		return "", err
	}
	b, err := c.findBucket(ctx, bucket)
	if err != nil {
		return "", err
	}

	description := TokenDescription(bucket)
	authAPI := c.client.AuthorizationsAPI()

	existing, err := authAPI.FindAuthorizationsByOrgName(ctx, c.cfg.Org)
	if err != nil {
		return "", fmt.Errorf("listing authorizations: %w", err)
	}
	if token := tokenByDescription(existing, description); token != "" {
		return token, nil
	}

	auth := &domain.Authorization{
		AuthorizationUpdateRequest: domain.AuthorizationUpdateRequest{
			Description: &description,
		},
		OrgID:       org.Id,
		Permissions: bucketPermissions(org.Id, b.Id),
	}
	created, err := authAPI.CreateAuthorization(ctx, auth)
	if err != nil {
		return "", fmt.Errorf("creating authorization for %q: %w", bucket, err)
	}
	if created.Token == nil {
		return "", fmt.Errorf("%w: authorization for %q has no token", ErrTokenMissing, bucket)
	}
	return *created.Token, nil
}

// tokenByDescription returns the token of the first authorization carrying
// description, or "".
func tokenByDescription(auths *[]domain.Authorization, description string) string {
	if auths == nil {
		return ""
	}
	for _, a := range *auths {
		if a.Description != nil && *a.Description == description && a.Token != nil {
			return *a.Token
		}
	}
	return ""
}

// bucketPermissions grants read and write on a single bucket.
func bucketPermissions(orgID, bucketID *string) *[]domain.Permission {
	resource := domain.Resource{
		Type:  domain.ResourceTypeBuckets,
		Id:    bucketID,
		OrgID: orgID,
	}
	return &[]domain.Permission{
		{Action: domain.PermissionActionRead, Resource: resource},
		{Action: domain.PermissionActionWrite, Resource: resource},
	}
}
