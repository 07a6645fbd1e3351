/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package secrets

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// NewGCS reads secrets from the JSON object gs://bucket/object.
func NewGCS(ctx context.Context, bucket, object string, opts ...option.ClientOption) (Provider, error) {
	if bucket == "" || object == "" {
		return nil, fmt.Errorf("google_cloud_storage.bucket and google_cloud_storage.object are required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	obj := client.Bucket(bucket).Object(object)
	return &document{
		name: fmt.Sprintf("gs://%s/%s", bucket, object),
		fetch: func(ctx context.Context) ([]byte, error) {
			r, err := obj.NewReader(ctx)
			if err != nil {
				return nil, err
			}
			defer r.Close()
			return io.ReadAll(r)
		},
	}, nil
}
