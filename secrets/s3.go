/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package secrets

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config locates the secrets object in S3 or an S3-compatible store.
type S3Config struct {
	Bucket string
	Key    string
	Region string
	// Endpoint overrides the AWS endpoint and switches to path-style
	// addressing, for MinIO and tests.
	Endpoint string
}

// NewS3 reads secrets from the JSON object at cfg. Credentials come from the
// default AWS chain unless opts override them.
func NewS3(ctx context.Context, cfg S3Config, opts ...func(*config.LoadOptions) error) (Provider, error) {
	if cfg.Bucket == "" || cfg.Key == "" {
		return nil, fmt.Errorf("aws_s3.bucket and aws_s3.key are required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, append([]func(*config.LoadOptions) error{config.WithRegion(region)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &document{
		name: fmt.Sprintf("s3://%s/%s", cfg.Bucket, cfg.Key),
		fetch: func(ctx context.Context) ([]byte, error) {
			out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(cfg.Bucket), Key: aws.String(cfg.Key)})
			if err != nil {
				return nil, err
			}
			defer out.Body.Close()
			return io.ReadAll(out.Body)
		},
	}, nil
}
