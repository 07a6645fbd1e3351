/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package secrets reads per-token secrets, such as the GitLab token behind a
// webhook secret, from a JSON document kept in object storage.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chainguard.dev/pragent/settings"
)

// ErrNotFound is returned for keys missing from the document.
var ErrNotFound = errors.New("secret not found")

// Provider looks up secrets by key.
type Provider interface {
	// Get returns the secret stored under key. Object values are returned as
	// their JSON text.
	Get(ctx context.Context, key string) (string, error)
	// All returns every secret in the document.
	All(ctx context.Context) (map[string]string, error)
}

// Kinds of config.secret_provider.
const (
	GoogleCloudStorage = "google_cloud_storage"
	AWSS3              = "aws_s3"
)

// FromStore builds the provider named by config.secret_provider. It returns
// nil when no provider is configured.
func FromStore(ctx context.Context, s *settings.Store) (Provider, error) {
	switch kind := s.String("config.secret_provider"); kind {
	case "":
		return nil, nil
	case GoogleCloudStorage:
		return NewGCS(ctx, s.String("google_cloud_storage.bucket"), s.String("google_cloud_storage.object"))
	case AWSS3:
		return NewS3(ctx, S3Config{
			Bucket:   s.String("aws_s3.bucket"),
			Key:      s.String("aws_s3.key"),
			Region:   s.String("aws_s3.region"),
			Endpoint: s.String("aws_s3.endpoint"),
		})
	default:
		return nil, fmt.Errorf("unknown secret provider %q", kind)
	}
}

// document is a fetched JSON object of secrets. The object is fetched on
// every lookup so rotated secrets take effect without a restart.
type document struct {
	name  string
	fetch func(ctx context.Context) ([]byte, error)
}

func (d *document) load(ctx context.Context) (map[string]string, error) {
	raw, err := d.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", d.name, err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", d.name, err)
	}
	out := make(map[string]string, len(doc))
	for k, v := range doc {
		var str string
		if err := json.Unmarshal(v, &str); err == nil {
			out[k] = str
			continue
		}
		out[k] = string(v)
	}
	return out, nil
}

func (d *document) Get(ctx context.Context, key string) (string, error) {
	all, err := d.load(ctx)
	if err != nil {
		return "", err
	}
	v, ok := all[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (d *document) All(ctx context.Context) (map[string]string, error) {
	return d.load(ctx)
}
