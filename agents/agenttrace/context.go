/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agenttrace

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
)

// RequestContext identifies the pull request and command a model call serves.
type RequestContext struct {
	Provider   string `json:"provider,omitempty"`   // "github", "gitlab", "gitea" or "local"
	Repository string `json:"repository,omitempty"` // "owner/repo"
	Number     int    `json:"number,omitempty"`     // PR or MR number
	Command    string `json:"command,omitempty"`    // canonical command name, e.g. "review"
	CommitSHA  string `json:"commit_sha,omitempty"`
}

// EnrichAttributes appends the bounded request attributes to base. PR numbers
// and commit SHAs stay on spans only.
func (r RequestContext) EnrichAttributes(base []attribute.KeyValue) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, len(base), len(base)+3)
	copy(attrs, base)
	if r.Provider != "" {
		attrs = append(attrs, attribute.String("provider", r.Provider))
	}
	if r.Repository != "" {
		attrs = append(attrs, attribute.String("repository", r.Repository))
	}
	if r.Command != "" {
		attrs = append(attrs, attribute.String("command", r.Command))
	}
	return attrs
}

func (r RequestContext) spanAttributes() []attribute.KeyValue {
	attrs := r.EnrichAttributes(nil)
	if r.Number != 0 {
		attrs = append(attrs, attribute.String("pull_request", r.Repository+"#"+strconv.Itoa(r.Number)))
	}
	if r.CommitSHA != "" {
		attrs = append(attrs, attribute.String("commit_sha", r.CommitSHA))
	}
	return attrs
}

type requestKey struct{}

// WithRequestContext attaches rc to ctx.
func WithRequestContext(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, requestKey{}, rc)
}

// GetRequestContext returns the RequestContext attached to ctx, or the zero value.
func GetRequestContext(ctx context.Context) RequestContext {
	rc, _ := ctx.Value(requestKey{}).(RequestContext)
	return rc
}
