/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package agenttrace traces command runs and the model calls made for them.

A Trace spans one command (review, describe, ...) against one pull request. Each
model call inside it is a Completion with its own OpenTelemetry span carrying the
model name and token usage.

	ctx = agenttrace.WithRequestContext(ctx, agenttrace.RequestContext{
		Provider:   "github",
		Repository: "octo/repo",
		Number:     42,
		Command:    "review",
	})
	ctx, trace := agenttrace.StartTrace(ctx, "review")
	defer func() { trace.Complete(err) }()

	ctx, c := agenttrace.FromContext(ctx).StartCompletion(ctx, "gpt-4.1")
	c.Complete(1200, 300, "stop", nil)

RequestContext.EnrichAttributes adds the bounded labels (provider, repository,
command) to metrics.
*/
package agenttrace
