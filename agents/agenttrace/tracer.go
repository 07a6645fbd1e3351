/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agenttrace

import (
	"context"

	"github.com/chainguard-dev/clog"
)

// Tracer receives completed traces.
type Tracer interface {
	RecordTrace(*Trace)
}

// ByCode adapts callbacks into a Tracer.
type ByCode func(*Trace)

// RecordTrace implements Tracer.
func (f ByCode) RecordTrace(t *Trace) { f(t) }

type tracerKey struct{}

// WithTracer attaches tr to ctx. Traces started under ctx are sent to it.
func WithTracer(ctx context.Context, tr Tracer) context.Context {
	return context.WithValue(ctx, tracerKey{}, tr)
}

// TracerFromContext returns the tracer attached to ctx, or one that logs
// each trace through clog.
func TracerFromContext(ctx context.Context) Tracer {
	if tr, ok := ctx.Value(tracerKey{}).(Tracer); ok {
		return tr
	}
	log := clog.FromContext(ctx)
	return ByCode(func(t *Trace) {
		prompt, completion := t.Tokens()
		log.With(
			"trace_id", t.ID,
			"command", t.Command,
			"duration_ms", t.Duration().Milliseconds(),
			"completions", len(t.Completions),
			"prompt_tokens", prompt,
			"completion_tokens", completion,
		).Debug("Command trace completed", "trace", t.String())
	})
}
