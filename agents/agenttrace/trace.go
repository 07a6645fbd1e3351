/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agenttrace

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const instrumentationName = "chainguard.dev/pragent/agenttrace"

func tracer() oteltrace.Tracer {
	return otel.Tracer(instrumentationName, oteltrace.WithInstrumentationVersion("1.0.0"))
}

// Completion is one model call made while serving a command.
type Completion struct {
	Model            string    `json:"model"`
	PromptTokens     int64     `json:"prompt_tokens"`
	CompletionTokens int64     `json:"completion_tokens"`
	FinishReason     string    `json:"finish_reason,omitempty"`
	Error            error     `json:"error,omitempty"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`

	trace *Trace
	span  oteltrace.Span
}

// Trace records one command run from dispatch to completion.
type Trace struct {
	ID          string         `json:"id"`
	Command     string         `json:"command"`
	Request     RequestContext `json:"request"`
	Completions []*Completion  `json:"completions"`
	Error       error          `json:"error,omitempty"`
	StartTime   time.Time      `json:"start_time"`
	EndTime     time.Time      `json:"end_time"`

	mu     sync.Mutex
	span   oteltrace.Span
	tracer Tracer
}

type traceKey struct{}

// StartTrace opens a trace for command and returns a context carrying it.
func StartTrace(ctx context.Context, command string) (context.Context, *Trace) {
	rc := GetRequestContext(ctx)
	ctx, span := tracer().Start(ctx, "pragent.command", oteltrace.WithAttributes(
		append(rc.spanAttributes(), attribute.String("command.name", command))...,
	))
	t := &Trace{
		ID:        uuid.NewString(),
		Command:   command,
		Request:   rc,
		StartTime: time.Now(),
		span:      span,
		tracer:    TracerFromContext(ctx),
	}
	return context.WithValue(ctx, traceKey{}, t), t
}

// FromContext returns the trace carried by ctx, or nil.
func FromContext(ctx context.Context) *Trace {
	t, _ := ctx.Value(traceKey{}).(*Trace)
	return t
}

// StartCompletion opens a child span of ctx for a model call. It is safe on a
// nil Trace so callers need not check for one.
func (t *Trace) StartCompletion(ctx context.Context, model string) (context.Context, *Completion) {
	ctx, span := tracer().Start(ctx, "pragent.completion", oteltrace.WithAttributes(
		attribute.String("model", model),
	))
	return ctx, &Completion{Model: model, StartTime: time.Now(), trace: t, span: span}
}

// Complete closes the completion and records token usage on its span.
func (c *Completion) Complete(promptTokens, completionTokens int64, finishReason string, err error) {
	c.PromptTokens = promptTokens
	c.CompletionTokens = completionTokens
	c.FinishReason = finishReason
	c.Error = err
	c.EndTime = time.Now()

	c.span.SetAttributes(
		attribute.Int64("tokens.input", promptTokens),
		attribute.Int64("tokens.output", completionTokens),
		attribute.String("finish_reason", finishReason),
	)
	endSpan(c.span, err)

	if c.trace != nil {
		c.trace.mu.Lock()
		c.trace.Completions = append(c.trace.Completions, c)
		c.trace.mu.Unlock()
	}
}

// Duration of the completion.
func (c *Completion) Duration() time.Duration {
	if c.EndTime.IsZero() {
		return time.Since(c.StartTime)
	}
	return c.EndTime.Sub(c.StartTime)
}

// Complete closes the trace and hands it to the tracer.
func (t *Trace) Complete(err error) {
	t.mu.Lock()
	t.Error = err
	t.EndTime = time.Now()
	t.mu.Unlock()

	endSpan(t.span, err)
	t.tracer.RecordTrace(t)
}

// Duration of the command run.
func (t *Trace) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.EndTime.IsZero() {
		return time.Since(t.StartTime)
	}
	return t.EndTime.Sub(t.StartTime)
}

// Tokens sums the token usage of all completions.
func (t *Trace) Tokens() (prompt, completion int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.Completions {
		prompt += c.PromptTokens
		completion += c.CompletionTokens
	}
	return prompt, completion
}

// String renders the trace for logs.
func (t *Trace) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "=== Trace %s: %s ===\n", t.ID, t.Command)
	if t.Request.Repository != "" {
		fmt.Fprintf(&sb, "PR: %s %s#%d\n", t.Request.Provider, t.Request.Repository, t.Request.Number)
	}
	for i, c := range t.Completions {
		fmt.Fprintf(&sb, "  [%d] %s in=%d out=%d (%v)", i+1, c.Model, c.PromptTokens, c.CompletionTokens, c.Duration().Round(time.Millisecond))
		if c.Error != nil {
			fmt.Fprintf(&sb, " error: %v", c.Error)
		}
		sb.WriteByte('\n')
	}
	if t.Error != nil {
		fmt.Fprintf(&sb, "Error: %v\n", t.Error)
	}
	return sb.String()
}

func endSpan(span oteltrace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
