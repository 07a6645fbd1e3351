/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agenttrace_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"chainguard.dev/pragent/agents/agenttrace"
	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/attribute"
)

func TestTraceRecordsCompletions(t *testing.T) {
	t.Parallel()

	var recorded []*agenttrace.Trace
	ctx := agenttrace.WithTracer(context.Background(), agenttrace.ByCode(func(tr *agenttrace.Trace) {
		recorded = append(recorded, tr)
	}))
	ctx = agenttrace.WithRequestContext(ctx, agenttrace.RequestContext{
		Provider:   "github",
		Repository: "octo/repo",
		Number:     7,
		Command:    "review",
	})

	ctx, trace := agenttrace.StartTrace(ctx, "review")
	if agenttrace.FromContext(ctx) != trace {
		t.Fatal("FromContext() did not return the started trace")
	}

	_, c1 := trace.StartCompletion(ctx, "gpt-4.1")
	c1.Complete(0, 0, "", errors.New("rate limited"))
	_, c2 := trace.StartCompletion(ctx, "o4-mini")
	c2.Complete(1000, 250, "stop", nil)
	trace.Complete(nil)

	if len(recorded) != 1 {
		t.Fatalf("recorded %d traces, want 1", len(recorded))
	}
	got := recorded[0]
	if len(got.Completions) != 2 {
		t.Fatalf("Completions = %d, want 2", len(got.Completions))
	}
	if p, c := got.Tokens(); p != 1000 || c != 250 {
		t.Errorf("Tokens() = (%d, %d), want (1000, 250)", p, c)
	}
	if s := got.String(); !strings.Contains(s, "octo/repo#7") || !strings.Contains(s, "rate limited") {
		t.Errorf("String() = %q", s)
	}
}

func TestCompletionWithoutTrace(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, c := agenttrace.FromContext(ctx).StartCompletion(ctx, "claude-sonnet-4-5")
	c.Complete(10, 5, "end_turn", nil)
	if c.Duration() < 0 {
		t.Error("Duration() is negative")
	}
}

func TestDefaultTracer(t *testing.T) {
	t.Parallel()

	_, trace := agenttrace.StartTrace(context.Background(), "describe")
	trace.Complete(errors.New("boom"))
	if trace.Error == nil {
		t.Error("Error = nil after Complete(err)")
	}
}

func TestEnrichAttributes(t *testing.T) {
	t.Parallel()

	rc := agenttrace.RequestContext{
		Provider:   "gitlab",
		Repository: "group/project",
		Number:     12,
		Command:    "improve",
		CommitSHA:  "abc123",
	}
	base := []attribute.KeyValue{attribute.String("model", "gpt-4.1")}
	got := rc.EnrichAttributes(base)
	want := []attribute.KeyValue{
		attribute.String("model", "gpt-4.1"),
		attribute.String("provider", "gitlab"),
		attribute.String("repository", "group/project"),
		attribute.String("command", "improve"),
	}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(attribute.Value{})); diff != "" {
		t.Errorf("EnrichAttributes() (-want +got):\n%s", diff)
	}
	if len(base) != 1 {
		t.Error("EnrichAttributes() modified its input")
	}
}

func TestGetRequestContextEmpty(t *testing.T) {
	t.Parallel()

	if got := agenttrace.GetRequestContext(context.Background()); got != (agenttrace.RequestContext{}) {
		t.Errorf("GetRequestContext() = %+v, want zero", got)
	}
}
