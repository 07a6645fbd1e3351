/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metaagent_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"chainguard.dev/pragent/agents/agenttrace"
	"chainguard.dev/pragent/agents/executor"
	"chainguard.dev/pragent/agents/executor/retry"
	"chainguard.dev/pragent/agents/metaagent"
	"chainguard.dev/pragent/settings"
	"github.com/google/go-cmp/cmp"
)

func TestProviderFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model   string
		apiType string
		want    metaagent.Provider
	}{
		{model: "gpt-4.1", want: metaagent.ProviderOpenAI},
		{model: "o4-mini", want: metaagent.ProviderOpenAI},
		{model: "gpt-4.1", apiType: "azure", want: metaagent.ProviderAzure},
		{model: "azure/gpt-4o", want: metaagent.ProviderAzure},
		{model: "claude-sonnet-4-5", want: metaagent.ProviderClaude},
		{model: "anthropic/claude-opus-4-1", want: metaagent.ProviderClaude},
		{model: "vertex_ai/claude-sonnet-4@20250514", want: metaagent.ProviderClaudeVertex},
		{model: "vertex_ai/gemini-2.5-pro", want: metaagent.ProviderGoogle},
		{model: "gemini/gemini-2.5-flash", want: metaagent.ProviderGoogle},
		{model: "gemini-2.5-pro", want: metaagent.ProviderGoogle},
		{model: "ollama/llama3", want: metaagent.ProviderOllama},
		{model: "langchain/qwen", want: metaagent.ProviderLangchain},
	}
	for _, tt := range tests {
		if got := metaagent.ProviderFor(tt.model, tt.apiType); got != tt.want {
			t.Errorf("ProviderFor(%q, %q) = %q, want %q", tt.model, tt.apiType, got, tt.want)
		}
	}
}

// recorder is an executor that records requests and fails for listed models.
type recorder struct {
	fail map[string]bool
	reqs []executor.Request
}

func (r *recorder) Chat(_ context.Context, req executor.Request) (executor.Response, error) {
	r.reqs = append(r.reqs, req)
	if r.fail[req.Model] {
		return executor.Response{}, errors.New("boom")
	}
	return executor.Response{Text: "ok from " + req.Model, PromptTokens: 3, CompletionTokens: 2}, nil
}

func TestRunFallback(t *testing.T) {
	t.Parallel()

	rec := &recorder{fail: map[string]bool{"gpt-4.1": true}}
	r := metaagent.New(metaagent.Config{Temperature: 0.2, ReasoningEffort: "low"},
		metaagent.WithExecutor(metaagent.ProviderOpenAI, rec))

	var traced *agenttrace.Trace
	ctx := agenttrace.WithTracer(context.Background(), agenttrace.ByCode(func(tr *agenttrace.Trace) { traced = tr }))
	ctx, trace := agenttrace.StartTrace(ctx, "review")

	got, err := metaagent.Run(ctx, r, []string{"gpt-4.1", "o4-mini"}, func(ctx context.Context, c metaagent.Call) (string, error) {
		resp, err := c.Chat(ctx, "sys", "usr")
		return resp.Text, err
	})
	trace.Complete(err)
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if got != "ok from o4-mini" {
		t.Errorf("Run() = %q", got)
	}

	want := []executor.Request{
		{Model: "gpt-4.1", System: "sys", User: "usr", Temperature: 0.2, ReasoningEffort: "low"},
		{Model: "o4-mini", System: "sys", User: "usr", Temperature: 0.2, ReasoningEffort: "low"},
	}
	if diff := cmp.Diff(want, rec.reqs); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
	if traced == nil || len(traced.Completions) != 2 {
		t.Fatalf("trace = %v, want 2 completions", traced)
	}
	if p, c := traced.Tokens(); p != 3 || c != 2 {
		t.Errorf("trace tokens = (%d, %d), want (3, 2)", p, c)
	}
}

func TestRunAllFail(t *testing.T) {
	t.Parallel()

	rec := &recorder{fail: map[string]bool{"gpt-4.1": true, "o4-mini": true}}
	r := metaagent.New(metaagent.Config{}, metaagent.WithExecutor(metaagent.ProviderOpenAI, rec))
	_, err := metaagent.Run(context.Background(), r, []string{"gpt-4.1", "o4-mini"}, func(ctx context.Context, c metaagent.Call) (string, error) {
		resp, err := c.Chat(ctx, "", "u")
		return resp.Text, err
	})
	if err == nil || !strings.Contains(err.Error(), "[gpt-4.1 o4-mini]") {
		t.Errorf("Run() = %v, want error naming both models", err)
	}
}

func TestRunDeployments(t *testing.T) {
	t.Parallel()

	rec := &recorder{fail: map[string]bool{"gpt-4.1": true}}
	cfg := metaagent.Config{OpenAIAPIType: "azure", Deployment: "primary", FallbackDeployments: []string{"secondary"}}
	r := metaagent.New(cfg, metaagent.WithExecutor(metaagent.ProviderAzure, rec))
	if _, err := metaagent.Run(context.Background(), r, []string{"gpt-4.1", "gpt-4o"}, func(ctx context.Context, c metaagent.Call) (string, error) {
		resp, err := c.Chat(ctx, "", "u")
		return resp.Text, err
	}); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if len(rec.reqs) != 2 || rec.reqs[0].Deployment != "primary" || rec.reqs[1].Deployment != "secondary" {
		t.Errorf("deployments = %+v", rec.reqs)
	}

	_, err := metaagent.Run(context.Background(), r, []string{"a", "b", "c"}, func(context.Context, metaagent.Call) (string, error) {
		return "", nil
	})
	if !errors.Is(err, retry.ErrDeploymentsMismatch) {
		t.Errorf("Run() = %v, want %v", err, retry.ErrDeploymentsMismatch)
	}
}

func TestExecutorMissingCredentials(t *testing.T) {
	t.Parallel()

	r := metaagent.New(metaagent.Config{})
	for _, model := range []string{"gpt-4.1", "claude-sonnet-4-5", "gemini-2.5-pro", "vertex_ai/claude-sonnet-4@20250514"} {
		if _, err := r.Executor(context.Background(), model); err == nil {
			t.Errorf("Executor(%q) = nil error, want missing credentials", model)
		}
	}
}

func TestCallMaxTokens(t *testing.T) {
	t.Parallel()

	store := settings.MustLoad()
	r := metaagent.New(metaagent.ConfigFromStore(store), metaagent.WithExecutor(metaagent.ProviderOpenAI, &recorder{}))
	n, err := metaagent.Run(context.Background(), r, []string{"gpt-4o"}, func(_ context.Context, c metaagent.Call) (int, error) {
		return c.MaxTokens()
	})
	if err != nil {
		t.Fatalf("MaxTokens() = %v", err)
	}
	if n != 32000 {
		t.Errorf("MaxTokens() = %d, want the max_model_tokens cap 32000", n)
	}
}

func TestTokenHandlerAccurateCount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	text := strings.Repeat("x", 400)
	for _, tt := range []struct {
		name string
		toml string
		want int
	}{
		{name: "estimate by default", want: 100},
		{name: "accurate count", toml: "[config]\naccurate_token_count = true\n", want: 130},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store, err := settings.Load(settings.WithTOML(tt.toml))
			if err != nil {
				t.Fatalf("Load() = %v", err)
			}
			r := metaagent.New(metaagent.ConfigFromStore(store))
			if got := r.TokenHandler(ctx, "gemini-2.5-pro", "", "").Measure(ctx, text); got != tt.want {
				t.Errorf("Measure() = %d, want %d", got, tt.want)
			}
		})
	}
}
