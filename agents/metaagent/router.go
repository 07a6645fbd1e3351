/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package metaagent routes model calls to the provider that serves each model
// and runs calls across the configured fallback models.
package metaagent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"chainguard.dev/pragent/agents/agenttrace"
	"chainguard.dev/pragent/agents/executor"
	"chainguard.dev/pragent/agents/metrics"
	"chainguard.dev/pragent/agents/tokens"
	"github.com/chainguard-dev/clog"
)

// Provider names the backend serving a model.
type Provider string

const (
	ProviderOpenAI       Provider = "openai"
	ProviderAzure        Provider = "azure"
	ProviderClaude       Provider = "anthropic"
	ProviderClaudeVertex Provider = "vertex_ai_claude"
	ProviderGoogle       Provider = "google"
	ProviderLangchain    Provider = "langchain"
	ProviderOllama       Provider = "ollama"
)

// ProviderFor picks the backend for model. apiType is openai.api_type.
func ProviderFor(model, apiType string) Provider {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "ollama/"):
		return ProviderOllama
	case strings.HasPrefix(m, "langchain/"):
		return ProviderLangchain
	case strings.HasPrefix(m, "vertex_ai/") && strings.Contains(m, "claude"):
		return ProviderClaudeVertex
	case strings.HasPrefix(m, "anthropic/"), strings.HasPrefix(m, "claude"):
		return ProviderClaude
	case strings.HasPrefix(m, "gemini/"), strings.HasPrefix(m, "google/"), strings.HasPrefix(m, "vertex_ai/"), strings.HasPrefix(m, "gemini"):
		return ProviderGoogle
	case strings.HasPrefix(m, "azure/"), strings.EqualFold(apiType, "azure"):
		return ProviderAzure
	}
	return ProviderOpenAI
}

// Router lazily builds one executor per provider and sends requests to them.
type Router struct {
	cfg      Config
	recorder *metrics.Recorder

	mu        sync.Mutex
	executors map[Provider]executor.Interface
}

// Option configures a Router.
type Option func(*Router)

// WithExecutor serves provider with exec instead of building a client.
func WithExecutor(provider Provider, exec executor.Interface) Option {
	return func(r *Router) {
		r.executors[provider] = exec
	}
}

// WithRecorder records token and latency metrics on rec.
func WithRecorder(rec *metrics.Recorder) Option {
	return func(r *Router) {
		r.recorder = rec
	}
}

// New creates a Router for cfg.
func New(cfg Config, opts ...Option) *Router {
	r := &Router{
		cfg:       cfg,
		recorder:  metrics.New(metrics.MeterName),
		executors: make(map[Provider]executor.Interface),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the configuration the router was built with.
func (r *Router) Config() Config { return r.cfg }

// Executor returns the executor serving model, building it on first use.
func (r *Router) Executor(ctx context.Context, model string) (executor.Interface, error) {
	p := ProviderFor(model, r.cfg.OpenAIAPIType)
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.executors[p]; ok {
		return e, nil
	}
	e, err := build(ctx, p, r.cfg)
	if err != nil {
		return nil, fmt.Errorf("creating %s executor for %s: %w", p, model, err)
	}
	r.executors[p] = e
	return e, nil
}

// TokenHandler returns a token handler for a prompt sent to model. Claude
// models get exact counts when their executor can count tokens.
func (r *Router) TokenHandler(ctx context.Context, model, system, user string) *tokens.Handler {
	opts := []tokens.HandlerOption{tokens.WithEstimateFactor(r.cfg.EstimateFactor)}
	if !r.cfg.AccurateTokenCount {
		return tokens.NewHandler(model, system, user, opts...)
	}
	opts = append(opts, tokens.WithAccurateCount())
	if tokens.IsAnthropicModel(model) && (r.cfg.AnthropicKey != "" || r.cfg.VertexProject != "") {
		if e, err := r.Executor(ctx, model); err == nil {
			if c, ok := e.(tokens.Counter); ok {
				fallback := tokens.Estimate(system) + tokens.Estimate(user)
				opts = append(opts, tokens.WithCounter(c, fallback))
			}
		}
	}
	return tokens.NewHandler(model, system, user, opts...)
}

// Chat sends req to the executor serving req.Model. Unset temperature and
// reasoning effort come from the configuration.
func (r *Router) Chat(ctx context.Context, req executor.Request) (executor.Response, error) {
	e, err := r.Executor(ctx, req.Model)
	if err != nil {
		return executor.Response{}, err
	}
	if req.Temperature == 0 {
		req.Temperature = r.cfg.Temperature
	}
	if req.ReasoningEffort == "" {
		req.ReasoningEffort = r.cfg.ReasoningEffort
	}
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	ctx, completion := agenttrace.FromContext(ctx).StartCompletion(ctx, req.Model)
	start := time.Now()
	resp, err := e.Chat(ctx, req)
	completion.Complete(resp.PromptTokens, resp.CompletionTokens, resp.FinishReason, err)
	r.recorder.RecordModelCall(ctx, req.Model, time.Since(start), err)
	if err != nil {
		return resp, err
	}
	r.recorder.RecordTokens(ctx, req.Model, resp.PromptTokens, resp.CompletionTokens)

	clog.FromContext(ctx).With("model", req.Model).
		With("prompt_tokens", resp.PromptTokens).
		With("completion_tokens", resp.CompletionTokens).
		With("finish_reason", resp.FinishReason).
		Info("Model call finished")
	return resp, nil
}
