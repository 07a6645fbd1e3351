/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package googleexecutor runs chat completions against Gemini models through
// either the Gemini API or Vertex AI.
package googleexecutor

import (
	"context"
	"fmt"

	"chainguard.dev/pragent/agents/executor"
	"chainguard.dev/pragent/agents/executor/retry"
	"github.com/chainguard-dev/clog"
	"google.golang.org/genai"
)

// Executor implements executor.Interface and tokens.Counter for Gemini models.
type Executor struct {
	client          *genai.Client
	maxOutputTokens int32
	thinkingBudget  *int32
	labels          map[string]string
	retryConfig     retry.Config
}

var _ executor.Interface = (*Executor)(nil)

// New creates an Executor on client.
func New(client *genai.Client, opts ...Option) (*Executor, error) {
	e := &Executor{
		client:          client,
		maxOutputTokens: 8192,
		retryConfig:     retry.DefaultConfig(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return e, nil
}

// Chat generates a single completion.
func (e *Executor) Chat(ctx context.Context, req executor.Request) (executor.Response, error) {
	model := executor.StripRoute(req.Model)
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: e.maxOutputTokens,
		Labels:          e.labels,
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if e.thinkingBudget != nil {
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: e.thinkingBudget}
	}
	contents := []*genai.Content{genai.NewContentFromText(req.User, genai.RoleUser)}

	clog.FromContext(ctx).With("model", model).With("prompt_length", len(req.System)+len(req.User)).Debug("Sending Gemini request")

	out, err := retry.Do(ctx, e.retryConfig, "gemini_generate", isRetryableGeminiError, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		return e.client.Models.GenerateContent(ctx, model, contents, cfg)
	})
	if err != nil {
		return executor.Response{}, fmt.Errorf("failed to generate Gemini response: %w", err)
	}

	resp := executor.Response{Text: out.Text()}
	if len(out.Candidates) > 0 {
		resp.FinishReason = string(out.Candidates[0].FinishReason)
	}
	if u := out.UsageMetadata; u != nil {
		resp.PromptTokens = int64(u.PromptTokenCount)
		resp.CompletionTokens = int64(u.CandidatesTokenCount + u.ThoughtsTokenCount)
	}
	if resp.Text == "" {
		return resp, executor.ErrEmptyResponse
	}
	return resp, nil
}

// CountTokens counts the tokens of text as a single user turn.
func (e *Executor) CountTokens(ctx context.Context, model, text string) (int, error) {
	res, err := e.client.Models.CountTokens(ctx, executor.StripRoute(model), genai.Text(text), nil)
	if err != nil {
		return 0, fmt.Errorf("count tokens: %w", err)
	}
	return int(res.TotalTokens), nil
}
