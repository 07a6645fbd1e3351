/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package openaiexecutor runs chat completions against the OpenAI API or any
// server that speaks its chat completions protocol.
package openaiexecutor

import (
	"context"
	"fmt"
	"strings"

	"chainguard.dev/pragent/agents/executor"
	"chainguard.dev/pragent/agents/executor/retry"
	"github.com/chainguard-dev/clog"
	"github.com/openai/openai-go"
)

// Executor implements executor.Interface for OpenAI models.
type Executor struct {
	client          openai.Client
	reasoningEffort openai.ReasoningEffort
	retryConfig     retry.Config
}

var _ executor.Interface = (*Executor)(nil)

// New creates an Executor on client.
func New(client openai.Client, opts ...Option) (*Executor, error) {
	e := &Executor{
		client:          client,
		reasoningEffort: openai.ReasoningEffortMedium,
		retryConfig:     retry.DefaultConfig(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return e, nil
}

// Chat sends one system and one user message.
func (e *Executor) Chat(ctx context.Context, req executor.Request) (executor.Response, error) {
	model := executor.StripRoute(req.Model)
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: Messages(model, req.System, req.User),
	}
	if IsReasoningModel(model) {
		params.ReasoningEffort = e.reasoningEffort
		if req.ReasoningEffort != "" {
			params.ReasoningEffort = openai.ReasoningEffort(req.ReasoningEffort)
		}
	} else {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(req.MaxTokens)
	}

	clog.FromContext(ctx).With("model", model).With("prompt_length", len(req.System)+len(req.User)).Debug("Sending OpenAI request")

	out, err := retry.Do(ctx, e.retryConfig, "openai_chat", isRetryableOpenAIError, func(ctx context.Context) (*openai.ChatCompletion, error) {
		return e.client.Chat.Completions.New(ctx, params)
	})
	if err != nil {
		return executor.Response{}, fmt.Errorf("failed to create OpenAI completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return executor.Response{}, executor.ErrEmptyResponse
	}
	resp := executor.Response{
		Text:             out.Choices[0].Message.Content,
		FinishReason:     out.Choices[0].FinishReason,
		PromptTokens:     out.Usage.PromptTokens,
		CompletionTokens: out.Usage.CompletionTokens,
	}
	if resp.Text == "" {
		return resp, executor.ErrEmptyResponse
	}
	return resp, nil
}

// reasoningPrefixes are the model families that reject temperature.
var reasoningPrefixes = []string{"o1", "o3", "o4", "gpt-5"}

// IsReasoningModel reports whether model takes reasoning_effort instead of temperature.
func IsReasoningModel(model string) bool {
	model = executor.StripRoute(model)
	for _, p := range reasoningPrefixes {
		if model == p || strings.HasPrefix(model, p+"-") {
			return true
		}
	}
	return false
}

// noSystemModels accept only user messages.
var noSystemModels = map[string]bool{
	"o1-mini":               true,
	"o1-mini-2024-09-12":    true,
	"o1-preview":            true,
	"o1-preview-2024-09-12": true,
}

// Messages builds the conversation for model. Models without a system role get
// the system prompt folded into the user message.
func Messages(model, system, user string) []openai.ChatCompletionMessageParamUnion {
	if system == "" {
		return []openai.ChatCompletionMessageParamUnion{openai.UserMessage(user)}
	}
	if noSystemModels[executor.StripRoute(model)] {
		return []openai.ChatCompletionMessageParamUnion{openai.UserMessage(system + "\n\n\n" + user)}
	}
	return []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(system),
		openai.UserMessage(user),
	}
}
