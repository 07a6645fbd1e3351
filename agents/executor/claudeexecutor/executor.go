/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package claudeexecutor runs chat completions against Anthropic's Messages
// API, directly or through Vertex AI, and counts tokens with the counting
// endpoint.
package claudeexecutor

import (
	"context"
	"fmt"
	"strings"

	"chainguard.dev/pragent/agents/executor"
	"chainguard.dev/pragent/agents/executor/retry"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/chainguard-dev/clog"
)

// Executor implements executor.Interface and tokens.Counter for Claude models.
type Executor struct {
	client         anthropic.Client
	maxTokens      int64
	thinkingBudget *int64
	retryConfig    retry.Config
}

var _ executor.Interface = (*Executor)(nil)

// New creates an Executor on client.
func New(client anthropic.Client, opts ...Option) (*Executor, error) {
	e := &Executor{
		client:      client,
		maxTokens:   8192,
		retryConfig: retry.DefaultConfig(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return e, nil
}

// Chat streams a completion and returns the concatenated text blocks.
func (e *Executor) Chat(ctx context.Context, req executor.Request) (executor.Response, error) {
	model := executor.StripRoute(req.Model)
	maxTokens := e.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if e.thinkingBudget != nil {
		// extended thinking requires temperature 1
		params.Temperature = anthropic.Float(1.0)
		params.Thinking = anthropic.ThinkingConfigParamUnion{
			OfEnabled: &anthropic.ThinkingConfigEnabledParam{BudgetTokens: *e.thinkingBudget},
		}
	}

	clog.FromContext(ctx).With("model", model).With("prompt_length", len(req.System)+len(req.User)).Debug("Sending Claude request")

	msg, err := retry.Do(ctx, e.retryConfig, "claude_stream", isRetryableClaudeError, func(ctx context.Context) (anthropic.Message, error) {
		stream := e.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()
		var msg anthropic.Message
		for stream.Next() {
			if err := msg.Accumulate(stream.Current()); err != nil {
				return msg, fmt.Errorf("failed to accumulate event: %w", err)
			}
		}
		return msg, stream.Err()
	})
	if err != nil {
		return executor.Response{}, fmt.Errorf("failed to stream Claude response: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	resp := executor.Response{
		Text:             text.String(),
		FinishReason:     string(msg.StopReason),
		PromptTokens:     msg.Usage.InputTokens,
		CompletionTokens: msg.Usage.OutputTokens,
	}
	if resp.Text == "" {
		return resp, executor.ErrEmptyResponse
	}
	return resp, nil
}

// CountTokens counts the tokens of text as a single user message.
func (e *Executor) CountTokens(ctx context.Context, model, text string) (int, error) {
	res, err := e.client.Messages.CountTokens(ctx, anthropic.MessageCountTokensParams{
		Model: anthropic.Model(executor.StripRoute(model)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("count tokens: %w", err)
	}
	return int(res.InputTokens), nil
}
