/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package langchainexecutor runs chat completions through any langchaingo
// model, which covers self-hosted OpenAI compatible servers and Ollama.
package langchainexecutor

import (
	"context"
	"fmt"

	"chainguard.dev/pragent/agents/executor"
	"chainguard.dev/pragent/agents/executor/retry"
	"github.com/chainguard-dev/clog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Executor implements executor.Interface on a langchaingo model.
type Executor struct {
	model       llms.Model
	errors      *llms.ErrorMapper
	retryConfig retry.Config
}

var _ executor.Interface = (*Executor)(nil)

// New creates an Executor on model.
func New(model llms.Model, opts ...Option) (*Executor, error) {
	e := &Executor{
		model:       model,
		errors:      llms.NewErrorMapper("langchain"),
		retryConfig: retry.DefaultConfig(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return e, nil
}

// NewOpenAICompatible creates an Executor for an OpenAI compatible endpoint.
func NewOpenAICompatible(baseURL, token string, opts ...Option) (*Executor, error) {
	model, err := openai.New(openai.WithBaseURL(baseURL), openai.WithToken(token))
	if err != nil {
		return nil, fmt.Errorf("creating langchain openai model: %w", err)
	}
	return New(model, opts...)
}

// NewOllama creates an Executor for an Ollama server.
func NewOllama(serverURL string, opts ...Option) (*Executor, error) {
	model, err := ollama.New(ollama.WithServerURL(serverURL))
	if err != nil {
		return nil, fmt.Errorf("creating ollama model: %w", err)
	}
	return New(model, opts...)
}

// Chat sends a system and a human message.
func (e *Executor) Chat(ctx context.Context, req executor.Request) (executor.Response, error) {
	model := executor.StripRoute(req.Model)
	var messages []llms.MessageContent
	if req.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.User))

	callOpts := []llms.CallOption{llms.WithModel(model), llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(int(req.MaxTokens)))
	}

	clog.FromContext(ctx).With("model", model).Debug("Sending langchain request")

	out, err := retry.Do(ctx, e.retryConfig, "langchain_generate", e.isRetryable, func(ctx context.Context) (*llms.ContentResponse, error) {
		return e.model.GenerateContent(ctx, messages, callOpts...)
	})
	if err != nil {
		return executor.Response{}, fmt.Errorf("failed to generate langchain response: %w", err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Content == "" {
		return executor.Response{}, executor.ErrEmptyResponse
	}
	choice := out.Choices[0]
	return executor.Response{
		Text:             choice.Content,
		FinishReason:     choice.StopReason,
		PromptTokens:     usage(choice.GenerationInfo, "PromptTokens"),
		CompletionTokens: usage(choice.GenerationInfo, "CompletionTokens"),
	}, nil
}

func (e *Executor) isRetryable(err error) bool {
	err = e.errors.WrapError(err)
	return llms.IsRateLimitError(err) || llms.IsProviderUnavailableError(err)
}

// usage reads a token count that backends report with differing int types.
func usage(info map[string]any, key string) int64 {
	switch v := info[key].(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

// Option configures an Executor.
type Option func(*Executor) error

// WithRetryConfig overrides the backoff used for rate limit and availability errors.
func WithRetryConfig(cfg retry.Config) Option {
	return func(e *Executor) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		e.retryConfig = cfg
		return nil
	}
}
