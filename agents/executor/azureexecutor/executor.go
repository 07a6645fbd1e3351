/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package azureexecutor runs chat completions against Azure OpenAI
// deployments. Each request names the deployment serving its model.
package azureexecutor

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"chainguard.dev/pragent/agents/executor"
	"chainguard.dev/pragent/agents/executor/openaiexecutor"
	"chainguard.dev/pragent/agents/executor/retry"
	"github.com/chainguard-dev/clog"
	"github.com/sashabaranov/go-openai"
)

// Executor implements executor.Interface for Azure OpenAI.
type Executor struct {
	client            *openai.Client
	defaultDeployment string
	retryConfig       retry.Config
}

var _ executor.Interface = (*Executor)(nil)

// Config returns a client configuration for the Azure resource at baseURL.
// The deployment named in each request is used verbatim.
func Config(apiKey, baseURL, apiVersion string) openai.ClientConfig {
	cfg := openai.DefaultAzureConfig(apiKey, baseURL)
	if apiVersion != "" {
		cfg.APIVersion = apiVersion
	}
	cfg.AzureModelMapperFunc = func(deployment string) string { return deployment }
	return cfg
}

// New creates an Executor. defaultDeployment serves requests that name none.
func New(cfg openai.ClientConfig, defaultDeployment string, opts ...Option) (*Executor, error) {
	e := &Executor{
		client:            openai.NewClientWithConfig(cfg),
		defaultDeployment: defaultDeployment,
		retryConfig:       retry.DefaultConfig(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return e, nil
}

// Chat sends one system and one user message to the request's deployment.
func (e *Executor) Chat(ctx context.Context, req executor.Request) (executor.Response, error) {
	model := executor.StripRoute(req.Model)
	deployment := req.Deployment
	if deployment == "" {
		deployment = e.defaultDeployment
	}
	if deployment == "" {
		return executor.Response{}, fmt.Errorf("no Azure deployment configured for model %s", model)
	}

	creq := openai.ChatCompletionRequest{
		Model:               deployment,
		MaxCompletionTokens: int(req.MaxTokens),
	}
	if req.System != "" {
		creq.Messages = append(creq.Messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	creq.Messages = append(creq.Messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})
	if openaiexecutor.IsReasoningModel(model) {
		creq.ReasoningEffort = req.ReasoningEffort
	} else {
		creq.Temperature = float32(req.Temperature)
	}

	clog.FromContext(ctx).With("model", model).With("deployment", deployment).Debug("Sending Azure OpenAI request")

	out, err := retry.Do(ctx, e.retryConfig, "azure_chat", isRetryableAzureError, func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		return e.client.CreateChatCompletion(ctx, creq)
	})
	if err != nil {
		return executor.Response{}, fmt.Errorf("failed to create Azure completion: %w", err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return executor.Response{}, executor.ErrEmptyResponse
	}
	return executor.Response{
		Text:             out.Choices[0].Message.Content,
		FinishReason:     string(out.Choices[0].FinishReason),
		PromptTokens:     int64(out.Usage.PromptTokens),
		CompletionTokens: int64(out.Usage.CompletionTokens),
	}, nil
}

func isRetryableAzureError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= http.StatusInternalServerError
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= http.StatusInternalServerError
	}
	return false
}

// Option configures an Executor.
type Option func(*Executor) error

// WithRetryConfig overrides the backoff used for throttling and server errors.
func WithRetryConfig(cfg retry.Config) Option {
	return func(e *Executor) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		e.retryConfig = cfg
		return nil
	}
}
