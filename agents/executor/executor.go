/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package executor defines the chat completion contract every model provider
// implements. Provider implementations live in the sub-packages.
package executor

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyResponse is returned when a model produced no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Request is a single system + user completion.
type Request struct {
	Model string
	// Deployment selects the Azure OpenAI deployment serving Model.
	Deployment  string
	System      string
	User        string
	Temperature float64
	// MaxTokens caps the completion length. Zero uses the executor default.
	MaxTokens int64
	// ReasoningEffort is passed to reasoning models ("low", "medium", "high").
	ReasoningEffort string
}

// Response is the text a model returned and what it cost.
type Response struct {
	Text             string
	FinishReason     string
	PromptTokens     int64
	CompletionTokens int64
}

// Interface is implemented by every model provider.
type Interface interface {
	Chat(ctx context.Context, req Request) (Response, error)
}

// Func adapts a function into an Interface.
type Func func(ctx context.Context, req Request) (Response, error)

// Chat implements Interface.
func (f Func) Chat(ctx context.Context, req Request) (Response, error) { return f(ctx, req) }

// StripRoute removes a provider route such as "anthropic/" from a model name.
func StripRoute(model string) string {
	if i := strings.LastIndexByte(model, '/'); i >= 0 {
		return model[i+1:]
	}
	return model
}
