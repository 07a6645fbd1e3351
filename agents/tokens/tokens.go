/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package tokens

import (
	"context"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/chainguard-dev/clog"
)

// charsPerToken approximates the o200k tokenizer on mixed code and prose.
const charsPerToken = 4.0

// Estimate returns an approximate token count for text.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	return int(math.Ceil(float64(utf8.RuneCountInString(text)) / charsPerToken))
}

// Counter counts tokens exactly using a model provider API.
type Counter interface {
	CountTokens(ctx context.Context, model, text string) (int, error)
}

// Handler counts tokens for one prompt. PromptTokens holds the size of the
// rendered system and user prompts without the diff, so callers can budget the rest.
type Handler struct {
	PromptTokens int

	model          string
	estimateFactor float64
	accurate       bool
	counter        Counter
	fallback       int
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithCounter enables exact counting through an API when the model supports it.
// fallback is returned when the API fails.
func WithCounter(c Counter, fallback int) HandlerOption {
	return func(h *Handler) {
		h.counter = c
		h.fallback = fallback
	}
}

// WithEstimateFactor inflates estimates for models whose tokenizer is unknown.
func WithEstimateFactor(f float64) HandlerOption {
	return func(h *Handler) {
		h.estimateFactor = f
	}
}

// WithAccurateCount makes Measure use CountAccurate.
func WithAccurateCount() HandlerOption {
	return func(h *Handler) {
		h.accurate = true
	}
}

// NewHandler creates a Handler for model whose base prompt is system + user.
func NewHandler(model, system, user string, opts ...HandlerOption) *Handler {
	h := &Handler{model: model}
	for _, opt := range opts {
		opt(h)
	}
	h.PromptTokens = Estimate(system) + Estimate(user)
	return h
}

// Count returns the estimated token count of text.
func (h *Handler) Count(text string) int {
	return Estimate(text)
}

// Measure sizes text that decides whether a whole diff fits the context.
func (h *Handler) Measure(ctx context.Context, text string) int {
	if h.accurate {
		return h.CountAccurate(ctx, text)
	}
	return Estimate(text)
}

// CountAccurate returns a model-aware token count. OpenAI models trust the estimate,
// Claude models use the counting API when a Counter is configured, and other models
// inflate the estimate by the configured factor.
func (h *Handler) CountAccurate(ctx context.Context, text string) int {
	estimate := Estimate(text)
	switch {
	case IsOpenAIModel(h.model):
		return estimate
	case IsAnthropicModel(h.model) && h.counter != nil:
		n, err := h.counter.CountTokens(ctx, h.model, text)
		if err != nil {
			clog.FromContext(ctx).With("error", err).Warn("Token counting API failed, using fallback")
			return h.fallback
		}
		return n
	default:
		return int(math.Ceil((1 + h.estimateFactor) * float64(estimate)))
	}
}

// IsOpenAIModel reports whether model is served by OpenAI.
func IsOpenAIModel(model string) bool {
	m := strings.ToLower(stripRoute(model))
	if strings.Contains(m, "gpt") {
		return true
	}
	return reasoningModel.MatchString(m)
}

// reasoningModel matches OpenAI's o-series names such as o1, o3-mini and
// o1-preview. Dated snapshots are not matched.
var reasoningModel = regexp.MustCompile(`^o[1-9](-mini|-preview)?$`)

// IsAnthropicModel reports whether model is a Claude model.
func IsAnthropicModel(model string) bool {
	return strings.Contains(strings.ToLower(model), "claude")
}
