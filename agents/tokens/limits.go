/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package tokens

import (
	"errors"
	"fmt"
)

// ErrUnknownModel is returned when a model has no known context size and no custom limit is set.
var ErrUnknownModel = errors.New("model context size is unknown, set config.custom_model_max_tokens")

// contextWindows maps model names to their context sizes.
var contextWindows = map[string]int{
	"gpt-4":                    8000,
	"gpt-4-32k":                32000,
	"gpt-4-turbo":              128000,
	"gpt-4o":                   128000,
	"gpt-4o-2024-08-06":        128000,
	"gpt-4o-2024-11-20":        128000,
	"gpt-4o-mini":              128000,
	"gpt-4.1":                  1047576,
	"gpt-4.1-2025-04-14":       1047576,
	"gpt-4.1-mini":             1047576,
	"gpt-4.1-nano":             1047576,
	"gpt-5":                    200000,
	"gpt-5-mini":               200000,
	"gpt-5-nano":               200000,
	"o1":                       204800,
	"o1-mini":                  128000,
	"o3":                       200000,
	"o3-mini":                  204800,
	"o4-mini":                  200000,
	"o4-mini-2025-04-16":       200000,
	"claude-3-5-haiku-latest":  200000,
	"claude-3-7-sonnet-latest": 200000,
	"claude-sonnet-4-20250514": 200000,
	"claude-sonnet-4-5":        200000,
	"claude-sonnet-4@20250514": 200000,
	"claude-opus-4-20250514":   200000,
	"claude-opus-4-1":          200000,
	"claude-haiku-4-5":         200000,
	"gemini-1.5-pro":           1048576,
	"gemini-1.5-flash":         1048576,
	"gemini-2.0-flash":         1048576,
	"gemini-2.5-flash":         1048576,
	"gemini-2.5-pro":           1048576,
}

// Limits carries the settings that bound a model's usable context.
type Limits struct {
	// CustomModelMaxTokens is used for models missing from the table when positive.
	CustomModelMaxTokens int
	// MaxModelTokens caps every model when positive.
	MaxModelTokens int
}

// MaxTokens returns the usable context size of model.
func MaxTokens(model string, limits Limits) (int, error) {
	n, ok := contextWindows[model]
	if !ok {
		n, ok = contextWindows[stripRoute(model)]
	}
	if !ok {
		if limits.CustomModelMaxTokens <= 0 {
			return 0, fmt.Errorf("%w: %s", ErrUnknownModel, model)
		}
		n = limits.CustomModelMaxTokens
	}
	if limits.MaxModelTokens > 0 {
		n = min(n, limits.MaxModelTokens)
	}
	return n, nil
}

// stripRoute drops a provider route such as "anthropic/" or "vertex_ai/".
func stripRoute(model string) string {
	for i := len(model) - 1; i >= 0; i-- {
		if model[i] == '/' {
			return model[i+1:]
		}
	}
	return model
}
