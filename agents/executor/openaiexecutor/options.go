/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package openaiexecutor

import (
	"fmt"

	"chainguard.dev/pragent/agents/executor/retry"
	"github.com/openai/openai-go"
)

// Option configures an Executor.
type Option func(*Executor) error

// WithReasoningEffort sets the default effort for reasoning models.
func WithReasoningEffort(effort string) Option {
	return func(e *Executor) error {
		switch openai.ReasoningEffort(effort) {
		case openai.ReasoningEffortLow, openai.ReasoningEffortMedium, openai.ReasoningEffortHigh:
			e.reasoningEffort = openai.ReasoningEffort(effort)
			return nil
		}
		return fmt.Errorf("unsupported reasoning effort %q", effort)
	}
}

// WithRetryConfig overrides the backoff used for rate limit and server errors.
func WithRetryConfig(cfg retry.Config) Option {
	return func(e *Executor) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		e.retryConfig = cfg
		return nil
	}
}
