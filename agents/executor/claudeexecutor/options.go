/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package claudeexecutor

import (
	"fmt"

	"chainguard.dev/pragent/agents/executor/retry"
)

// Option configures an Executor.
type Option func(*Executor) error

// WithMaxTokens sets the default completion cap.
func WithMaxTokens(tokens int64) Option {
	return func(e *Executor) error {
		if tokens <= 0 {
			return fmt.Errorf("max tokens must be positive, got %d", tokens)
		}
		e.maxTokens = tokens
		return nil
	}
}

// WithThinking enables extended thinking with the given budget. The budget
// must be at least 1024 and below the completion cap.
func WithThinking(budgetTokens int64) Option {
	return func(e *Executor) error {
		if budgetTokens < 1024 {
			return fmt.Errorf("thinking budget must be at least 1024, got %d", budgetTokens)
		}
		if budgetTokens >= e.maxTokens {
			return fmt.Errorf("thinking budget (%d) must be less than max tokens (%d)", budgetTokens, e.maxTokens)
		}
		e.thinkingBudget = &budgetTokens
		return nil
	}
}

// WithRetryConfig overrides the backoff used for rate limit and overload errors.
func WithRetryConfig(cfg retry.Config) Option {
	return func(e *Executor) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		e.retryConfig = cfg
		return nil
	}
}
