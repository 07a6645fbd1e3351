/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package googleexecutor

import (
	"fmt"
	"maps"
	"os"

	"chainguard.dev/pragent/agents/executor/retry"
)

// Option configures an Executor.
type Option func(*Executor) error

// WithMaxOutputTokens sets the default completion cap.
func WithMaxOutputTokens(tokens int32) Option {
	return func(e *Executor) error {
		if tokens <= 0 {
			return fmt.Errorf("max output tokens must be positive, got %d", tokens)
		}
		e.maxOutputTokens = tokens
		return nil
	}
}

// WithThinking sets the thinking budget. -1 lets the model decide.
func WithThinking(budgetTokens int32) Option {
	return func(e *Executor) error {
		if budgetTokens != -1 && budgetTokens <= 0 {
			return fmt.Errorf("thinking budget must be positive (or -1 for dynamic), got %d", budgetTokens)
		}
		if budgetTokens >= e.maxOutputTokens {
			return fmt.Errorf("thinking budget (%d) must be less than max_output_tokens (%d)", budgetTokens, e.maxOutputTokens)
		}
		e.thinkingBudget = &budgetTokens
		return nil
	}
}

// WithRetryConfig overrides the backoff used for quota and server errors.
func WithRetryConfig(cfg retry.Config) Option {
	return func(e *Executor) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		e.retryConfig = cfg
		return nil
	}
}

// WithResourceLabels attaches billing labels to every Vertex AI request.
// service_name defaults to K_SERVICE; labels override it.
func WithResourceLabels(labels map[string]string) Option {
	return func(e *Executor) error {
		service := os.Getenv("K_SERVICE")
		if service == "" {
			service = "unknown"
		}
		e.labels = map[string]string{"service_name": service}
		maps.Copy(e.labels, labels)
		return nil
	}
}
