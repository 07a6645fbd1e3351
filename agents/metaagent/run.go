/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metaagent

import (
	"context"

	"chainguard.dev/pragent/agents/executor"
	"chainguard.dev/pragent/agents/executor/retry"
	"chainguard.dev/pragent/agents/tokens"
)

// Call is one attempt of a Run against a single model.
type Call struct {
	retry.Target
	router *Router
}

// Chat sends system and user to the call's model.
func (c Call) Chat(ctx context.Context, system, user string) (executor.Response, error) {
	return c.router.Chat(ctx, executor.Request{
		Model:      c.Model,
		Deployment: c.Deployment,
		System:     system,
		User:       user,
	})
}

// MaxTokens returns the usable context size of the call's model.
func (c Call) MaxTokens() (int, error) {
	return tokens.MaxTokens(c.Model, c.router.cfg.Limits)
}

// TokenHandler returns a token handler for a prompt sent to the call's model.
func (c Call) TokenHandler(ctx context.Context, system, user string) *tokens.Handler {
	return c.router.TokenHandler(ctx, c.Model, system, user)
}

// Run calls fn with each of models in order until one succeeds. Azure
// deployments are paired with models from the configuration.
func Run[T any](ctx context.Context, r *Router, models []string, fn func(context.Context, Call) (T, error)) (T, error) {
	targets, err := retry.Targets(models, r.cfg.Deployment, r.cfg.FallbackDeployments)
	if err != nil {
		var zero T
		return zero, err
	}
	return retry.WithFallbackModels(ctx, targets, func(ctx context.Context, t retry.Target) (T, error) {
		return fn(ctx, Call{Target: t, router: r})
	})
}
