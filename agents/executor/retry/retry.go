/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/chainguard-dev/clog"
)

// Config configures retries of a single model call.
type Config struct {
	// MaxRetries is the number of retries after the first attempt. 0 disables retries.
	MaxRetries int
	// BaseBackoff is the delay before the first retry. It doubles on every retry.
	BaseBackoff time.Duration
	// MaxBackoff caps the doubled delay.
	MaxBackoff time.Duration
	// MaxJitter bounds the random delay added to every backoff.
	MaxJitter time.Duration
}

// Validate reports every negative field.
func (c Config) Validate() error {
	var errs []error
	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.BaseBackoff < 0 {
		errs = append(errs, errors.New("base backoff cannot be negative"))
	}
	if c.MaxBackoff < 0 {
		errs = append(errs, errors.New("max backoff cannot be negative"))
	}
	if c.MaxJitter < 0 {
		errs = append(errs, errors.New("max jitter cannot be negative"))
	}
	return errors.Join(errs...)
}

// DefaultConfig suits provider rate limits, which take seconds to clear.
func DefaultConfig() Config {
	return Config{
		MaxRetries:  5,
		BaseBackoff: time.Second,
		MaxBackoff:  time.Minute,
		MaxJitter:   500 * time.Millisecond,
	}
}

// Backoff returns the delay before retry attempt, without jitter. It never
// exceeds MaxBackoff, however large attempt is.
func (c Config) Backoff(attempt int) time.Duration {
	d := c.BaseBackoff
	for range attempt {
		if d >= c.MaxBackoff {
			break
		}
		if d > c.MaxBackoff/2 {
			d = c.MaxBackoff
			break
		}
		d *= 2
	}
	return min(d, c.MaxBackoff)
}

func (c Config) delay(attempt int) time.Duration {
	d := c.Backoff(attempt)
	if c.MaxJitter > 0 {
		d += rand.N(c.MaxJitter)
	}
	return d
}

// Do calls fn until it succeeds, returns an error isRetryable rejects, or the
// retries run out.
func Do[T any](ctx context.Context, cfg Config, operation string, isRetryable func(error) bool, fn func(context.Context) (T, error)) (T, error) {
	var (
		out T
		err error
	)
	for attempt := 0; ; attempt++ {
		out, err = fn(ctx)
		if err == nil {
			return out, nil
		}
		if !isRetryable(err) {
			return out, err
		}
		if attempt >= cfg.MaxRetries {
			return out, fmt.Errorf("%s failed after %d retries: %w", operation, cfg.MaxRetries, err)
		}

		wait := cfg.delay(attempt)
		clog.FromContext(ctx).With("operation", operation).
			With("attempt", attempt+1).
			With("max_retries", cfg.MaxRetries).
			With("backoff", wait).
			With("error", err.Error()).
			Warn("Retryable model error, backing off")

		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// ErrDeploymentsMismatch is returned when fewer fallback deployments than models are configured.
var ErrDeploymentsMismatch = errors.New("number of deployments does not match number of models")

// Target is one model to try, with the Azure deployment that serves it if any.
type Target struct {
	Model      string
	Deployment string
}

// Targets pairs models with deployments. deployment is the primary deployment
// and fallbacks serve the remaining models in order. Without fallbacks every
// model uses the primary deployment.
func Targets(models []string, deployment string, fallbacks []string) ([]Target, error) {
	deployments := append([]string{deployment}, fallbacks...)
	if len(fallbacks) > 0 && len(deployments) < len(models) {
		return nil, fmt.Errorf("%w: %d models, %d deployments", ErrDeploymentsMismatch, len(models), len(deployments))
	}
	out := make([]Target, 0, len(models))
	for i, m := range models {
		t := Target{Model: m, Deployment: deployment}
		if len(fallbacks) > 0 {
			t.Deployment = deployments[i]
		}
		out = append(out, t)
	}
	return out, nil
}

// WithFallbackModels runs fn against each target in order and returns the
// first success. The returned error names every model that was tried.
func WithFallbackModels[T any](ctx context.Context, targets []Target, fn func(context.Context, Target) (T, error)) (T, error) {
	var (
		zero   T
		errs   []error
		models []string
	)
	for _, t := range targets {
		out, err := fn(ctx, t)
		if err == nil {
			return out, nil
		}
		models = append(models, t.Model)
		errs = append(errs, fmt.Errorf("%s: %w", t.Model, err))
		if ctx.Err() != nil {
			break
		}
		clog.FromContext(ctx).With("model", t.Model).With("error", err.Error()).Warn("Model call failed, trying next fallback")
	}
	return zero, fmt.Errorf("failed to generate prediction with any model of %v: %w", models, errors.Join(errs...))
}
