/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package claudeexecutor

import (
	"errors"
	"fmt"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
)

func TestIsRetryableClaudeError(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		err  error
		want bool
	}{
		"nil":                {err: nil},
		"transport":          {err: errors.New("connection reset by peer")},
		"rate limited":       {err: &anthropic.Error{StatusCode: 429}, want: true},
		"unavailable":        {err: &anthropic.Error{StatusCode: 503}, want: true},
		"gateway timeout":    {err: &anthropic.Error{StatusCode: 504}, want: true},
		"overloaded":         {err: &anthropic.Error{StatusCode: 529}, want: true},
		"wrapped overloaded": {err: fmt.Errorf("stream: %w", &anthropic.Error{StatusCode: 529}), want: true},
		"bad request":        {err: &anthropic.Error{StatusCode: 400}},
		"unauthorized":       {err: &anthropic.Error{StatusCode: 401}},
		"internal":           {err: &anthropic.Error{StatusCode: 500}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if got := isRetryableClaudeError(tt.err); got != tt.want {
				t.Errorf("isRetryableClaudeError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
