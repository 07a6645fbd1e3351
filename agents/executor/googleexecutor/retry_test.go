/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package googleexecutor

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/genai"
)

func TestIsRetryableGeminiError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil"},
		{name: "quota", err: genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}, want: true},
		{name: "wrapped unavailable", err: fmt.Errorf("generate: %w", genai.APIError{Code: 503}), want: true},
		{name: "internal", err: genai.APIError{Code: 500}, want: true},
		{name: "invalid argument", err: genai.APIError{Code: 400, Status: "INVALID_ARGUMENT"}},
		{name: "permission denied", err: genai.APIError{Code: 403}},
		{name: "quota in message", err: errors.New("rpc error: RESOURCE_EXHAUSTED"), want: true},
		{name: "other", err: errors.New("dial tcp: connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isRetryableGeminiError(tt.err); got != tt.want {
				t.Errorf("isRetryableGeminiError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
