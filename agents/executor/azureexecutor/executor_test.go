/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package azureexecutor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"chainguard.dev/pragent/agents/executor"
	"chainguard.dev/pragent/agents/executor/retry"
	"github.com/sashabaranov/go-openai"
)

func TestChatUsesDeployment(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path+"?"+r.URL.RawQuery)
		first := len(paths) == 1
		mu.Unlock()
		if first {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error": {"code": "429", "message": "throttled"}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "1", "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "hi"}}], "usage": {"prompt_tokens": 4, "completion_tokens": 1}}`)
	}))
	defer srv.Close()

	e, err := New(Config("key", srv.URL, "2024-10-21"), "fallback-deploy", WithRetryConfig(retry.Config{
		MaxRetries:  1,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  time.Millisecond,
	}))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := e.Chat(context.Background(), executor.Request{
		Model:      "azure/gpt-4.1",
		Deployment: "gpt41-prod",
		System:     "s",
		User:       "u",
	})
	if err != nil {
		t.Fatalf("Chat() = %v", err)
	}
	if resp.Text != "hi" || resp.PromptTokens != 4 || resp.CompletionTokens != 1 {
		t.Errorf("Chat() = %+v", resp)
	}
	mu.Lock()
	defer mu.Unlock()
	want := "/openai/deployments/gpt41-prod/chat/completions?api-version=2024-10-21"
	if len(paths) != 2 || paths[1] != want {
		t.Errorf("paths = %v, want second %q", paths, want)
	}
}

func TestChatRequiresDeployment(t *testing.T) {
	t.Parallel()

	e, err := New(Config("key", "http://127.0.0.1:0", ""), "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Chat(context.Background(), executor.Request{Model: "gpt-4o", User: "u"}); err == nil {
		t.Error("Chat() = nil, want error")
	}
}

func TestIsRetryableAzureError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want bool
	}{
		{err: &openai.APIError{HTTPStatusCode: 429}, want: true},
		{err: &openai.APIError{HTTPStatusCode: 500}, want: true},
		{err: &openai.APIError{HTTPStatusCode: 400}},
		{err: &openai.RequestError{HTTPStatusCode: 502}, want: true},
		{err: &openai.RequestError{HTTPStatusCode: 404}},
		{err: context.Canceled},
	}
	for _, tt := range tests {
		if got := isRetryableAzureError(tt.err); got != tt.want {
			t.Errorf("isRetryableAzureError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
