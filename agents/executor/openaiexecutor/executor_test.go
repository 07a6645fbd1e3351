/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package openaiexecutor_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"chainguard.dev/pragent/agents/executor"
	"chainguard.dev/pragent/agents/executor/openaiexecutor"
	"github.com/google/go-cmp/cmp"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Temperature     *float64 `json:"temperature"`
	ReasoningEffort string   `json:"reasoning_effort"`
}

func fakeServer(t *testing.T, requests chan<- chatRequest, content string) openai.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var got chatRequest
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("request body: %v", err)
		}
		requests <- got
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
  "id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": %q,
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": %q}}],
  "usage": {"prompt_tokens": 20, "completion_tokens": 5, "total_tokens": 25}
}`, got.Model, content)
	}))
	t.Cleanup(srv.Close)
	return openai.NewClient(option.WithBaseURL(srv.URL), option.WithAPIKey("test"), option.WithMaxRetries(0))
}

func TestChat(t *testing.T) {
	t.Parallel()

	requests := make(chan chatRequest, 1)
	e, err := openaiexecutor.New(fakeServer(t, requests, "looks good"))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := e.Chat(context.Background(), executor.Request{
		Model:       "openai/gpt-4.1",
		System:      "sys",
		User:        "usr",
		Temperature: 0.2,
	})
	if err != nil {
		t.Fatalf("Chat() = %v", err)
	}
	want := executor.Response{Text: "looks good", FinishReason: "stop", PromptTokens: 20, CompletionTokens: 5}
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Errorf("Chat() mismatch (-want +got):\n%s", diff)
	}
	got := <-requests
	if got.Model != "gpt-4.1" {
		t.Errorf("model = %q, want gpt-4.1", got.Model)
	}
	if got.Temperature == nil || *got.Temperature != 0.2 {
		t.Errorf("temperature = %v, want 0.2", got.Temperature)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestChatReasoningModel(t *testing.T) {
	t.Parallel()

	requests := make(chan chatRequest, 1)
	e, err := openaiexecutor.New(fakeServer(t, requests, "ok"), openaiexecutor.WithReasoningEffort("high"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Chat(context.Background(), executor.Request{Model: "o4-mini", System: "s", User: "u", Temperature: 0.2}); err != nil {
		t.Fatalf("Chat() = %v", err)
	}
	got := <-requests
	if got.Temperature != nil {
		t.Errorf("temperature = %v, want unset", *got.Temperature)
	}
	if got.ReasoningEffort != "high" {
		t.Errorf("reasoning_effort = %q, want high", got.ReasoningEffort)
	}
}

func TestChatEmpty(t *testing.T) {
	t.Parallel()

	requests := make(chan chatRequest, 1)
	e, err := openaiexecutor.New(fakeServer(t, requests, ""))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Chat(context.Background(), executor.Request{Model: "gpt-4o", User: "u"}); !errors.Is(err, executor.ErrEmptyResponse) {
		t.Errorf("Chat() = %v, want %v", err, executor.ErrEmptyResponse)
	}
}

func TestIsReasoningModel(t *testing.T) {
	t.Parallel()

	for model, want := range map[string]bool{
		"o1":              true,
		"o3-mini":         true,
		"openai/o4-mini":  true,
		"gpt-5":           true,
		"gpt-5-mini":      true,
		"gpt-4.1":         false,
		"gpt-4o":          false,
		"o1x":             false,
		"claude-opus-4-1": false,
	} {
		if got := openaiexecutor.IsReasoningModel(model); got != want {
			t.Errorf("IsReasoningModel(%q) = %v, want %v", model, got, want)
		}
	}
}

func TestMessagesWithoutSystemRole(t *testing.T) {
	t.Parallel()

	if n := len(openaiexecutor.Messages("o1-mini", "sys", "usr")); n != 1 {
		t.Errorf("o1-mini messages = %d, want 1", n)
	}
	if n := len(openaiexecutor.Messages("gpt-4o", "", "usr")); n != 1 {
		t.Errorf("empty system messages = %d, want 1", n)
	}
	if n := len(openaiexecutor.Messages("gpt-4o", "sys", "usr")); n != 2 {
		t.Errorf("gpt-4o messages = %d, want 2", n)
	}
}

func TestWithReasoningEffort(t *testing.T) {
	t.Parallel()

	if _, err := openaiexecutor.New(openai.NewClient(), openaiexecutor.WithReasoningEffort("extreme")); err == nil {
		t.Error("WithReasoningEffort(extreme) = nil, want error")
	}
}
