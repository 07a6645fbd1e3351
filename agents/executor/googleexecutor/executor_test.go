/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package googleexecutor_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"chainguard.dev/pragent/agents/executor"
	"chainguard.dev/pragent/agents/executor/googleexecutor"
	"chainguard.dev/pragent/agents/executor/retry"
	"google.golang.org/genai"
)

func newClient(t *testing.T, h http.HandlerFunc) *genai.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      "test",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL},
	})
	if err != nil {
		t.Fatalf("NewClient() = %v", err)
	}
	return client
}

func TestChat(t *testing.T) {
	t.Parallel()

	bodies := make(chan map[string]any, 1)
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "gemini-2.5-pro:generateContent") {
			http.NotFound(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		bodies <- body
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
  "candidates": [{"content": {"role": "model", "parts": [{"text": "Answer"}]}, "finishReason": "STOP"}],
  "usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 3}
}`)
	})

	e, err := googleexecutor.New(client)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := e.Chat(context.Background(), executor.Request{
		Model:  "gemini/gemini-2.5-pro",
		System: "be brief",
		User:   "question",
	})
	if err != nil {
		t.Fatalf("Chat() = %v", err)
	}
	if resp.Text != "Answer" || resp.FinishReason != "STOP" {
		t.Errorf("Chat() = %+v", resp)
	}
	if resp.PromptTokens != 12 || resp.CompletionTokens != 3 {
		t.Errorf("tokens = (%d, %d), want (12, 3)", resp.PromptTokens, resp.CompletionTokens)
	}
	if body := <-bodies; body["systemInstruction"] == nil {
		t.Errorf("request has no systemInstruction: %v", body)
	}
}

func TestChatEmpty(t *testing.T) {
	t.Parallel()

	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates": [{"content": {"role": "model", "parts": []}, "finishReason": "SAFETY"}]}`)
	})
	e, err := googleexecutor.New(client)
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.Chat(context.Background(), executor.Request{Model: "gemini-2.5-flash", User: "q"})
	if !errors.Is(err, executor.ErrEmptyResponse) {
		t.Errorf("Chat() = %v, want %v", err, executor.ErrEmptyResponse)
	}
}

func TestChatNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": {"code": 400, "message": "bad", "status": "INVALID_ARGUMENT"}}`)
	})
	e, err := googleexecutor.New(client, googleexecutor.WithRetryConfig(retry.Config{MaxRetries: 3}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Chat(context.Background(), executor.Request{Model: "gemini-2.5-flash", User: "q"}); err == nil {
		t.Fatal("Chat() = nil, want error")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestCountTokens(t *testing.T) {
	t.Parallel()

	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":countTokens") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"totalTokens": 77}`)
	})
	e, err := googleexecutor.New(client)
	if err != nil {
		t.Fatal(err)
	}
	n, err := e.CountTokens(context.Background(), "gemini-2.5-flash", "hello")
	if err != nil {
		t.Fatalf("CountTokens() = %v", err)
	}
	if n != 77 {
		t.Errorf("CountTokens() = %d, want 77", n)
	}
}

func TestOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    []googleexecutor.Option
		wantErr bool
	}{
		{name: "defaults"},
		{name: "zero max tokens", opts: []googleexecutor.Option{googleexecutor.WithMaxOutputTokens(0)}, wantErr: true},
		{name: "dynamic thinking", opts: []googleexecutor.Option{googleexecutor.WithThinking(-1)}},
		{name: "thinking over cap", opts: []googleexecutor.Option{googleexecutor.WithMaxOutputTokens(1000), googleexecutor.WithThinking(2000)}, wantErr: true},
		{name: "negative retries", opts: []googleexecutor.Option{googleexecutor.WithRetryConfig(retry.Config{MaxRetries: -1})}, wantErr: true},
		{name: "labels", opts: []googleexecutor.Option{googleexecutor.WithResourceLabels(map[string]string{"team": "dev"})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := googleexecutor.New(nil, tt.opts...)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
