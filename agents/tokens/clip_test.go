/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package tokens_test

import (
	"strings"
	"testing"

	"chainguard.dev/pragent/agents/tokens"
)

func TestClipWithinBudget(t *testing.T) {
	t.Parallel()

	text := "short text"
	if got := tokens.Clip(text, 100); got != text {
		t.Errorf("Clip() = %q, want unchanged", got)
	}
}

func TestClipNegativeBudget(t *testing.T) {
	t.Parallel()

	if got := tokens.Clip(strings.Repeat("x", 100), -1); got != "" {
		t.Errorf("Clip() = %q, want empty", got)
	}
}

func TestClipTruncates(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("x", 400) // 100 tokens
	got := tokens.Clip(text, 10)
	if !strings.HasSuffix(got, tokens.Truncated) {
		t.Fatalf("Clip() = %q, want truncation marker", got)
	}
	if body := strings.TrimSuffix(got, tokens.Truncated); len(body) != 36 {
		t.Errorf("clipped body length = %d, want 36", len(body))
	}

	got = tokens.Clip(text, 10, tokens.WithoutEllipsis())
	if strings.Contains(got, "truncated") || len(got) != 36 {
		t.Errorf("Clip(WithoutEllipsis) = %q", got)
	}
}

func TestClipDeleteLastLine(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("line of text\n", 50)
	got := tokens.Clip(text, 20, tokens.DeleteLastLine(), tokens.WithoutEllipsis())
	for _, line := range strings.Split(got, "\n") {
		if line != "line of text" {
			t.Fatalf("Clip() left partial line %q in %q", line, got)
		}
	}
}

func TestClipKeepsRunesIntact(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("ü", 400)
	got := tokens.Clip(text, 10, tokens.WithoutEllipsis())
	if strings.ContainsRune(got, '�') {
		t.Errorf("Clip() split a rune: %q", got)
	}
	if n := len([]rune(got)); n != 36 {
		t.Errorf("Clip() kept %d runes, want 36", n)
	}
}
