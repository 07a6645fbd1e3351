/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package result_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"chainguard.dev/pragent/agents/result"
	"github.com/google/go-cmp/cmp"
)

type suggestion struct {
	RelevantFile string `yaml:"relevant_file"`
	ExistingCode string `yaml:"existing_code"`
	ImprovedCode string `yaml:"improved_code"`
	Label        string `yaml:"label"`
}

type suggestions struct {
	CodeSuggestions []suggestion `yaml:"code_suggestions"`
}

func TestDecodeYAML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		opts  []result.YAMLOption
		want  []string
	}{{
		name:  "clean document",
		input: "code_suggestions:\n- relevant_file: a.go\n  label: bug\n",
		want:  []string{"a.go"},
	}, {
		name:  "fenced document",
		input: "```yaml\ncode_suggestions:\n- relevant_file: a.go\n```",
		want:  []string{"a.go"},
	}, {
		name:  "prose around fence",
		input: "Here you go:\n```yaml\ncode_suggestions:\n- relevant_file: b.go\n```\nHope this helps: really",
		want:  []string{"b.go"},
	}, {
		name:  "unquoted colon in value",
		input: "code_suggestions:\n- relevant_file: c.go\n  label: possible issue: nil map\n",
		want:  []string{"c.go"},
	}, {
		name:  "curly braces",
		input: "{code_suggestions:\n- relevant_file: d.go\n}",
		want:  []string{"d.go"},
	}, {
		name:  "key range",
		input: "Sure! [notes] here: {\n\ncode_suggestions:\n- relevant_file: e.go\n  label: bug\n\nThanks",
		opts:  []result.YAMLOption{result.WithKeyRange("code_suggestions", "label")},
		want:  []string{"e.go"},
	}, {
		name:  "key range with colons",
		input: "Here is the result:\ncode_suggestions:\n- relevant_file: f.go\n  label: bug\n\nThanks!",
		opts:  []result.YAMLOption{result.WithKeyRange("code_suggestions:", "label:")},
		want:  []string{"f.go"},
	}, {
		name:  "truncated response",
		input: "code_suggestions:\n- relevant_file: g.go\n  score: 9\n- relevant_file: h.go\n  score: [9",
		opts:  []result.YAMLOption{result.WithKeyRange("code_suggestions", "score")},
		want:  []string{"g.go", "h.go"},
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := result.DecodeYAML[suggestions](context.Background(), tt.input, tt.opts...)
			if err != nil {
				t.Fatalf("DecodeYAML() = %v", err)
			}
			var files []string
			for _, s := range got.CodeSuggestions {
				files = append(files, strings.TrimSpace(s.RelevantFile))
			}
			if diff := cmp.Diff(tt.want, files); diff != "" {
				t.Errorf("files (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeYAMLLeadingPlus(t *testing.T) {
	t.Parallel()

	input := "code_suggestions:\n- relevant_file: a.go\n  improved_code: |\n    x := 1\n+    y := 2\n"
	got, err := result.DecodeYAML[suggestions](context.Background(), input)
	if err != nil {
		t.Fatalf("DecodeYAML() = %v", err)
	}
	if len(got.CodeSuggestions) != 1 || !strings.Contains(got.CodeSuggestions[0].ImprovedCode, "y := 2") {
		t.Errorf("DecodeYAML() = %+v, want improved code kept", got)
	}
}

func TestDecodeYAMLUnparseable(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "I could not review this PR."} {
		_, err := result.DecodeYAML[suggestions](context.Background(), input)
		if !errors.Is(err, result.ErrUnparseable) {
			t.Errorf("DecodeYAML(%q) = %v, want ErrUnparseable", input, err)
		}
	}
}

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name, input, want string
	}{
		{"fenced", "Result:\n```json\n{\"a\": 1}\n```\ntrailing", `{"a": 1}`},
		{"plain", "  {\"a\": 1}\n", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"unterminated", "```json\n{\"a\": 1}", `{"a": 1}`},
		{"first of many", "```json\n1\n```\n```json\n2\n```", "1"},
		{"empty block", "```json\n```", ""},
	}
	for _, tt := range tests {
		if got := result.ExtractJSON(tt.input); got != tt.want {
			t.Errorf("%s: ExtractJSON() = %q, want %q", tt.name, got, tt.want)
		}
	}

	got, err := result.Extract[map[string]int]("```json\n{\"a\": 1}\n```")
	if err != nil {
		t.Fatalf("Extract() = %v", err)
	}
	if got["a"] != 1 {
		t.Errorf("Extract() = %v", got)
	}
}
