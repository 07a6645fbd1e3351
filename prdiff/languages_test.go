/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package prdiff_test

import (
	"testing"

	"chainguard.dev/pragent/patch"
	"chainguard.dev/pragent/prdiff"
	"github.com/google/go-cmp/cmp"
)

func files(names ...string) []patch.FilePatch {
	out := make([]patch.FilePatch, 0, len(names))
	for _, n := range names {
		out = append(out, patch.FilePatch{Filename: n})
	}
	return out
}

func summarize(groups []prdiff.Group) map[string][]string {
	out := map[string][]string{}
	for _, g := range groups {
		var names []string
		for _, f := range g.Files {
			names = append(names, f.Filename)
		}
		out[g.Language] = names
	}
	return out
}

func TestSortByLanguage(t *testing.T) {
	t.Parallel()

	groups := prdiff.SortByLanguage(
		map[string]int{"Go": 1000, "Python": 10},
		files("a.py", "b.go", "notes.txt", "logo.png", "package-lock.json"),
	)
	var order []string
	for _, g := range groups {
		order = append(order, g.Language)
	}
	if diff := cmp.Diff([]string{"Go", "Python", prdiff.OtherLanguage}, order); diff != "" {
		t.Errorf("language order mismatch (-want +got):\n%s", diff)
	}
	want := map[string][]string{
		"Go":                 {"b.go"},
		"Python":             {"a.py"},
		prdiff.OtherLanguage: {"notes.txt"},
	}
	if diff := cmp.Diff(want, summarize(groups)); diff != "" {
		t.Errorf("SortByLanguage() mismatch (-want +got):\n%s", diff)
	}
}

func TestSortByLanguageUnknown(t *testing.T) {
	t.Parallel()

	groups := prdiff.SortByLanguage(nil, files("a.go", "b.jpg"))
	want := map[string][]string{prdiff.OtherLanguage: {"a.go"}}
	if diff := cmp.Diff(want, summarize(groups)); diff != "" {
		t.Errorf("SortByLanguage() mismatch (-want +got):\n%s", diff)
	}
}

func TestMainLanguage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		languages map[string]int
		files     []patch.FilePatch
		want      string
	}{
		{name: "top language", languages: map[string]int{"Go": 100, "Python": 10}, files: files("a.go", "b.py"), want: "go"},
		{name: "most common extension", languages: map[string]int{"Go": 100, "Python": 10}, files: files("a.go", "b.py", "c.py"), want: "python"},
		{name: "language outside the repository", languages: map[string]int{"Go": 100}, files: files("README.md"), want: "markdown"},
		{name: "unknown extension", languages: map[string]int{"Go": 100}, files: files("data.xyz"), want: ""},
		{name: "no languages", files: files("a.go")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := prdiff.MainLanguage(tt.languages, tt.files); got != tt.want {
				t.Errorf("MainLanguage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFilter(t *testing.T) {
	t.Parallel()

	in := files("main.go", "docs/guide.md", "vendor/x/y.go", "deep/dir/go.sum")
	got, err := prdiff.Filter(in, []string{"docs/**", "**/*.sum"}, []string{"^vendor/"})
	if err != nil {
		t.Fatalf("Filter() = %v", err)
	}
	var names []string
	for _, f := range got {
		names = append(names, f.Filename)
	}
	if diff := cmp.Diff([]string{"main.go"}, names); diff != "" {
		t.Errorf("Filter() mismatch (-want +got):\n%s", diff)
	}

	if _, err := prdiff.Filter(in, nil, []string{"("}); err == nil {
		t.Error("Filter(bad regex) = nil, want error")
	}
}

func TestLanguageOf(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]string{
		"main.go":    "go",
		"App.TSX":    "typescript",
		"lib/x.h":    "c",
		"Makefile":   "",
		"notes.text": "",
	} {
		if got := prdiff.LanguageOf(name); got != want {
			t.Errorf("LanguageOf(%q) = %q, want %q", name, got, want)
		}
	}
}
