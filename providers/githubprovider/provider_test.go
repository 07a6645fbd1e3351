/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubprovider_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"chainguard.dev/pragent/patch"
	"chainguard.dev/pragent/providers"
	"chainguard.dev/pragent/providers/githubprovider"
	"github.com/google/go-cmp/cmp"
)

func TestParseURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url     string
		owner   string
		repo    string
		number  int
		wantErr bool
	}{
		{url: "https://github.com/o/r/pull/12", owner: "o", repo: "r", number: 12},
		{url: "https://github.com/o/r/pull/12/files", owner: "o", repo: "r", number: 12},
		{url: "https://api.github.com/repos/o/r/pulls/3", owner: "o", repo: "r", number: 3},
		{url: "https://ghe.example.com/api/v3/repos/o/r/pulls/4", owner: "o", repo: "r", number: 4},
		{url: "https://ghe.example.com/o/r/pull/5", owner: "o", repo: "r", number: 5},
		{url: "https://github.com/o/r/issues/5", wantErr: true},
		{url: "https://github.com/o/r/pull/abc", wantErr: true},
		{url: "https://github.com/o", wantErr: true},
	}
	for _, tt := range tests {
		owner, repo, number, err := githubprovider.ParseURL(tt.url)
		if tt.wantErr {
			if !errors.Is(err, providers.ErrUnsupportedURL) {
				t.Errorf("ParseURL(%q) = %v, want %v", tt.url, err, providers.ErrUnsupportedURL)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseURL(%q) = %v", tt.url, err)
			continue
		}
		if owner != tt.owner || repo != tt.repo || number != tt.number {
			t.Errorf("ParseURL(%q) = (%q, %q, %d), want (%q, %q, %d)", tt.url, owner, repo, number, tt.owner, tt.repo, tt.number)
		}
	}
}

func TestNewClientMissingCredentials(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if _, err := githubprovider.NewClient(ctx, githubprovider.Config{}); err == nil {
		t.Error("NewClient(no token) = nil error")
	}
	if _, err := githubprovider.NewClient(ctx, githubprovider.Config{DeploymentType: "app", AppID: 1}); err == nil {
		t.Error("NewClient(app without key) = nil error")
	}
}

const pullJSON = `{
	"number": 7,
	"title": "Add feature",
	"body": "Does things",
	"state": "open",
	"draft": true,
	"html_url": "https://github.com/o/r/pull/7",
	"created_at": "2026-01-02T03:04:05Z",
	"updated_at": "2026-01-03T03:04:05Z",
	"user": {"login": "alice"},
	"labels": [{"name": "bug"}],
	"head": {"ref": "feature", "sha": "head123"},
	"base": {"ref": "main", "sha": "base123", "repo": {"html_url": "https://github.com/o/r"}}
}`

// fakeGitHub serves the subset of the GitHub API the provider uses.
type fakeGitHub struct {
	mu       sync.Mutex
	reviews  [][]map[string]any
	comments []map[string]any
	labels   []string
	edited   map[string]any
}

func (f *fakeGitHub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, status int, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}
	mux.HandleFunc("GET /api/v3/repos/o/r/pulls/7", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("Authorization = %q", got)
		}
		write(w, http.StatusOK, pullJSON)
	})
	mux.HandleFunc("PATCH /api/v3/repos/o/r/pulls/7", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if err := json.NewDecoder(r.Body).Decode(&f.edited); err != nil {
			t.Errorf("decoding edit: %v", err)
		}
		write(w, http.StatusOK, pullJSON)
	})
	mux.HandleFunc("GET /api/v3/repos/o/r/pulls/7/files", func(w http.ResponseWriter, _ *http.Request) {
		write(w, http.StatusOK, `[
			{"filename": "a.go", "status": "modified", "patch": "@@ -1 +1 @@\n-a\n+b", "additions": 1, "deletions": 1},
			{"filename": "new.go", "status": "added", "patch": "@@ -0,0 +1 @@\n+n", "additions": 1},
			{"filename": "gone.go", "status": "removed", "patch": "@@ -1 +0,0 @@\n-g", "deletions": 1}
		]`)
	})
	mux.HandleFunc("GET /api/v3/repos/o/r/pulls/7/commits", func(w http.ResponseWriter, _ *http.Request) {
		write(w, http.StatusOK, `[{"commit": {"message": "first"}}, {"commit": {"message": "second"}}]`)
	})
	mux.HandleFunc("GET /api/v3/repos/o/r/languages", func(w http.ResponseWriter, _ *http.Request) {
		write(w, http.StatusOK, `{"Go": 1000, "Shell": 10}`)
	})
	files := map[string]string{
		"a.go@base123":   "a\n",
		"a.go@head123":   "b\n",
		"new.go@head123": "n\n",
		"gone.go@base123": "g\n",
	}
	mux.HandleFunc("GET /api/v3/repos/o/r/contents/{path...}", func(w http.ResponseWriter, r *http.Request) {
		content, ok := files[r.PathValue("path")+"@"+r.URL.Query().Get("ref")]
		if !ok {
			write(w, http.StatusNotFound, `{"message": "Not Found"}`)
			return
		}
		write(w, http.StatusOK, fmt.Sprintf(`{"type": "file", "encoding": "base64", "content": %q}`, base64.StdEncoding.EncodeToString([]byte(content))))
	})
	mux.HandleFunc("POST /api/v3/repos/o/r/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var c map[string]any
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			t.Errorf("decoding comment: %v", err)
		}
		id := len(f.comments) + 100
		c["id"], c["html_url"] = id, fmt.Sprintf("https://github.com/o/r/pull/7#issuecomment-%d", id)
		f.comments = append(f.comments, c)
		b, _ := json.Marshal(c)
		write(w, http.StatusCreated, string(b))
	})
	mux.HandleFunc("GET /api/v3/repos/o/r/issues/7/comments", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		b, _ := json.Marshal(f.comments)
		write(w, http.StatusOK, string(b))
	})
	mux.HandleFunc("PATCH /api/v3/repos/o/r/issues/comments/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var c map[string]any
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			t.Errorf("decoding comment: %v", err)
		}
		for _, existing := range f.comments {
			if fmt.Sprint(existing["id"]) == r.PathValue("id") {
				existing["body"] = c["body"]
			}
		}
		write(w, http.StatusOK, `{}`)
	})
	mux.HandleFunc("PUT /api/v3/repos/o/r/issues/7/labels", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if err := json.NewDecoder(r.Body).Decode(&f.labels); err != nil {
			t.Errorf("decoding labels: %v", err)
		}
		write(w, http.StatusOK, `[]`)
	})
	mux.HandleFunc("POST /api/v3/repos/o/r/pulls/7/reviews", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var req struct {
			Comments []map[string]any `json:"comments"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding review: %v", err)
		}
		f.reviews = append(f.reviews, req.Comments)
		for _, c := range req.Comments {
			if c["path"] == "bad.go" {
				write(w, http.StatusUnprocessableEntity, `{"message": "Validation Failed"}`)
				return
			}
		}
		write(w, http.StatusOK, `{"id": 1}`)
	})
	return mux
}

func newProvider(t *testing.T) (*githubprovider.Provider, *fakeGitHub) {
	t.Helper()
	fake := &fakeGitHub{}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	p, err := githubprovider.New(context.Background(), "https://github.com/o/r/pull/7", githubprovider.Config{
		BaseURL: srv.URL,
		Token:   "token",
	})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	return p, fake
}

func TestPR(t *testing.T) {
	t.Parallel()

	p, _ := newProvider(t)
	got, err := p.PR(context.Background())
	if err != nil {
		t.Fatalf("PR() = %v", err)
	}
	want := &providers.PR{
		Number:          7,
		Title:           "Add feature",
		Description:     "Does things",
		Author:          "alice",
		SourceBranch:    "feature",
		TargetBranch:    "main",
		BaseSHA:         "base123",
		HeadSHA:         "head123",
		State:           "open",
		Draft:           true,
		Labels:          []string{"bug"},
		URL:             "https://github.com/o/r/pull/7",
		LatestCommitURL: "https://github.com/o/r/commit/head123",
		CreatedAt:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt:       time.Date(2026, 1, 3, 3, 4, 5, 0, time.UTC),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("PR() mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffFiles(t *testing.T) {
	t.Parallel()

	p, _ := newProvider(t)
	got, err := p.DiffFiles(context.Background())
	if err != nil {
		t.Fatalf("DiffFiles() = %v", err)
	}
	want := []patch.FilePatch{{
		Filename: "a.go", Base: "a\n", Head: "b\n", Patch: "@@ -1 +1 @@\n-a\n+b",
		EditType: patch.Modified, NumPlusLines: 1, NumMinusLines: 1,
	}, {
		Filename: "new.go", Head: "n\n", Patch: "@@ -0,0 +1 @@\n+n",
		EditType: patch.Added, NumPlusLines: 1,
	}, {
		Filename: "gone.go", Base: "g\n", Patch: "@@ -1 +0,0 @@\n-g",
		EditType: patch.Deleted, NumMinusLines: 1,
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DiffFiles() mismatch (-want +got):\n%s", diff)
	}

	langs, err := p.Languages(context.Background())
	if err != nil {
		t.Fatalf("Languages() = %v", err)
	}
	if diff := cmp.Diff(map[string]int{"Go": 1000, "Shell": 10}, langs); diff != "" {
		t.Errorf("Languages() mismatch (-want +got):\n%s", diff)
	}
}

func TestCommitMessagesAndSettings(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, _ := newProvider(t)
	msgs, err := p.CommitMessages(ctx)
	if err != nil {
		t.Fatalf("CommitMessages() = %v", err)
	}
	if msgs != "1. first\n2. second" {
		t.Errorf("CommitMessages() = %q", msgs)
	}

	settings, err := p.RepoSettings(ctx)
	if err != nil || settings != nil {
		t.Errorf("RepoSettings() = (%q, %v), want (nil, nil)", settings, err)
	}
	if _, err := p.FileContent(ctx, "CHANGELOG.md", ""); !errors.Is(err, providers.ErrNotFound) {
		t.Errorf("FileContent(missing) = %v, want %v", err, providers.ErrNotFound)
	}
}

func TestComments(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, _ := newProvider(t)
	c, err := p.PublishComment(ctx, "## Header\nold")
	if err != nil {
		t.Fatalf("PublishComment() = %v", err)
	}
	if c.ID != 100 || c.URL != "https://github.com/o/r/pull/7#issuecomment-100" {
		t.Errorf("PublishComment() = %+v", c)
	}

	if err := providers.PublishPersistent(ctx, p, "## Header\nnew", providers.Persistent{Header: "## Header", Name: "review"}); err != nil {
		t.Fatalf("PublishPersistent() = %v", err)
	}
	comments, err := p.Comments(ctx)
	if err != nil {
		t.Fatalf("Comments() = %v", err)
	}
	if len(comments) != 1 || comments[0].Body != "## Header\nnew" {
		t.Errorf("Comments() = %+v, want the edited comment only", comments)
	}
}

func TestDescriptionAndLabels(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, fake := newProvider(t)
	if err := p.PublishDescription(ctx, "New title", "New body"); err != nil {
		t.Fatalf("PublishDescription() = %v", err)
	}
	if err := p.SetLabels(ctx, []string{"Bug fix", "Review effort 2/5"}); err != nil {
		t.Fatalf("SetLabels() = %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if diff := cmp.Diff(map[string]any{"title": "New title", "body": "New body"}, fake.edited); diff != "" {
		t.Errorf("edit mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Bug fix", "Review effort 2/5"}, fake.labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
}

func TestPublishCodeSuggestions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, fake := newProvider(t)
	err := p.PublishCodeSuggestions(ctx, []providers.CodeSuggestion{
		{Body: "fix", RelevantFile: "a.go", StartLine: 1, EndLine: 3},
		{Body: "nope", RelevantFile: "bad.go", StartLine: 2, EndLine: 2},
	})
	if err != nil {
		t.Fatalf("PublishCodeSuggestions() = %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	var sizes []int
	for _, r := range fake.reviews {
		sizes = append(sizes, len(r))
	}
	if diff := cmp.Diff([]int{2, 1, 1}, sizes); diff != "" {
		t.Errorf("review batches mismatch (-want +got):\n%s", diff)
	}
	first := fake.reviews[0][0]
	want := map[string]any{"path": "a.go", "body": "fix", "line": float64(3), "side": "RIGHT", "start_line": float64(1), "start_side": "RIGHT"}
	if diff := cmp.Diff(want, first); diff != "" {
		t.Errorf("draft comment mismatch (-want +got):\n%s", diff)
	}
}
