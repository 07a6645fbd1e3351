/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package giteaprovider_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"chainguard.dev/pragent/patch"
	"chainguard.dev/pragent/providers"
	"chainguard.dev/pragent/providers/giteaprovider"
	"github.com/google/go-cmp/cmp"
)

func TestParseURL(t *testing.T) {
	t.Parallel()

	owner, repo, index, err := giteaprovider.ParseURL("https://gitea.com/o/r/pulls/3")
	if err != nil || owner != "o" || repo != "r" || index != 3 {
		t.Errorf("ParseURL() = (%q, %q, %d, %v)", owner, repo, index, err)
	}
	if _, _, _, err := giteaprovider.ParseURL("https://gitea.com/o/r/issues/3"); !errors.Is(err, providers.ErrUnsupportedURL) {
		t.Errorf("ParseURL(issue) = %v, want %v", err, providers.ErrUnsupportedURL)
	}
}

const prDiff = `diff --git a/main.go b/main.go
index 1111111..2222222 100644
--- a/main.go
+++ b/main.go
@@ -1,2 +1,2 @@
 package main
-var x = 1
+var x = 2
diff --git a/docs.md b/docs.md
new file mode 100644
index 0000000..3333333
--- /dev/null
+++ b/docs.md
@@ -0,0 +1 @@
+hello
`

type fakeGitea struct {
	mu       sync.Mutex
	comments []map[string]any
	labels   []int64
}

func (f *fakeGitea) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, status int, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}
	mux.HandleFunc("GET /api/v1/version", func(w http.ResponseWriter, _ *http.Request) {
		write(w, http.StatusOK, `{"version": "1.22.0"}`)
	})
	mux.HandleFunc("GET /api/v1/repos/o/r/pulls/3", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "token secret" {
			t.Errorf("Authorization = %q", got)
		}
		write(w, http.StatusOK, `{
			"number": 3, "title": "Bump x", "body": "desc", "state": "open",
			"html_url": "https://gitea.example.com/o/r/pulls/3",
			"user": {"login": "bob"},
			"labels": [{"id": 1, "name": "bug"}],
			"head": {"ref": "bump", "sha": "h1"},
			"base": {"ref": "main", "sha": "b1", "repo": {"html_url": "https://gitea.example.com/o/r", "default_branch": "main"}}
		}`)
	})
	mux.HandleFunc("GET /api/v1/repos/o/r/pulls/3.diff", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, prDiff)
	})
	files := map[string]string{
		"main.go@b1": "package main\nvar x = 1\n",
		"main.go@h1": "package main\nvar x = 2\n",
		"docs.md@h1": "hello\n",
	}
	mux.HandleFunc("GET /api/v1/repos/o/r/raw/{path...}", func(w http.ResponseWriter, r *http.Request) {
		content, ok := files[r.PathValue("path")+"@"+r.URL.Query().Get("ref")]
		if !ok {
			write(w, http.StatusNotFound, `{"message": "not found"}`)
			return
		}
		fmt.Fprint(w, content)
	})
	mux.HandleFunc("POST /api/v1/repos/o/r/issues/3/comments", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var c map[string]any
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			t.Errorf("decoding comment: %v", err)
		}
		c["id"] = len(f.comments) + 1
		f.comments = append(f.comments, c)
		b, _ := json.Marshal(c)
		write(w, http.StatusCreated, string(b))
	})
	mux.HandleFunc("GET /api/v1/repos/o/r/issues/3/comments", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		b, _ := json.Marshal(f.comments)
		write(w, http.StatusOK, string(b))
	})
	mux.HandleFunc("GET /api/v1/repos/o/r/labels", func(w http.ResponseWriter, _ *http.Request) {
		write(w, http.StatusOK, `[{"id": 1, "name": "bug"}, {"id": 2, "name": "Enhancement"}]`)
	})
	mux.HandleFunc("PUT /api/v1/repos/o/r/issues/3/labels", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var opt struct {
			Labels []int64 `json:"labels"`
		}
		if err := json.NewDecoder(r.Body).Decode(&opt); err != nil {
			t.Errorf("decoding labels: %v", err)
		}
		f.labels = opt.Labels
		write(w, http.StatusOK, `[]`)
	})
	return mux
}

func newProvider(t *testing.T) (*giteaprovider.Provider, *fakeGitea) {
	t.Helper()
	fake := &fakeGitea{}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	p, err := giteaprovider.New(context.Background(), "https://gitea.example.com/o/r/pulls/3", giteaprovider.Config{URL: srv.URL, Token: "secret"})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	return p, fake
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()

	if _, err := giteaprovider.New(context.Background(), "https://gitea.com/o/r/pulls/3", giteaprovider.Config{}); err == nil {
		t.Error("New(no token) = nil error")
	}
}

func TestPR(t *testing.T) {
	t.Parallel()

	p, _ := newProvider(t)
	pr, err := p.PR(context.Background())
	if err != nil {
		t.Fatalf("PR() = %v", err)
	}
	want := &providers.PR{
		Number:          3,
		Title:           "Bump x",
		Description:     "desc",
		Author:          "bob",
		SourceBranch:    "bump",
		TargetBranch:    "main",
		BaseSHA:         "b1",
		HeadSHA:         "h1",
		State:           "open",
		Labels:          []string{"bug"},
		URL:             "https://gitea.example.com/o/r/pulls/3",
		LatestCommitURL: "https://gitea.example.com/o/r/commit/h1",
	}
	if diff := cmp.Diff(want, pr); diff != "" {
		t.Errorf("PR() mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffFiles(t *testing.T) {
	t.Parallel()

	p, _ := newProvider(t)
	files, err := p.DiffFiles(context.Background())
	if err != nil {
		t.Fatalf("DiffFiles() = %v", err)
	}
	type summary struct {
		Name       string
		Edit       patch.EditType
		Base, Head string
	}
	var got []summary
	for _, f := range files {
		got = append(got, summary{f.Filename, f.EditType, f.Base, f.Head})
	}
	want := []summary{
		{"main.go", patch.Modified, "package main\nvar x = 1\n", "package main\nvar x = 2\n"},
		{"docs.md", patch.Added, "", "hello\n"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DiffFiles() mismatch (-want +got):\n%s", diff)
	}
}

func TestRepoSettingsMissing(t *testing.T) {
	t.Parallel()

	p, _ := newProvider(t)
	got, err := p.RepoSettings(context.Background())
	if err != nil || got != nil {
		t.Errorf("RepoSettings() = (%q, %v), want (nil, nil)", got, err)
	}
}

func TestCommentsAndLabels(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, fake := newProvider(t)
	if _, err := p.PublishComment(ctx, "hello"); err != nil {
		t.Fatalf("PublishComment() = %v", err)
	}
	comments, err := p.Comments(ctx)
	if err != nil {
		t.Fatalf("Comments() = %v", err)
	}
	if len(comments) != 1 || comments[0].Body != "hello" || comments[0].ID != 1 {
		t.Errorf("Comments() = %+v", comments)
	}

	if err := p.SetLabels(ctx, []string{"enhancement", "Unknown"}); err != nil {
		t.Fatalf("SetLabels() = %v", err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if diff := cmp.Diff([]int64{2}, fake.labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
}
