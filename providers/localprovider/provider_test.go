/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package localprovider_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"chainguard.dev/pragent/patch"
	"chainguard.dev/pragent/providers"
	"chainguard.dev/pragent/providers/localprovider"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/go-cmp/cmp"
)

type checkout struct {
	t      *testing.T
	dir    string
	wt     *git.Worktree
	target string
}

func (c *checkout) write(name, content string) {
	c.t.Helper()
	path := filepath.Join(c.dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		c.t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		c.t.Fatal(err)
	}
	if _, err := c.wt.Add(name); err != nil {
		c.t.Fatalf("Add(%s) = %v", name, err)
	}
}

func (c *checkout) remove(name string) {
	c.t.Helper()
	if _, err := c.wt.Remove(name); err != nil {
		c.t.Fatalf("Remove(%s) = %v", name, err)
	}
}

func (c *checkout) commit(msg string) {
	c.t.Helper()
	_, err := c.wt.Commit(msg, &git.CommitOptions{Author: &object.Signature{
		Name:  "Dev",
		Email: "dev@example.com",
		When:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}})
	if err != nil {
		c.t.Fatalf("Commit() = %v", err)
	}
}

// newCheckout builds a repository whose target branch holds main.go and
// old.go, and whose feature branch edits main.go, adds new.py and removes
// old.go over two commits.
func newCheckout(t *testing.T) *checkout {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit() = %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	c := &checkout{t: t, dir: dir, wt: wt}
	c.write("main.go", "package main\n\nvar x = 1\n")
	c.write("old.go", "package main\n")
	c.commit("initial")

	head, err := repo.Head()
	if err != nil {
		t.Fatal(err)
	}
	c.target = head.Name().Short()
	if err := wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName("feature"), Create: true}); err != nil {
		t.Fatalf("Checkout() = %v", err)
	}
	c.write("main.go", "package main\n\nvar x = 2\n")
	c.commit("bump x")
	c.write("new.py", "print('hi')\n")
	c.remove("old.go")
	c.commit("add script")
	return c
}

func TestNewDirty(t *testing.T) {
	t.Parallel()

	c := newCheckout(t)
	if err := os.WriteFile(filepath.Join(c.dir, "main.go"), []byte("dirty\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := localprovider.New(c.target, localprovider.Config{Path: c.dir}); !errors.Is(err, localprovider.ErrDirty) {
		t.Errorf("New() = %v, want %v", err, localprovider.ErrDirty)
	}
}

func TestNewUnknownBranch(t *testing.T) {
	t.Parallel()

	c := newCheckout(t)
	if _, err := localprovider.New("nope", localprovider.Config{Path: c.dir}); err == nil {
		t.Error("New(unknown branch) = nil error")
	}
}

func TestProvider(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newCheckout(t)
	// Untracked files do not make the checkout dirty.
	if err := os.WriteFile(filepath.Join(c.dir, "review.md"), []byte("old review"), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := localprovider.New(c.target, localprovider.Config{Path: c.dir})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	pr, err := p.PR(ctx)
	if err != nil {
		t.Fatalf("PR() = %v", err)
	}
	if pr.Title != "feature" || pr.TargetBranch != c.target || pr.Description != "add script bump x" {
		t.Errorf("PR() = %+v", pr)
	}

	files, err := p.DiffFiles(ctx)
	if err != nil {
		t.Fatalf("DiffFiles() = %v", err)
	}
	type summary struct {
		Name       string
		Edit       patch.EditType
		Base, Head string
	}
	got := map[string]summary{}
	for _, f := range files {
		got[f.Filename] = summary{f.Filename, f.EditType, f.Base, f.Head}
	}
	want := map[string]summary{
		"main.go": {"main.go", patch.Modified, "package main\n\nvar x = 1\n", "package main\n\nvar x = 2\n"},
		"new.py":  {"new.py", patch.Added, "", "print('hi')\n"},
		"old.go":  {"old.go", patch.Deleted, "package main\n", ""},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DiffFiles() mismatch (-want +got):\n%s", diff)
	}

	langs, err := p.Languages(ctx)
	if err != nil {
		t.Fatalf("Languages() = %v", err)
	}
	if diff := cmp.Diff(map[string]int{"go": 50, "python": 50}, langs); diff != "" {
		t.Errorf("Languages() mismatch (-want +got):\n%s", diff)
	}

	msgs, err := p.CommitMessages(ctx)
	if err != nil {
		t.Fatalf("CommitMessages() = %v", err)
	}
	if want := "1. bump x\n2. add script"; msgs != want {
		t.Errorf("CommitMessages() = %q, want %q", msgs, want)
	}

	base, err := p.FileContent(ctx, "old.go", c.target)
	if err != nil || base != "package main\n" {
		t.Errorf("FileContent(old.go, %s) = (%q, %v)", c.target, base, err)
	}
	if _, err := p.FileContent(ctx, "old.go", "HEAD"); !errors.Is(err, providers.ErrNotFound) {
		t.Errorf("FileContent(old.go, HEAD) = %v, want %v", err, providers.ErrNotFound)
	}
}

func TestPublish(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newCheckout(t)
	out := t.TempDir()
	p, err := localprovider.New(c.target, localprovider.Config{
		Path:            c.dir,
		ReviewPath:      filepath.Join(out, "review.md"),
		DescriptionPath: filepath.Join(out, "description.md"),
	})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	tmp, err := p.PublishComment(ctx, "Preparing review...")
	if err != nil {
		t.Fatalf("PublishComment() = %v", err)
	}
	if err := p.DeleteComment(ctx, tmp); err != nil {
		t.Fatalf("DeleteComment() = %v", err)
	}
	if _, err := p.PublishComment(ctx, "## Review"); err != nil {
		t.Fatalf("PublishComment() = %v", err)
	}
	if err := p.PublishDescription(ctx, "Title", "Body"); err != nil {
		t.Fatalf("PublishDescription() = %v", err)
	}

	for path, want := range map[string]string{
		filepath.Join(out, "review.md"):      "## Review",
		filepath.Join(out, "description.md"): "Title\nBody",
	} {
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile(%s) = %v", path, err)
		}
		if string(got) != want {
			t.Errorf("%s = %q, want %q", path, got, want)
		}
	}
	if p.IsSupported(providers.CapInlineComments) || !p.IsSupported(providers.CapEditDescription) {
		t.Error("IsSupported() reports the wrong capabilities")
	}
}
