/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package providers_test

import (
	"context"
	"testing"

	"chainguard.dev/pragent/providers"
	"chainguard.dev/pragent/providers/providertest"
	"github.com/google/go-cmp/cmp"
)

func TestPublishPersistent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := &providertest.Fake{PRInfo: providers.PR{LatestCommitURL: "https://example.com/commit/abc"}}
	opts := providers.Persistent{Header: "## PR Reviewer Guide", Name: "review", UpdateHeader: true, FinalUpdateMessage: true}

	if err := providers.PublishPersistent(ctx, f, "## PR Reviewer Guide\n\nfirst", opts); err != nil {
		t.Fatalf("PublishPersistent() = %v", err)
	}
	if diff := cmp.Diff([]string{"## PR Reviewer Guide\n\nfirst"}, f.Published()); diff != "" {
		t.Errorf("first publish mismatch (-want +got):\n%s", diff)
	}

	if err := providers.PublishPersistent(ctx, f, "## PR Reviewer Guide\n\nsecond", opts); err != nil {
		t.Fatalf("PublishPersistent() = %v", err)
	}
	want := []string{
		"## PR Reviewer Guide\n\n#### (Review updated until commit https://example.com/commit/abc)\n\n\nsecond",
		"**[Persistent review](https://example.com/comments/1)** updated to latest commit https://example.com/commit/abc",
	}
	if diff := cmp.Diff(want, f.Published()); diff != "" {
		t.Errorf("update mismatch (-want +got):\n%s", diff)
	}
}

func TestPublishPersistentQuiet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := &providertest.Fake{}
	if _, err := f.PublishComment(ctx, "unrelated"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.PublishComment(ctx, "## Header\nold"); err != nil {
		t.Fatal(err)
	}
	if err := providers.PublishPersistent(ctx, f, "## Header\nnew", providers.Persistent{Header: "## Header", Name: "improve"}); err != nil {
		t.Fatalf("PublishPersistent() = %v", err)
	}
	if diff := cmp.Diff([]string{"unrelated", "## Header\nnew"}, f.Published()); diff != "" {
		t.Errorf("comments mismatch (-want +got):\n%s", diff)
	}
}

func TestUserDescription(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{{
		name: "written by the author",
		in:   "  Fixes the flaky test.\n",
		want: "Fixes the flaky test.",
	}, {
		name: "generated without user description",
		in:   "### **PR Type**\nBug fix\n\n___\n\n### **Description**\n- stuff",
		want: "",
	}, {
		name: "user description before the next header",
		in:   "### **User description**\nKeep me.\n\n___\n\n### **PR Type**\nBug fix",
		want: "Keep me.",
	}, {
		name: "user description only",
		in:   "### **User description**\nOnly me.\n___\nfooter",
		want: "Only me.",
	}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := providers.UserDescription(tt.in); got != tt.want {
				t.Errorf("UserDescription() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsGeneratedDescription(t *testing.T) {
	t.Parallel()

	if !providers.IsGeneratedDescription("### 🤖 Generated by PR Agent at abc") {
		t.Error("IsGeneratedDescription(generated) = false")
	}
	if providers.IsGeneratedDescription("hello ### **pr type**") {
		t.Error("IsGeneratedDescription(plain) = true")
	}
}
