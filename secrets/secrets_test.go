/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package secrets_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"chainguard.dev/pragent/secrets"
	"chainguard.dev/pragent/settings"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/google/go-cmp/cmp"
)

const document = `{
  "openai.key": "sk-test",
  "hook-token": {"gitlab_token": "glpat-1", "token_name": "ci"}
}`

func newS3(t *testing.T, body string, status int) secrets.Provider {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/secrets-bucket/pragent.json" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	p, err := secrets.NewS3(context.Background(), secrets.S3Config{
		Bucket:   "secrets-bucket",
		Key:      "pragent.json",
		Endpoint: srv.URL,
	}, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKID", "SECRET", "")))
	if err != nil {
		t.Fatalf("NewS3() = %v", err)
	}
	return p
}

func TestS3Get(t *testing.T) {
	t.Parallel()
	p := newS3(t, document, http.StatusOK)
	ctx := context.Background()

	got, err := p.Get(ctx, "openai.key")
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if got != "sk-test" {
		t.Errorf("Get(openai.key) = %q, want sk-test", got)
	}

	got, err = p.Get(ctx, "hook-token")
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if want := `{"gitlab_token": "glpat-1", "token_name": "ci"}`; got != want {
		t.Errorf("Get(hook-token) = %q, want %q", got, want)
	}

	if _, err := p.Get(ctx, "missing"); !errors.Is(err, secrets.ErrNotFound) {
		t.Errorf("Get(missing) = %v, want ErrNotFound", err)
	}
}

func TestS3All(t *testing.T) {
	t.Parallel()
	p := newS3(t, `{"github.user_token": "ghp", "gitlab.personal_access_token": "glpat"}`, http.StatusOK)
	got, err := p.All(context.Background())
	if err != nil {
		t.Fatalf("All() = %v", err)
	}
	want := map[string]string{"github.user_token": "ghp", "gitlab.personal_access_token": "glpat"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("All() mismatch (-want +got):\n%s", diff)
	}
}

func TestS3Errors(t *testing.T) {
	t.Parallel()
	if _, err := newS3(t, "not json", http.StatusOK).All(context.Background()); err == nil {
		t.Error("All() on a malformed document succeeded")
	}
	if _, err := newS3(t, "", http.StatusForbidden).Get(context.Background(), "x"); err == nil {
		t.Error("Get() on a forbidden object succeeded")
	}
}

func TestFromStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := settings.MustLoad()
	p, err := secrets.FromStore(ctx, s)
	if err != nil || p != nil {
		t.Errorf("FromStore() without a provider = (%v, %v), want (nil, nil)", p, err)
	}

	s.Set("config.secret_provider", "vault")
	if _, err := secrets.FromStore(ctx, s); err == nil {
		t.Error("FromStore() with an unknown provider succeeded")
	}

	s.Set("config.secret_provider", secrets.AWSS3)
	if _, err := secrets.FromStore(ctx, s); err == nil {
		t.Error("FromStore() without a bucket succeeded")
	}

	s.Set("config.secret_provider", secrets.GoogleCloudStorage)
	if _, err := secrets.FromStore(ctx, s); err == nil {
		t.Error("FromStore() without an object succeeded")
	}
}
