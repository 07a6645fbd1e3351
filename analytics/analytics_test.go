/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package analytics_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"chainguard.dev/pragent/analytics"
	"github.com/google/go-cmp/cmp"
)

func TestOpen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := analytics.Open(ctx, "", "")
	if err != nil {
		t.Fatalf("Open(\"\") = %v", err)
	}
	if _, ok := s.(analytics.Nop); !ok {
		t.Errorf("Open(\"\") = %T, want analytics.Nop", s)
	}
	if err := s.RecordCommand(ctx, analytics.NewCommand("review", "u", "github")); err != nil {
		t.Errorf("RecordCommand() = %v", err)
	}
	if _, err := analytics.Open(ctx, "mysql", "x"); err == nil {
		t.Error("Open(mysql) = nil error")
	}
}

func TestSQLite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := analytics.OpenSQLite(ctx, filepath.Join(t.TempDir(), "nested", "analytics.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	const url = "https://github.com/o/r/pull/1"
	started := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	first := analytics.Command{ID: "a", Command: "review", PRURL: url, Provider: "github", StartedAt: started, Duration: 1500 * time.Millisecond}
	second := analytics.NewCommand("describe", url, "github")
	second.StartedAt = started.Add(time.Minute)
	second = second.Finish(errors.New("boom"))
	second.Duration = 2 * time.Second
	for _, c := range []analytics.Command{second, first} {
		if err := s.RecordCommand(ctx, c); err != nil {
			t.Fatalf("RecordCommand() = %v", err)
		}
	}
	got, err := s.Commands(ctx, url)
	if err != nil {
		t.Fatalf("Commands() = %v", err)
	}
	if diff := cmp.Diff([]analytics.Command{first, second}, got); diff != "" {
		t.Errorf("Commands() mismatch (-want +got):\n%s", diff)
	}
	if second.Error != "boom" || second.ID == "" {
		t.Errorf("Finish() = %+v", second)
	}

	stats := analytics.PRStatistics{
		PRURL:        url,
		Provider:     "github",
		Commits:      3,
		Comments:     2,
		Additions:    10,
		Deletions:    4,
		ChangedFiles: 2,
		MergedAt:     started,
	}
	if err := s.RecordPRStatistics(ctx, stats); err != nil {
		t.Fatalf("RecordPRStatistics() = %v", err)
	}
	stats.Comments = 5
	if err := s.RecordPRStatistics(ctx, stats); err != nil {
		t.Fatalf("RecordPRStatistics(again) = %v", err)
	}
	gotStats, err := s.PRStatistics(ctx, url)
	if err != nil {
		t.Fatalf("PRStatistics() = %v", err)
	}
	if diff := cmp.Diff(stats, gotStats); diff != "" {
		t.Errorf("PRStatistics() mismatch (-want +got):\n%s", diff)
	}
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("PRAGENT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PRAGENT_TEST_POSTGRES_DSN is not set")
	}
	ctx := context.Background()
	s, err := analytics.Open(ctx, analytics.DriverPostgres, dsn)
	if err != nil {
		t.Fatalf("Open(postgres) = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.RecordCommand(ctx, analytics.NewCommand("review", "https://example.com/pr/1", "gitlab").Finish(nil)); err != nil {
		t.Errorf("RecordCommand() = %v", err)
	}
	if err := s.RecordPRStatistics(ctx, analytics.PRStatistics{PRURL: "https://example.com/pr/1", Provider: "gitlab", MergedAt: time.Now()}); err != nil {
		t.Errorf("RecordPRStatistics() = %v", err)
	}
}
