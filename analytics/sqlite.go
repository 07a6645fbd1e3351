/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS commands (
	id          TEXT PRIMARY KEY,
	command     TEXT NOT NULL,
	pr_url      TEXT NOT NULL,
	provider    TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS pr_statistics (
	pr_url          TEXT PRIMARY KEY,
	provider        TEXT NOT NULL,
	commits         INTEGER NOT NULL,
	comments        INTEGER NOT NULL,
	review_comments INTEGER NOT NULL,
	additions       INTEGER NOT NULL,
	deletions       INTEGER NOT NULL,
	changed_files   INTEGER NOT NULL,
	merged_at       TEXT NOT NULL
);`

// SQLite stores analytics in a local database file.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens or creates the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		path = "pr_agent_analytics.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// RecordCommand implements Store.
func (s *SQLite) RecordCommand(ctx context.Context, c Command) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO commands (id, command, pr_url, provider, started_at, duration_ms, error) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Command, c.PRURL, c.Provider, c.StartedAt.UTC().Format(time.RFC3339Nano), c.Duration.Milliseconds(), c.Error)
	if err != nil {
		return fmt.Errorf("insert command: %w", err)
	}
	return nil
}

// RecordPRStatistics implements Store. A pull request merged again replaces
// its earlier row.
func (s *SQLite) RecordPRStatistics(ctx context.Context, st PRStatistics) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO pr_statistics (pr_url, provider, commits, comments, review_comments, additions, deletions, changed_files, merged_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.PRURL, st.Provider, st.Commits, st.Comments, st.ReviewComments, st.Additions, st.Deletions, st.ChangedFiles,
		st.MergedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert pr statistics: %w", err)
	}
	return nil
}

// Commands returns the recorded commands for prURL, oldest first.
func (s *SQLite) Commands(ctx context.Context, prURL string) ([]Command, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, command, pr_url, provider, started_at, duration_ms, error FROM commands WHERE pr_url = ? ORDER BY started_at`, prURL)
	if err != nil {
		return nil, fmt.Errorf("select commands: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Command
	for rows.Next() {
		var (
			c       Command
			started string
			ms      int64
		)
		if err := rows.Scan(&c.ID, &c.Command, &c.PRURL, &c.Provider, &started, &ms, &c.Error); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		if c.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		c.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, c)
	}
	return out, rows.Err()
}

// PRStatistics returns the statistics recorded for prURL.
func (s *SQLite) PRStatistics(ctx context.Context, prURL string) (PRStatistics, error) {
	var (
		st     PRStatistics
		merged string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT pr_url, provider, commits, comments, review_comments, additions, deletions, changed_files, merged_at FROM pr_statistics WHERE pr_url = ?`, prURL).
		Scan(&st.PRURL, &st.Provider, &st.Commits, &st.Comments, &st.ReviewComments, &st.Additions, &st.Deletions, &st.ChangedFiles, &merged)
	if err != nil {
		return PRStatistics{}, fmt.Errorf("select pr statistics: %w", err)
	}
	if st.MergedAt, err = time.Parse(time.RFC3339Nano, merged); err != nil {
		return PRStatistics{}, fmt.Errorf("parse merged_at: %w", err)
	}
	return st, nil
}

// Close implements Store.
func (s *SQLite) Close() error { return s.db.Close() }
