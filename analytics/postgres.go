/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const pgConnectTimeout = 5 * time.Second

var pgSchema = []string{
	`CREATE TABLE IF NOT EXISTS pragent_commands (
		id          TEXT PRIMARY KEY,
		command     TEXT NOT NULL,
		pr_url      TEXT NOT NULL,
		provider    TEXT NOT NULL,
		started_at  TIMESTAMPTZ NOT NULL,
		duration_ms BIGINT NOT NULL,
		error       TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS pragent_commands_pr_url ON pragent_commands (pr_url)`,
	`CREATE TABLE IF NOT EXISTS pragent_pr_statistics (
		pr_url          TEXT PRIMARY KEY,
		provider        TEXT NOT NULL,
		commits         INTEGER NOT NULL,
		comments        INTEGER NOT NULL,
		review_comments INTEGER NOT NULL,
		additions       INTEGER NOT NULL,
		deletions       INTEGER NOT NULL,
		changed_files   INTEGER NOT NULL,
		merged_at       TIMESTAMPTZ NOT NULL
	)`,
}

// Postgres stores analytics in a PostgreSQL database.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// OpenPostgres connects to dsn, a postgres:// URL, and creates the tables.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	cfg.MaxConns = 4

	connectCtx, cancel := context.WithTimeout(ctx, pgConnectTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	for _, stmt := range pgSchema {
		if _, err := pool.Exec(connectCtx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("initialize schema: %w", err)
		}
	}
	return &Postgres{pool: pool}, nil
}

// RecordCommand implements Store.
func (p *Postgres) RecordCommand(ctx context.Context, c Command) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO pragent_commands (id, command, pr_url, provider, started_at, duration_ms, error) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.Command, c.PRURL, c.Provider, c.StartedAt, c.Duration.Milliseconds(), c.Error)
	if err != nil {
		return fmt.Errorf("insert command: %w", err)
	}
	return nil
}

// RecordPRStatistics implements Store.
func (p *Postgres) RecordPRStatistics(ctx context.Context, st PRStatistics) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO pragent_pr_statistics (pr_url, provider, commits, comments, review_comments, additions, deletions, changed_files, merged_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (pr_url) DO UPDATE SET
		   provider = EXCLUDED.provider, commits = EXCLUDED.commits, comments = EXCLUDED.comments,
		   review_comments = EXCLUDED.review_comments, additions = EXCLUDED.additions,
		   deletions = EXCLUDED.deletions, changed_files = EXCLUDED.changed_files, merged_at = EXCLUDED.merged_at`,
		st.PRURL, st.Provider, st.Commits, st.Comments, st.ReviewComments, st.Additions, st.Deletions, st.ChangedFiles, st.MergedAt)
	if err != nil {
		return fmt.Errorf("insert pr statistics: %w", err)
	}
	return nil
}

// Close implements Store.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
