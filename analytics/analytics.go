/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package analytics records command runs and merged pull request statistics.
package analytics

import (
	"context"
	"fmt"
	"time"

	"chainguard.dev/pragent/settings"
	"github.com/google/uuid"
)

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Command is one command run against a pull request.
type Command struct {
	ID        string
	Command   string
	PRURL     string
	Provider  string
	StartedAt time.Time
	Duration  time.Duration
	// Error is empty for successful runs.
	Error string
}

// PRStatistics summarize a pull request when it is merged.
type PRStatistics struct {
	PRURL          string
	Provider       string
	Commits        int
	Comments       int
	ReviewComments int
	Additions      int
	Deletions      int
	ChangedFiles   int
	MergedAt       time.Time
}

// Store persists analytics records.
type Store interface {
	RecordCommand(ctx context.Context, c Command) error
	RecordPRStatistics(ctx context.Context, s PRStatistics) error
	Close() error
}

// Open returns the store for driver. An empty driver returns a store that
// drops every record.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "":
		return Nop{}, nil
	case DriverSQLite:
		return OpenSQLite(ctx, dsn)
	case DriverPostgres:
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown analytics driver %q", driver)
	}
}

// OpenFromStore opens the store configured in the analytics section of s.
func OpenFromStore(ctx context.Context, s *settings.Store) (Store, error) {
	return Open(ctx, s.String("analytics.driver"), s.String("analytics.dsn"))
}

// NewCommand starts a record for command with a fresh id.
func NewCommand(command, prURL, provider string) Command {
	return Command{
		ID:        uuid.NewString(),
		Command:   command,
		PRURL:     prURL,
		Provider:  provider,
		StartedAt: time.Now().UTC(),
	}
}

// Finish sets the duration and outcome of c.
func (c Command) Finish(err error) Command {
	c.Duration = time.Since(c.StartedAt)
	if err != nil {
		c.Error = err.Error()
	}
	return c
}

// Nop drops every record.
type Nop struct{}

// RecordCommand implements Store.
func (Nop) RecordCommand(context.Context, Command) error { return nil }

// RecordPRStatistics implements Store.
func (Nop) RecordPRStatistics(context.Context, PRStatistics) error { return nil }

// Close implements Store.
func (Nop) Close() error { return nil }
