/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package tools implements the commands the agent runs against a pull
// request. Every command reads the pull request through a provider, asks a
// model through the router and publishes the result back to the provider.
package tools

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"chainguard.dev/pragent/agents/metaagent"
	"chainguard.dev/pragent/providers"
	"chainguard.dev/pragent/settings"
)

// Env is what a command runs against.
type Env struct {
	Provider providers.Provider
	// Settings is the per-request store. Commands may write to it.
	Settings *settings.Store
	Router   *metaagent.Router
}

// Command runs one tool. args are the words following the command name,
// with setting overrides already applied and removed.
type Command func(ctx context.Context, env Env, args []string) error

var (
	// ErrUnknownCommand is returned by Lookup for names it does not know.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrNoQuestion is returned by the question tools when the comment holds
	// no question.
	ErrNoQuestion = errors.New("no question was asked")
)

var commands = map[string]Command{
	"auto_review":      AutoReview,
	"answer":           Review,
	"review":           Review,
	"review_pr":        Review,
	"describe":         Describe,
	"describe_pr":      Describe,
	"improve":          Improve,
	"improve_code":     Improve,
	"ask":              Ask,
	"ask_question":     Ask,
	"ask_line":         AskLine,
	"update_changelog": UpdateChangelog,
	"generate_labels":  GenerateLabels,
	"config":           ShowConfig,
	"settings":         ShowConfig,
	"help":             Help,
}

// Normalize strips the leading slash of a comment command and lowercases it.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimLeft(strings.TrimSpace(name), "/"))
}

// Lookup returns the command registered as name.
func Lookup(name string) (Command, error) {
	c, ok := commands[Normalize(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return c, nil
}

// Names lists the registered command names, aliases included.
func Names() []string {
	out := make([]string, 0, len(commands))
	for name := range commands {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
