/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chainguard.dev/pragent/agents/metaagent"
	"chainguard.dev/pragent/providers"
	"chainguard.dev/pragent/settings"
	"github.com/chainguard-dev/clog"
)

const (
	changelogFile = "CHANGELOG.md"
	// changelogLines bounds the part of the current changelog in the prompt.
	changelogLines = 50
)

// now is replaced in tests.
var now = time.Now

// UpdateChangelog proposes a CHANGELOG.md entry for the pull request.
// Providers cannot commit, so the entry is published as a comment.
func UpdateChangelog(ctx context.Context, env Env, _ []string) error {
	s := env.Settings
	log := clog.FromContext(ctx)

	done := progress(ctx, env, "Preparing changelog updates...")
	defer done()

	pr, err := loadPR(ctx, env)
	if err != nil {
		return err
	}
	current := currentChangelog(ctx, env, pr.PR.TargetBranch)

	system, user := prompt(s, "pr_update_changelog_prompt")
	vars := pr.with(map[string]string{
		"extra_instructions": s.String("pr_update_changelog.extra_instructions"),
		"today":              now().Format("2006-01-02"),
		"changelog_file":     current,
	})
	answer, err := metaagent.Run(ctx, env.Router, s.Models(settings.ModelRegular), func(ctx context.Context, call metaagent.Call) (string, error) {
		return diffPrediction(ctx, env, call, system, user, vars)
	})
	if errors.Is(err, errEmptyDiff) {
		log.Info("Empty diff, skipping changelog")
		return nil
	}
	if err != nil {
		return fmt.Errorf("predicting changelog: %w", err)
	}

	answer = strings.TrimSpace(answer)
	answer = strings.TrimPrefix(answer, "```")
	answer = strings.TrimSuffix(answer, "```")
	answer = strings.TrimSpace(answer)
	if s.Bool("pr_update_changelog.add_pr_link") && pr.PR.URL != "" {
		answer += fmt.Sprintf("\n\n[PR link](%s)", pr.PR.URL)
	}

	if s.Bool("pr_update_changelog.push_changelog_changes") && !env.Provider.IsSupported(providers.CapCommitChangelogs) {
		log.With("provider", env.Provider.Name()).Warn("Provider cannot commit the changelog, publishing it as a comment")
	}
	body := "**Changelog updates:** 🔄\n\n" + answer
	if current == "" {
		body += "\n\n>'CHANGELOG.md' file was not found in the repository. Add the entry above to a new one."
	}
	return publish(ctx, env, body, false, providers.Persistent{})
}

// currentChangelog returns the first lines of CHANGELOG.md on ref, or "".
func currentChangelog(ctx context.Context, env Env, ref string) string {
	fr, ok := env.Provider.(providers.FileReader)
	if !ok {
		return ""
	}
	content, err := fr.FileContent(ctx, changelogFile, ref)
	if err != nil {
		if !errors.Is(err, providers.ErrNotFound) {
			clog.FromContext(ctx).With("error", err).Warn("Failed to read the changelog")
		}
		return ""
	}
	lines := strings.Split(content, "\n")
	if len(lines) > changelogLines {
		lines = lines[:changelogLines]
	}
	return strings.Join(lines, "\n")
}
