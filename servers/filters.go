/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package servers

import (
	"context"
	"regexp"
	"slices"

	"chainguard.dev/pragent/settings"
	"github.com/chainguard-dev/clog"
)

// pullRequestFacts are the fields the ignore settings match against.
type pullRequestFacts struct {
	Repository   string
	Author       string
	Title        string
	SourceBranch string
	TargetBranch string
	Labels       []string
}

// shouldProcess applies the config.ignore_* settings. Patterns are regular
// expressions matched anywhere in the value; labels match exactly.
func shouldProcess(ctx context.Context, s *settings.Store, pr pullRequestFacts) bool {
	log := clog.FromContext(ctx)
	checks := []struct {
		key   string
		value string
	}{
		{"config.ignore_repositories", pr.Repository},
		{"config.ignore_pr_authors", pr.Author},
		{"config.ignore_pr_title", pr.Title},
		{"config.ignore_pr_source_branches", pr.SourceBranch},
		{"config.ignore_pr_target_branches", pr.TargetBranch},
	}
	for _, c := range checks {
		if c.value == "" {
			continue
		}
		if pattern, ok := matchAny(ctx, s.Strings(c.key), c.value); ok {
			log.With("setting", c.key).With("pattern", pattern).With("value", c.value).Info("Ignoring pull request")
			return false
		}
	}
	ignored := s.Strings("config.ignore_pr_labels")
	for _, label := range pr.Labels {
		if slices.Contains(ignored, label) {
			log.With("label", label).Info("Ignoring pull request with ignored label")
			return false
		}
	}
	return true
}

func matchAny(ctx context.Context, patterns []string, value string) (string, bool) {
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			clog.FromContext(ctx).With("pattern", p).With("error", err).Warn("Skipping invalid ignore pattern")
			continue
		}
		if re.MatchString(value) {
			return p, true
		}
	}
	return "", false
}
