/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package servers

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"
)

// actionTools are the commands a GitHub Action runs on pull request events,
// each behind its github_action_config switch.
var actionTools = []struct {
	setting string
	command string
}{
	{"github_action_config.auto_describe", "/describe"},
	{"github_action_config.auto_review", "/review"},
	{"github_action_config.auto_improve", "/improve"},
}

// RunGitHubAction handles the event that triggered a GitHub Actions workflow
// in the foreground. Pull request events run the enabled automatic tools and
// comments run the command they contain.
func (s *Server) RunGitHubAction(ctx context.Context, eventName string, payload []byte) error {
	if eventName == "pull_request_target" {
		eventName = "pull_request"
	}
	event, err := github.ParseWebHook(eventName, payload)
	if err != nil {
		return fmt.Errorf("parsing %s event: %w", eventName, err)
	}
	base := s.agent.Settings()
	base.Set("github.deployment_type", "user")
	a := s.agent.WithSettings(base)
	log := clog.FromContext(ctx).With("event", eventName)
	ctx = clog.WithLogger(ctx, log)

	switch e := event.(type) {
	case *github.PullRequestEvent:
		pr := e.GetPullRequest()
		if !slices.Contains(base.Strings("github_action_config.pr_actions"), e.GetAction()) {
			log.With("action", e.GetAction()).Info("Action is not configured to run")
			return nil
		}
		if pr.GetState() != "open" {
			return nil
		}
		var errs []error
		for _, t := range actionTools {
			if !base.Bool(t.setting) {
				continue
			}
			if _, err := a.HandleRequest(ctx, pr.GetURL(), t.command, nil); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	case *github.IssueCommentEvent:
		if e.GetAction() != "created" {
			return nil
		}
		return s.githubComment(ctx, a, e.GetIssue().GetPullRequestLinks().GetURL(), e.GetComment().GetID(), e.GetComment().GetBody(), nil)
	case *github.PullRequestReviewCommentEvent:
		if e.GetAction() != "created" {
			return nil
		}
		return s.githubComment(ctx, a, e.GetComment().GetPullRequestURL(), e.GetComment().GetID(), e.GetComment().GetBody(), e.GetComment())
	}
	log.Info("Event does not require any handling")
	return nil
}
