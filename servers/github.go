/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package servers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"chainguard.dev/pragent/agent"
	"chainguard.dev/pragent/analytics"
	"chainguard.dev/pragent/workqueue"
	"github.com/chainguard-dev/clog"
	"github.com/gin-gonic/gin"
	"github.com/google/go-github/v75/github"
)

func (s *Server) githubWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	log := clog.FromContext(ctx)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Error reading request body"})
		return
	}
	eventType := github.WebHookType(c.Request)
	event, err := github.ParseWebHook(eventType, payload)
	if err != nil {
		// unknown event types are acknowledged and ignored
		log.With("event", eventType).With("error", err).Debug("Ignoring webhook")
		c.JSON(http.StatusOK, gin.H{})
		return
	}

	var key string
	switch e := event.(type) {
	case *github.IssueCommentEvent:
		key = e.GetIssue().GetPullRequestLinks().GetURL()
	case *github.PullRequestReviewCommentEvent:
		key = e.GetComment().GetPullRequestURL()
	case *github.PullRequestEvent:
		key = e.GetPullRequest().GetURL()
	default:
		log.With("event", eventType).Debug("Event does not require any handling")
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	s.enqueue(ctx, eventType+":"+key, func(ctx context.Context) error {
		return s.handleGitHubEvent(ctx, eventType, event)
	})
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) marketplaceWebhook(c *gin.Context) {
	payload, _ := io.ReadAll(c.Request.Body)
	clog.FromContext(c.Request.Context()).With("body", string(payload)).Info("Marketplace webhook")
	c.JSON(http.StatusOK, gin.H{})
}

// githubSender describes who triggered a delivery.
type githubSender struct {
	action       string
	sender       *github.User
	repo         *github.Repository
	installation *github.Installation
}

func githubDelivery(event any) githubSender {
	switch e := event.(type) {
	case *github.IssueCommentEvent:
		return githubSender{e.GetAction(), e.GetSender(), e.GetRepo(), e.GetInstallation()}
	case *github.PullRequestReviewCommentEvent:
		return githubSender{e.GetAction(), e.GetSender(), e.GetRepo(), e.GetInstallation()}
	case *github.PullRequestEvent:
		return githubSender{e.GetAction(), e.GetSender(), e.GetRepo(), e.GetInstallation()}
	}
	return githubSender{}
}

func (s *Server) handleGitHubEvent(ctx context.Context, eventType string, event any) error {
	d := githubDelivery(event)
	if d.action == "" {
		return nil
	}
	log := clog.FromContext(ctx).
		With("event", eventType).
		With("action", d.action).
		With("sender", d.sender.GetLogin()).
		With("repo", d.repo.GetFullName()).
		With("installation_id", d.installation.GetID())
	ctx = clog.WithLogger(ctx, log)

	base := s.agent.Settings()
	if base.Bool("github_app.override_deployment_type") {
		base.Set("github.deployment_type", "app")
	}
	if id := d.installation.GetID(); id != 0 {
		base.Set("github.installation_id", id)
	}
	a := s.agent.WithSettings(base)

	if base.Bool("github_app.ignore_bot_pr") && d.sender.GetType() == "Bot" {
		log.Debug("Ignoring webhook from a bot")
		return nil
	}

	switch e := event.(type) {
	case *github.IssueCommentEvent:
		if d.action != "created" {
			return nil
		}
		return s.githubComment(ctx, a, e.GetIssue().GetPullRequestLinks().GetURL(), e.GetComment().GetID(), e.GetComment().GetBody(), nil)
	case *github.PullRequestReviewCommentEvent:
		if d.action != "created" {
			return nil
		}
		return s.githubComment(ctx, a, e.GetComment().GetPullRequestURL(), e.GetComment().GetID(), e.GetComment().GetBody(), e.GetComment())
	case *github.PullRequestEvent:
		pr := e.GetPullRequest()
		facts := pullRequestFacts{
			Repository:   d.repo.GetFullName(),
			Author:       d.sender.GetLogin(),
			Title:        pr.GetTitle(),
			SourceBranch: pr.GetHead().GetRef(),
			TargetBranch: pr.GetBase().GetRef(),
		}
		for _, l := range pr.Labels {
			facts.Labels = append(facts.Labels, l.GetName())
		}
		if !shouldProcess(ctx, base, facts) {
			return nil
		}
		switch d.action {
		case "synchronize":
			return s.githubPush(ctx, a, e, facts)
		case "closed":
			return s.githubClosed(ctx, e)
		default:
			return s.githubOpened(ctx, a, e, facts)
		}
	}
	return nil
}

// githubComment runs the command in a pull request comment. Questions on
// code lines become ask_line requests.
func (s *Server) githubComment(ctx context.Context, a *agent.Agent, prURL string, commentID int64, body string, line *github.PullRequestComment) error {
	log := clog.FromContext(ctx).With("api_url", prURL)
	if prURL == "" {
		return nil
	}
	if !isCommand(body) {
		if strings.Contains(body, "/ask") && strings.HasPrefix(strings.TrimSpace(body), "> ![image]") {
			before, after, _ := strings.Cut(body, "/ask")
			body = "/ask" + after + " \n" + strings.TrimLeft(strings.TrimSpace(before), ">")
			log.Info("Moved the command to the start of the comment")
		} else {
			log.Debug("Ignoring comment not starting with /")
			return nil
		}
	}
	notify := s.eyes(ctx, a.Settings(), prURL, commentID)
	if line != nil && strings.Contains(body, "/ask") && line.GetSubjectType() == "line" {
		body = askLineRequest(body, line.GetStartLine(), line.GetLine(), line.GetSide(), line.GetPath(), fmt.Sprint(line.GetID()))
		notify = nil
	}
	log.With("comment", body).Info("Processing comment")
	_, err := a.HandleRequest(clog.WithLogger(ctx, log), prURL, body, notify)
	return commandError(err)
}

// askLineRequest rewrites "/ask question" on a code line into an ask_line
// request.
func askLineRequest(body string, start, end int, side, path, commentID string) string {
	if start == 0 {
		start = end
	}
	question := strings.TrimSpace(strings.Replace(body, "/ask", "", 1))
	return fmt.Sprintf("/ask_line --line_start=%d --line_end=%d --side=%s --file_name=%s --comment_id=%s %s",
		start, end, side, path, commentID, question)
}

// openPullRequest reports whether pr is open and, unless drafts get feedback,
// not a draft. Review requests and pushes that arrive with the opening event
// are skipped to avoid double reviews.
func openPullRequest(action string, pr *github.PullRequest, feedbackOnDraft bool) bool {
	if pr.GetURL() == "" || pr.GetState() != "open" {
		return false
	}
	if pr.GetDraft() && !feedbackOnDraft {
		return false
	}
	if (action == "review_requested" || action == "synchronize") && pr.GetCreatedAt().Equal(pr.GetUpdatedAt()) {
		return false
	}
	return true
}

func (s *Server) githubOpened(ctx context.Context, a *agent.Agent, e *github.PullRequestEvent, facts pullRequestFacts) error {
	pr := e.GetPullRequest()
	st, _, err := a.Prepare(ctx, pr.GetURL())
	if err != nil {
		return err
	}
	cfg, err := st.Settings()
	if err != nil {
		return workqueue.NonRetriableError(err, "invalid settings")
	}
	if !slices.Contains(cfg.GitHubApp.HandlePRActions, e.GetAction()) {
		return nil
	}
	if !openPullRequest(e.GetAction(), pr, cfg.GitHubApp.FeedbackOnDraftPR) {
		clog.FromContext(ctx).Info("Skipping pull request that is closed, a draft or just opened")
		return nil
	}
	if cfg.Config.DisableAutoFeedback {
		clog.FromContext(ctx).Info("Automatic feedback is disabled")
		return nil
	}
	// repository settings may add ignore rules
	if !shouldProcess(ctx, st, facts) {
		return nil
	}
	runCommands(ctx, a, pr.GetURL(), st, "github_app.pr_commands")
	return nil
}

func (s *Server) githubPush(ctx context.Context, a *agent.Agent, e *github.PullRequestEvent, facts pullRequestFacts) error {
	pr := e.GetPullRequest()
	st, _, err := a.Prepare(ctx, pr.GetURL())
	if err != nil {
		return err
	}
	cfg, err := st.Settings()
	if err != nil {
		return workqueue.NonRetriableError(err, "invalid settings")
	}
	if !cfg.GitHubApp.HandlePushTrigger || !openPullRequest(e.GetAction(), pr, cfg.GitHubApp.FeedbackOnDraftPR) {
		return nil
	}
	if e.GetBefore() == e.GetAfter() {
		return nil
	}
	if cfg.GitHubApp.PushTriggerIgnoreMergeCommits && e.GetAfter() == pr.GetMergeCommitSHA() {
		clog.FromContext(ctx).Info("Ignoring merge commit push")
		return nil
	}
	if !shouldProcess(ctx, st, facts) {
		return nil
	}
	return s.runPushCommands(ctx, a, pr.GetURL(), st, "github_app.push_commands")
}

// githubClosed records the statistics of merged pull requests.
func (s *Server) githubClosed(ctx context.Context, e *github.PullRequestEvent) error {
	pr := e.GetPullRequest()
	if !pr.GetMerged() {
		return nil
	}
	stats := analytics.PRStatistics{
		PRURL:          pr.GetURL(),
		Provider:       GitHub,
		Commits:        pr.GetCommits(),
		Comments:       pr.GetComments(),
		ReviewComments: pr.GetReviewComments(),
		Additions:      pr.GetAdditions(),
		Deletions:      pr.GetDeletions(),
		ChangedFiles:   pr.GetChangedFiles(),
		MergedAt:       pr.GetMergedAt().Time,
	}
	clog.FromContext(ctx).With("api_url", stats.PRURL).With("commits", stats.Commits).Info("Statistics for merged pull request")
	return s.analytics.RecordPRStatistics(ctx, stats)
}
