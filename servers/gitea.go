/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package servers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"chainguard.dev/pragent/agent"
	"code.gitea.io/sdk/gitea"
	"github.com/chainguard-dev/clog"
	"github.com/gin-gonic/gin"
)

// GiteaEventHeader names the event of a Gitea delivery.
const GiteaEventHeader = "X-Gitea-Event"

// giteaSyncCommand reviews pull requests that received new commits.
const giteaSyncCommand = "/review"

type giteaEvent struct {
	Action      string             `json:"action"`
	PullRequest *gitea.PullRequest `json:"pull_request"`
	Comment     *gitea.Comment     `json:"comment"`
	Issue       *gitea.Issue       `json:"issue"`
	Repository  *gitea.Repository  `json:"repository"`
	Sender      *gitea.User        `json:"sender"`
}

func (e *giteaEvent) facts() pullRequestFacts {
	pr := e.PullRequest
	f := pullRequestFacts{Title: pr.Title}
	if e.Repository != nil {
		f.Repository = e.Repository.FullName
	}
	if pr.Poster != nil {
		f.Author = pr.Poster.UserName
	}
	if pr.Head != nil {
		f.SourceBranch = pr.Head.Ref
	}
	if pr.Base != nil {
		f.TargetBranch = pr.Base.Ref
	}
	for _, l := range pr.Labels {
		f.Labels = append(f.Labels, l.Name)
	}
	return f
}

func (s *Server) giteaWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	log := clog.FromContext(ctx)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Error reading request body"})
		return
	}
	var event giteaEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Error parsing request body"})
		return
	}
	eventType := c.GetHeader(GiteaEventHeader)
	var key string
	switch {
	case event.Action == "":
		log.Debug("No action found in request body")
	case eventType == "pull_request" && event.PullRequest != nil:
		key = event.PullRequest.URL
	case eventType == "issue_comment" && event.PullRequest != nil:
		key = event.PullRequest.URL
	}
	if key == "" {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	s.enqueue(ctx, eventType+":"+key, func(ctx context.Context) error {
		return s.handleGiteaEvent(ctx, eventType, &event)
	})
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) handleGiteaEvent(ctx context.Context, eventType string, e *giteaEvent) error {
	base := s.agent.Settings()
	base.Set("config.git_provider", "gitea")
	a := s.agent.WithSettings(base)
	prURL := e.PullRequest.URL
	log := clog.FromContext(ctx).With("event", eventType).With("action", e.Action).With("api_url", prURL)
	ctx = clog.WithLogger(ctx, log)

	switch eventType {
	case "pull_request":
		if !shouldProcess(ctx, base, e.facts()) {
			return nil
		}
		switch e.Action {
		case "opened", "reopened":
			st, _, err := a.Prepare(ctx, prURL)
			if err != nil {
				return err
			}
			runCommands(ctx, a, prURL, st, "gitea.pr_commands")
		case "synchronized":
			return s.giteaSync(ctx, a, prURL)
		}
	case "issue_comment":
		if e.Action != "created" || e.Comment == nil || !isCommand(e.Comment.Body) {
			return nil
		}
		log.With("comment", e.Comment.Body).Info("Processing comment")
		_, err := a.HandleRequest(ctx, prURL, e.Comment.Body, s.eyes(ctx, base, prURL, e.Comment.ID))
		return commandError(err)
	}
	return nil
}

func (s *Server) giteaSync(ctx context.Context, a *agent.Agent, prURL string) error {
	release, ok, err := s.gate.Enter(ctx, prURL)
	if err != nil {
		return err
	}
	if !ok {
		clog.FromContext(ctx).Info("Skipping push trigger, another push already triggered the same processing")
		return nil
	}
	defer release()
	_, err = a.HandleRequest(ctx, prURL, giteaSyncCommand+" --config.is_auto_command=true", nil)
	return commandError(err)
}
