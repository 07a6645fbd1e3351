/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package servers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"chainguard.dev/pragent/agent"
	"chainguard.dev/pragent/settings"
	"github.com/chainguard-dev/clog"
	"github.com/gin-gonic/gin"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// GitLabTokenHeader carries the webhook token.
const GitLabTokenHeader = "X-Gitlab-Token"

// gitlabBotIndicators mark bot accounts, which GitLab does not flag.
var gitlabBotIndicators = []string{"codium", "bot_", "bot-", "_bot", "-bot"}

func isGitLabBot(name string) bool {
	name = strings.ToLower(name)
	for _, indicator := range gitlabBotIndicators {
		if strings.Contains(name, indicator) {
			return true
		}
	}
	return false
}

func mergeEventDraft(e *gitlab.MergeEvent) bool {
	attrs := e.ObjectAttributes
	// servers before 16.0 only mark the title
	return attrs.Draft || strings.Contains(attrs.Title, "Draft:")
}

func mergeEventDraftReady(e *gitlab.MergeEvent) bool {
	if d := e.Changes.Draft; d.Previous && !d.Current {
		return true
	}
	t := e.Changes.Title
	return strings.Contains(t.Previous, "Draft:") && !strings.Contains(t.Current, "Draft:")
}

func mergeEventFacts(e *gitlab.MergeEvent) pullRequestFacts {
	f := pullRequestFacts{
		Repository:   e.Project.PathWithNamespace,
		Title:        e.ObjectAttributes.Title,
		SourceBranch: e.ObjectAttributes.SourceBranch,
		TargetBranch: e.ObjectAttributes.TargetBranch,
	}
	if e.User != nil {
		f.Author = e.User.Username
	}
	for _, l := range e.ObjectAttributes.Labels {
		if l != nil {
			f.Labels = append(f.Labels, l.Title)
		}
	}
	return f
}

// gitlabTokenSecret is the secret stored for a webhook token.
type gitlabTokenSecret struct {
	GitLabToken string `json:"gitlab_token"`
	TokenName   string `json:"token_name"`
	ID          string `json:"id"`
}

// gitlabSettings authenticates a delivery and returns the settings to
// handle it with.
func (s *Server) gitlabSettings(ctx context.Context, token string) (*settings.Store, error) {
	st := s.agent.Settings()
	st.Set("config.git_provider", "gitlab")
	switch shared := st.String("gitlab.shared_secret"); {
	case token != "" && s.secrets != nil:
		raw, err := s.secrets.Get(ctx, token)
		if err != nil || raw == "" {
			return nil, fmt.Errorf("no secret for webhook token: %w", err)
		}
		var secret gitlabTokenSecret
		if err := json.Unmarshal([]byte(raw), &secret); err != nil || secret.GitLabToken == "" {
			return nil, fmt.Errorf("invalid secret for webhook token")
		}
		name := secret.TokenName
		if name == "" {
			name = secret.ID
		}
		clog.FromContext(ctx).With("token_id", name).Debug("Resolved webhook token")
		st.Set("gitlab.personal_access_token", secret.GitLabToken)
	case shared != "":
		if subtle.ConstantTimeCompare([]byte(token), []byte(shared)) != 1 {
			return nil, fmt.Errorf("webhook token does not match gitlab.shared_secret")
		}
	default:
		return nil, fmt.Errorf("neither a secret provider nor gitlab.shared_secret is configured")
	}
	if st.String("gitlab.personal_access_token") == "" {
		return nil, fmt.Errorf("no gitlab token found")
	}
	return st, nil
}

func (s *Server) gitlabWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	log := clog.FromContext(ctx)

	st, err := s.gitlabSettings(ctx, c.GetHeader(GitLabTokenHeader))
	if err != nil {
		log.With("error", err).Warn("Rejected GitLab webhook")
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
		return
	}
	eventType := gitlab.HookEventType(c.Request)
	if eventType != gitlab.EventTypeMergeRequest && eventType != gitlab.EventTypeNote {
		log.With("event", eventType).Debug("Ignoring GitLab event")
		c.JSON(http.StatusOK, gin.H{"message": "success"})
		return
	}
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Error reading request body"})
		return
	}
	event, err := gitlab.ParseWebhook(eventType, payload)
	if err != nil {
		log.With("error", err).Warn("Failed to parse GitLab webhook")
		c.JSON(http.StatusBadRequest, gin.H{"message": "Error parsing request body"})
		return
	}

	var sender, username, key string
	var handle func(context.Context, *agent.Agent) error
	switch e := event.(type) {
	case *gitlab.MergeEvent:
		if e.User != nil {
			sender, username = e.User.Name, e.User.Username
		}
		key = "merge_request:" + e.ObjectAttributes.URL
		handle = func(ctx context.Context, a *agent.Agent) error { return s.handleMergeEvent(ctx, a, e) }
	case *gitlab.MergeCommentEvent:
		if e.User != nil {
			sender, username = e.User.Name, e.User.Username
		}
		key = "note:" + e.MergeRequest.URL
		handle = func(ctx context.Context, a *agent.Agent) error { return s.handleMergeComment(ctx, a, e) }
	default:
		c.JSON(http.StatusOK, gin.H{"message": "success"})
		return
	}
	if isGitLabBot(sender) {
		log.With("sender", sender).Info("Skipping GitLab bot user")
		c.JSON(http.StatusOK, gin.H{"message": "success"})
		return
	}
	ctx = clog.WithLogger(ctx, log.With("sender", username))
	s.enqueue(ctx, key, func(ctx context.Context) error {
		return handle(ctx, s.agent.WithSettings(st))
	})
	c.JSON(http.StatusOK, gin.H{"message": "success"})
}

func (s *Server) handleMergeEvent(ctx context.Context, a *agent.Agent, e *gitlab.MergeEvent) error {
	attrs := e.ObjectAttributes
	url := attrs.URL
	log := clog.FromContext(ctx).With("api_url", url).With("action", attrs.Action)
	ctx = clog.WithLogger(ctx, log)
	if !shouldProcess(ctx, a.Settings(), mergeEventFacts(e)) {
		return nil
	}
	switch {
	case attrs.Action == "open" || attrs.Action == "reopen":
		if mergeEventDraft(e) {
			log.Info("Skipping draft merge request")
			return nil
		}
		return s.gitlabCommands(ctx, a, url, e, "gitlab.pr_commands")
	case attrs.Action == "update" && attrs.OldRev != "":
		if mergeEventDraft(e) {
			log.Info("Skipping draft merge request")
			return nil
		}
		st, _, err := a.Prepare(ctx, url)
		if err != nil {
			return err
		}
		if !st.Bool("gitlab.handle_push_trigger") || len(st.Strings("gitlab.push_commands")) == 0 {
			log.Info("Push event, but no push commands found or push trigger is disabled")
			return nil
		}
		if !shouldProcess(ctx, st, mergeEventFacts(e)) {
			return nil
		}
		return s.runPushCommands(ctx, a, url, st, "gitlab.push_commands")
	case attrs.Action == "update" && mergeEventDraftReady(e):
		log.Info("Draft merge request is ready")
		return s.gitlabCommands(ctx, a, url, e, "gitlab.pr_commands")
	}
	return nil
}

func (s *Server) handleMergeComment(ctx context.Context, a *agent.Agent, e *gitlab.MergeCommentEvent) error {
	url := e.MergeRequest.URL
	body := e.ObjectAttributes.Note
	if url == "" || !isCommand(body) {
		return nil
	}
	notify := s.eyes(ctx, a.Settings(), url, int64(e.ObjectAttributes.ID))
	if e.ObjectAttributes.Type == "DiffNote" && strings.Contains(body, "/ask") {
		body = gitlabAskLine(ctx, body, e)
	}
	clog.FromContext(ctx).With("api_url", url).Info("A comment has been added to a merge request")
	_, err := a.HandleRequest(ctx, url, body, notify)
	return commandError(err)
}

func (s *Server) gitlabCommands(ctx context.Context, a *agent.Agent, url string, e *gitlab.MergeEvent, commandsKey string) error {
	st, _, err := a.Prepare(ctx, url)
	if err != nil {
		return err
	}
	if commandsKey == "gitlab.pr_commands" && st.Bool("config.disable_auto_feedback") {
		clog.FromContext(ctx).Info("Automatic feedback is disabled")
		return nil
	}
	if !shouldProcess(ctx, st, mergeEventFacts(e)) {
		return nil
	}
	runCommands(ctx, a, url, st, commandsKey)
	return nil
}

// gitlabAskLine rewrites a question on a diff line into an ask_line request.
// Notes without a line range are left alone.
func gitlabAskLine(ctx context.Context, body string, e *gitlab.MergeCommentEvent) string {
	pos := e.ObjectAttributes.Position
	if pos == nil || pos.LineRange == nil || pos.LineRange.StartRange == nil || pos.LineRange.EndRange == nil {
		clog.FromContext(ctx).Warn("Line question without a line range")
		return body
	}
	r := pos.LineRange
	return askLineRequest(body, r.StartRange.NewLine, r.EndRange.NewLine, "RIGHT", pos.NewPath, e.ObjectAttributes.DiscussionID)
}
