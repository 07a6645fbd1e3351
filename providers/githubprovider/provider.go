/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package githubprovider implements providers.Provider on the GitHub REST API.
package githubprovider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"chainguard.dev/pragent/patch"
	"chainguard.dev/pragent/providers"
	"chainguard.dev/pragent/settings"
	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"
	"golang.org/x/oauth2"
)

const (
	// Name selects this provider in config.git_provider.
	Name = "github"

	defaultBaseURL = "https://api.github.com"
	perPage        = 100
)

// Config holds the GitHub connection settings.
type Config struct {
	BaseURL string
	// DeploymentType is "user" for token auth or "app" for GitHub App
	// installation auth.
	DeploymentType string
	Token          string
	AppID          int64
	PrivateKey     string
	InstallationID int64
}

// ConfigFromStore reads the github section of s.
func ConfigFromStore(s *settings.Store) Config {
	return Config{
		BaseURL:        s.String("github.base_url"),
		DeploymentType: s.String("github.deployment_type"),
		Token:          s.String("github.user_token"),
		AppID:          int64(s.Int("github.app_id", 0)),
		PrivateKey:     s.String("github.private_key"),
		InstallationID: int64(s.Int("github.installation_id", 0)),
	}
}

// NewClient creates a GitHub client authenticated as cfg describes.
func NewClient(ctx context.Context, cfg Config) (*github.Client, error) {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	enterprise := base != "" && base != defaultBaseURL

	var hc *http.Client
	switch cfg.DeploymentType {
	case "app":
		if cfg.AppID == 0 || cfg.PrivateKey == "" || cfg.InstallationID == 0 {
			return nil, errors.New("github.app_id, github.private_key and an installation id are required for app deployments")
		}
		tr, err := ghinstallation.New(http.DefaultTransport, cfg.AppID, cfg.InstallationID, []byte(cfg.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("creating installation transport: %w", err)
		}
		if enterprise {
			tr.BaseURL = base
		}
		hc = &http.Client{Transport: tr}
	default:
		if cfg.Token == "" {
			return nil, errors.New("github.user_token is required for user deployments")
		}
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))
	}

	gh := github.NewClient(hc)
	if enterprise {
		var err error
		if gh, err = gh.WithEnterpriseURLs(base, base); err != nil {
			return nil, fmt.Errorf("configuring base url %s: %w", base, err)
		}
	}
	return gh, nil
}

// Provider is a pull request on GitHub.
type Provider struct {
	client *github.Client
	owner  string
	repo   string
	number int

	mu    sync.Mutex
	pull  *github.PullRequest
	files []patch.FilePatch
}

var (
	_ providers.Provider   = (*Provider)(nil)
	_ providers.Describer  = (*Provider)(nil)
	_ providers.Labeler    = (*Provider)(nil)
	_ providers.Suggester  = (*Provider)(nil)
	_ providers.Reactor    = (*Provider)(nil)
	_ providers.Replier    = (*Provider)(nil)
	_ providers.FileReader = (*Provider)(nil)
)

// New binds a provider to the pull request at prURL.
func New(ctx context.Context, prURL string, cfg Config) (*Provider, error) {
	gh, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewWithClient(gh, prURL)
}

// NewWithClient binds a provider to the pull request at prURL using gh.
func NewWithClient(gh *github.Client, prURL string) (*Provider, error) {
	owner, repo, number, err := ParseURL(prURL)
	if err != nil {
		return nil, err
	}
	return &Provider{client: gh, owner: owner, repo: repo, number: number}, nil
}

// Name implements providers.Provider.
func (p *Provider) Name() string { return Name }

func (p *Provider) pullRequest(ctx context.Context) (*github.PullRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pull != nil {
		return p.pull, nil
	}
	pr, _, err := p.client.PullRequests.Get(ctx, p.owner, p.repo, p.number)
	if err != nil {
		return nil, fmt.Errorf("fetching %s/%s#%d: %w", p.owner, p.repo, p.number, err)
	}
	p.pull = pr
	return pr, nil
}

// PR implements providers.Provider.
func (p *Provider) PR(ctx context.Context) (*providers.PR, error) {
	pr, err := p.pullRequest(ctx)
	if err != nil {
		return nil, err
	}
	labels := make([]string, 0, len(pr.Labels))
	for _, l := range pr.Labels {
		labels = append(labels, l.GetName())
	}
	return &providers.PR{
		Number:          pr.GetNumber(),
		Title:           pr.GetTitle(),
		Description:     pr.GetBody(),
		Author:          pr.GetUser().GetLogin(),
		SourceBranch:    pr.GetHead().GetRef(),
		TargetBranch:    pr.GetBase().GetRef(),
		BaseSHA:         pr.GetBase().GetSHA(),
		HeadSHA:         pr.GetHead().GetSHA(),
		State:           pr.GetState(),
		Draft:           pr.GetDraft(),
		Merged:          pr.GetMerged(),
		Labels:          labels,
		URL:             pr.GetHTMLURL(),
		LatestCommitURL: fmt.Sprintf("%s/commit/%s", pr.GetBase().GetRepo().GetHTMLURL(), pr.GetHead().GetSHA()),
		CreatedAt:       pr.GetCreatedAt().Time,
		UpdatedAt:       pr.GetUpdatedAt().Time,
	}, nil
}

// DiffFiles implements prdiff.Source. File contents are read at the base and
// head commits of the pull request.
func (p *Provider) DiffFiles(ctx context.Context) ([]patch.FilePatch, error) {
	p.mu.Lock()
	cached := p.files
	p.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	pr, err := p.pullRequest(ctx)
	if err != nil {
		return nil, err
	}
	var out []patch.FilePatch
	opts := &github.ListOptions{PerPage: perPage}
	for {
		files, resp, err := p.client.PullRequests.ListFiles(ctx, p.owner, p.repo, p.number, opts)
		if err != nil {
			return nil, fmt.Errorf("listing files: %w", err)
		}
		for _, f := range files {
			out = append(out, p.filePatch(ctx, pr, f))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	p.mu.Lock()
	p.files = out
	p.mu.Unlock()
	return out, nil
}

func (p *Provider) filePatch(ctx context.Context, pr *github.PullRequest, f *github.CommitFile) patch.FilePatch {
	fp := patch.FilePatch{
		Filename:      f.GetFilename(),
		OldFilename:   f.GetPreviousFilename(),
		Patch:         f.GetPatch(),
		EditType:      editType(f.GetStatus()),
		NumPlusLines:  f.GetAdditions(),
		NumMinusLines: f.GetDeletions(),
	}
	log := clog.FromContext(ctx).With("file", fp.Filename)
	if fp.EditType != patch.Added {
		name := fp.Filename
		if fp.OldFilename != "" {
			name = fp.OldFilename
		}
		base, err := p.FileContent(ctx, name, pr.GetBase().GetSHA())
		if err != nil {
			log.With("error", err).Warn("Failed to read base file")
		}
		fp.Base = base
	}
	if fp.EditType != patch.Deleted {
		head, err := p.FileContent(ctx, fp.Filename, pr.GetHead().GetSHA())
		if err != nil {
			log.With("error", err).Warn("Failed to read head file")
		}
		fp.Head = head
	}
	return fp
}

func editType(status string) patch.EditType {
	switch status {
	case "added":
		return patch.Added
	case "removed":
		return patch.Deleted
	case "renamed":
		return patch.Renamed
	case "modified", "changed":
		return patch.Modified
	}
	return patch.Unknown
}

// Languages implements prdiff.Source.
func (p *Provider) Languages(ctx context.Context) (map[string]int, error) {
	langs, _, err := p.client.Repositories.ListLanguages(ctx, p.owner, p.repo)
	if err != nil {
		return nil, fmt.Errorf("listing languages: %w", err)
	}
	return langs, nil
}

// CommitMessages implements providers.Provider.
func (p *Provider) CommitMessages(ctx context.Context) (string, error) {
	var msgs []string
	opts := &github.ListOptions{PerPage: perPage}
	for {
		commits, resp, err := p.client.PullRequests.ListCommits(ctx, p.owner, p.repo, p.number, opts)
		if err != nil {
			return "", fmt.Errorf("listing commits: %w", err)
		}
		for _, c := range commits {
			msgs = append(msgs, fmt.Sprintf("%d. %s", len(msgs)+1, c.GetCommit().GetMessage()))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return strings.Join(msgs, "\n"), nil
}

// RepoSettings implements providers.Provider.
func (p *Provider) RepoSettings(ctx context.Context) ([]byte, error) {
	content, err := p.FileContent(ctx, ".pr_agent.toml", "")
	if errors.Is(err, providers.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(content), nil
}

// FileContent implements providers.FileReader.
func (p *Provider) FileContent(ctx context.Context, path, ref string) (string, error) {
	var opts *github.RepositoryContentGetOptions
	if ref != "" {
		opts = &github.RepositoryContentGetOptions{Ref: ref}
	}
	file, _, _, err := p.client.Repositories.GetContents(ctx, p.owner, p.repo, path, opts)
	if isNotFound(err) {
		return "", fmt.Errorf("%s: %w", path, providers.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	if file == nil {
		return "", fmt.Errorf("%s is a directory", path)
	}
	return file.GetContent()
}

func isNotFound(err error) bool {
	var er *github.ErrorResponse
	return errors.As(err, &er) && er.Response != nil && er.Response.StatusCode == http.StatusNotFound
}

func comment(c *github.IssueComment) *providers.Comment {
	return &providers.Comment{
		ID:     c.GetID(),
		Body:   c.GetBody(),
		URL:    c.GetHTMLURL(),
		Author: c.GetUser().GetLogin(),
	}
}

// PublishComment implements providers.Provider.
func (p *Provider) PublishComment(ctx context.Context, body string) (*providers.Comment, error) {
	c, _, err := p.client.Issues.CreateComment(ctx, p.owner, p.repo, p.number, &github.IssueComment{Body: github.Ptr(body)})
	if err != nil {
		return nil, fmt.Errorf("publishing comment: %w", err)
	}
	return comment(c), nil
}

// Comments implements providers.Provider.
func (p *Provider) Comments(ctx context.Context) ([]providers.Comment, error) {
	var out []providers.Comment
	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: perPage}}
	for {
		comments, resp, err := p.client.Issues.ListComments(ctx, p.owner, p.repo, p.number, opts)
		if err != nil {
			return nil, fmt.Errorf("listing comments: %w", err)
		}
		for _, c := range comments {
			out = append(out, *comment(c))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// EditComment implements providers.Provider.
func (p *Provider) EditComment(ctx context.Context, c *providers.Comment, body string) error {
	if _, _, err := p.client.Issues.EditComment(ctx, p.owner, p.repo, c.ID, &github.IssueComment{Body: github.Ptr(body)}); err != nil {
		return fmt.Errorf("editing comment %d: %w", c.ID, err)
	}
	c.Body = body
	return nil
}

// DeleteComment implements providers.Provider.
func (p *Provider) DeleteComment(ctx context.Context, c *providers.Comment) error {
	if _, err := p.client.Issues.DeleteComment(ctx, p.owner, p.repo, c.ID); err != nil {
		return fmt.Errorf("deleting comment %d: %w", c.ID, err)
	}
	return nil
}

// IsSupported implements providers.Provider.
func (p *Provider) IsSupported(c providers.Capability) bool {
	return c != providers.CapCommitChangelogs
}

// PublishDescription implements providers.Describer.
func (p *Provider) PublishDescription(ctx context.Context, title, body string) error {
	pr, _, err := p.client.PullRequests.Edit(ctx, p.owner, p.repo, p.number, &github.PullRequest{
		Title: github.Ptr(title),
		Body:  github.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("editing description: %w", err)
	}
	p.mu.Lock()
	p.pull = pr
	p.mu.Unlock()
	return nil
}

// Labels implements providers.Labeler.
func (p *Provider) Labels(ctx context.Context) ([]string, error) {
	labels, _, err := p.client.Issues.ListLabelsByIssue(ctx, p.owner, p.repo, p.number, &github.ListOptions{PerPage: perPage})
	if err != nil {
		return nil, fmt.Errorf("listing labels: %w", err)
	}
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		out = append(out, l.GetName())
	}
	return out, nil
}

// SetLabels implements providers.Labeler.
func (p *Provider) SetLabels(ctx context.Context, labels []string) error {
	if _, _, err := p.client.Issues.ReplaceLabelsForIssue(ctx, p.owner, p.repo, p.number, labels); err != nil {
		return fmt.Errorf("setting labels: %w", err)
	}
	return nil
}

func draft(s providers.CodeSuggestion) *github.DraftReviewComment {
	c := &github.DraftReviewComment{
		Path: github.Ptr(s.RelevantFile),
		Body: github.Ptr(s.Body),
		Line: github.Ptr(s.EndLine),
		Side: github.Ptr("RIGHT"),
	}
	if s.StartLine > 0 && s.StartLine < s.EndLine {
		c.StartLine = github.Ptr(s.StartLine)
		c.StartSide = github.Ptr("RIGHT")
	}
	return c
}

// PublishCodeSuggestions implements providers.Suggester. When GitHub rejects
// the batch, each suggestion is retried on its own and rejected ones are
// skipped.
func (p *Provider) PublishCodeSuggestions(ctx context.Context, suggestions []providers.CodeSuggestion) error {
	pr, err := p.pullRequest(ctx)
	if err != nil {
		return err
	}
	review := func(comments ...*github.DraftReviewComment) error {
		_, _, err := p.client.PullRequests.CreateReview(ctx, p.owner, p.repo, p.number, &github.PullRequestReviewRequest{
			CommitID: github.Ptr(pr.GetHead().GetSHA()),
			Event:    github.Ptr("COMMENT"),
			Comments: comments,
		})
		return err
	}

	drafts := make([]*github.DraftReviewComment, 0, len(suggestions))
	for _, s := range suggestions {
		drafts = append(drafts, draft(s))
	}
	if err = review(drafts...); err == nil {
		return nil
	}
	clog.FromContext(ctx).With("error", err).Warn("Failed to publish suggestions together, retrying one by one")

	published := 0
	for _, d := range drafts {
		if err := review(d); err != nil {
			clog.FromContext(ctx).With("file", d.GetPath()).With("error", err).Warn("Failed to publish suggestion")
			continue
		}
		published++
	}
	if published == 0 {
		return errors.New("no code suggestion could be published")
	}
	return nil
}

// AddEyesReaction implements providers.Reactor.
func (p *Provider) AddEyesReaction(ctx context.Context, commentID int64) (int64, error) {
	r, _, err := p.client.Reactions.CreateIssueCommentReaction(ctx, p.owner, p.repo, commentID, "eyes")
	if err != nil {
		return 0, fmt.Errorf("adding reaction: %w", err)
	}
	return r.GetID(), nil
}

// RemoveReaction implements providers.Reactor.
func (p *Provider) RemoveReaction(ctx context.Context, commentID, reactionID int64) error {
	if _, err := p.client.Reactions.DeleteIssueCommentReaction(ctx, p.owner, p.repo, commentID, reactionID); err != nil {
		return fmt.Errorf("removing reaction: %w", err)
	}
	return nil
}

// ReplyToComment implements providers.Replier.
func (p *Provider) ReplyToComment(ctx context.Context, commentID int64, body string) error {
	if _, _, err := p.client.PullRequests.CreateCommentInReplyTo(ctx, p.owner, p.repo, p.number, body, commentID); err != nil {
		return fmt.Errorf("replying to comment %d: %w", commentID, err)
	}
	return nil
}
