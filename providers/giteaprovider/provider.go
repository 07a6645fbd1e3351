/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package giteaprovider implements providers.Provider on the Gitea API.
package giteaprovider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"chainguard.dev/pragent/patch"
	"chainguard.dev/pragent/providers"
	"chainguard.dev/pragent/settings"
	"code.gitea.io/sdk/gitea"
	"github.com/chainguard-dev/clog"
)

const (
	// Name selects this provider in config.git_provider.
	Name = "gitea"

	pageSize = 50
)

// Config holds the Gitea connection settings.
type Config struct {
	URL   string
	Token string
}

// ConfigFromStore reads the gitea section of s.
func ConfigFromStore(s *settings.Store) Config {
	return Config{
		URL:   s.String("gitea.url"),
		Token: s.String("gitea.personal_access_token"),
	}
}

// ParseURL extracts the repository and number from a pull request URL such
// as https://gitea.com/o/r/pulls/1.
func ParseURL(prURL string) (owner, repo string, number int64, err error) {
	u, err := url.Parse(prURL)
	if err != nil {
		return "", "", 0, fmt.Errorf("%w: %w", providers.ErrUnsupportedURL, err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) > 2 && parts[0] == "api" && parts[1] == "v1" {
		parts = parts[2:]
	}
	if len(parts) > 0 && parts[0] == "repos" {
		parts = parts[1:]
	}
	if len(parts) < 4 || parts[2] != "pulls" {
		return "", "", 0, fmt.Errorf("%w: %s", providers.ErrUnsupportedURL, prURL)
	}
	number, err = strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return "", "", 0, fmt.Errorf("%w: bad pull request number in %s", providers.ErrUnsupportedURL, prURL)
	}
	return parts[0], parts[1], number, nil
}

// Provider is a pull request on Gitea.
type Provider struct {
	client *gitea.Client
	owner  string
	repo   string
	index  int64

	mu    sync.Mutex
	pull  *gitea.PullRequest
	files []patch.FilePatch
}

var (
	_ providers.Provider   = (*Provider)(nil)
	_ providers.Describer  = (*Provider)(nil)
	_ providers.Labeler    = (*Provider)(nil)
	_ providers.Suggester  = (*Provider)(nil)
	_ providers.Reactor    = (*Provider)(nil)
	_ providers.FileReader = (*Provider)(nil)
)

// New binds a provider to the pull request at prURL. The Gitea client is
// scoped to ctx.
func New(ctx context.Context, prURL string, cfg Config) (*Provider, error) {
	owner, repo, index, err := ParseURL(prURL)
	if err != nil {
		return nil, err
	}
	if cfg.Token == "" {
		return nil, errors.New("gitea.personal_access_token is required")
	}
	base := cfg.URL
	if base == "" {
		u, _ := url.Parse(prURL)
		base = u.Scheme + "://" + u.Host
	}
	client, err := gitea.NewClient(base, gitea.SetToken(cfg.Token), gitea.SetContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("creating gitea client for %s: %w", base, err)
	}
	return &Provider{client: client, owner: owner, repo: repo, index: index}, nil
}

// Name implements providers.Provider.
func (p *Provider) Name() string { return Name }

func (p *Provider) pullRequest() (*gitea.PullRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pull != nil {
		return p.pull, nil
	}
	pr, _, err := p.client.GetPullRequest(p.owner, p.repo, p.index)
	if err != nil {
		return nil, fmt.Errorf("fetching %s/%s#%d: %w", p.owner, p.repo, p.index, err)
	}
	p.pull = pr
	return pr, nil
}

func branch(b *gitea.PRBranchInfo) (ref, sha string) {
	if b == nil {
		return "", ""
	}
	return b.Ref, b.Sha
}

// PR implements providers.Provider.
func (p *Provider) PR(context.Context) (*providers.PR, error) {
	pr, err := p.pullRequest()
	if err != nil {
		return nil, err
	}
	out := &providers.PR{
		Number:      int(pr.Index),
		Title:       pr.Title,
		Description: pr.Body,
		State:       string(pr.State),
		Merged:      pr.HasMerged,
		URL:         pr.HTMLURL,
	}
	if pr.Poster != nil {
		out.Author = pr.Poster.UserName
	}
	out.SourceBranch, out.HeadSHA = branch(pr.Head)
	out.TargetBranch, out.BaseSHA = branch(pr.Base)
	if pr.Base != nil && pr.Base.Repository != nil {
		out.LatestCommitURL = fmt.Sprintf("%s/commit/%s", pr.Base.Repository.HTMLURL, out.HeadSHA)
	}
	for _, l := range pr.Labels {
		out.Labels = append(out.Labels, l.Name)
	}
	if pr.Created != nil {
		out.CreatedAt = *pr.Created
	}
	if pr.Updated != nil {
		out.UpdatedAt = *pr.Updated
	}
	return out, nil
}

// DiffFiles implements prdiff.Source. The pull request diff is split per
// file and the file contents are read at the base and head commits.
func (p *Provider) DiffFiles(ctx context.Context) ([]patch.FilePatch, error) {
	p.mu.Lock()
	cached := p.files
	p.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	pr, err := p.pullRequest()
	if err != nil {
		return nil, err
	}
	raw, _, err := p.client.GetPullRequestDiff(p.owner, p.repo, p.index, gitea.PullRequestDiffOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetching diff: %w", err)
	}
	files, err := patch.SplitUnifiedDiff(string(raw))
	if err != nil {
		return nil, err
	}
	_, baseSHA := branch(pr.Base)
	_, headSHA := branch(pr.Head)
	for i := range files {
		f := &files[i]
		log := clog.FromContext(ctx).With("file", f.Filename)
		if f.EditType != patch.Added {
			name := f.Filename
			if f.OldFilename != "" {
				name = f.OldFilename
			}
			if f.Base, err = p.FileContent(ctx, name, baseSHA); err != nil {
				log.With("error", err).Warn("Failed to read base file")
			}
		}
		if f.EditType != patch.Deleted {
			if f.Head, err = p.FileContent(ctx, f.Filename, headSHA); err != nil {
				log.With("error", err).Warn("Failed to read head file")
			}
		}
	}

	p.mu.Lock()
	p.files = files
	p.mu.Unlock()
	return files, nil
}

// Languages implements prdiff.Source.
func (p *Provider) Languages(context.Context) (map[string]int, error) {
	langs, _, err := p.client.GetRepoLanguages(p.owner, p.repo)
	if err != nil {
		return nil, fmt.Errorf("listing languages: %w", err)
	}
	out := make(map[string]int, len(langs))
	for k, v := range langs {
		out[k] = int(v)
	}
	return out, nil
}

// CommitMessages implements providers.Provider.
func (p *Provider) CommitMessages(context.Context) (string, error) {
	var msgs []string
	opts := gitea.ListPullRequestCommitsOptions{ListOptions: gitea.ListOptions{Page: 1, PageSize: pageSize}}
	for {
		commits, resp, err := p.client.ListPullRequestCommits(p.owner, p.repo, p.index, opts)
		if err != nil {
			return "", fmt.Errorf("listing commits: %w", err)
		}
		for _, c := range commits {
			var msg string
			if c.RepoCommit != nil {
				msg = c.RepoCommit.Message
			}
			msgs = append(msgs, fmt.Sprintf("%d. %s", len(msgs)+1, msg))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return strings.Join(msgs, "\n"), nil
}

// RepoSettings implements providers.Provider.
func (p *Provider) RepoSettings(ctx context.Context) ([]byte, error) {
	pr, err := p.pullRequest()
	if err != nil {
		return nil, err
	}
	var ref string
	if pr.Base != nil && pr.Base.Repository != nil {
		ref = pr.Base.Repository.DefaultBranch
	}
	content, err := p.FileContent(ctx, ".pr_agent.toml", ref)
	if errors.Is(err, providers.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(content), nil
}

// FileContent implements providers.FileReader.
func (p *Provider) FileContent(_ context.Context, path, ref string) (string, error) {
	data, resp, err := p.client.GetFile(p.owner, p.repo, ref, path)
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%s: %w", path, providers.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

func comment(c *gitea.Comment) *providers.Comment {
	out := &providers.Comment{ID: c.ID, Body: c.Body, URL: c.HTMLURL}
	if c.Poster != nil {
		out.Author = c.Poster.UserName
	}
	return out
}

// PublishComment implements providers.Provider.
func (p *Provider) PublishComment(_ context.Context, body string) (*providers.Comment, error) {
	c, _, err := p.client.CreateIssueComment(p.owner, p.repo, p.index, gitea.CreateIssueCommentOption{Body: body})
	if err != nil {
		return nil, fmt.Errorf("publishing comment: %w", err)
	}
	return comment(c), nil
}

// Comments implements providers.Provider.
func (p *Provider) Comments(context.Context) ([]providers.Comment, error) {
	var out []providers.Comment
	opts := gitea.ListIssueCommentOptions{ListOptions: gitea.ListOptions{Page: 1, PageSize: pageSize}}
	for {
		comments, resp, err := p.client.ListIssueComments(p.owner, p.repo, p.index, opts)
		if err != nil {
			return nil, fmt.Errorf("listing comments: %w", err)
		}
		for _, c := range comments {
			out = append(out, *comment(c))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// EditComment implements providers.Provider.
func (p *Provider) EditComment(_ context.Context, c *providers.Comment, body string) error {
	if _, _, err := p.client.EditIssueComment(p.owner, p.repo, c.ID, gitea.EditIssueCommentOption{Body: body}); err != nil {
		return fmt.Errorf("editing comment %d: %w", c.ID, err)
	}
	c.Body = body
	return nil
}

// DeleteComment implements providers.Provider.
func (p *Provider) DeleteComment(_ context.Context, c *providers.Comment) error {
	if _, err := p.client.DeleteIssueComment(p.owner, p.repo, c.ID); err != nil {
		return fmt.Errorf("deleting comment %d: %w", c.ID, err)
	}
	return nil
}

// IsSupported implements providers.Provider.
func (p *Provider) IsSupported(c providers.Capability) bool {
	switch c {
	case providers.CapCommentReplies, providers.CapCommitChangelogs:
		return false
	}
	return true
}

// PublishDescription implements providers.Describer.
func (p *Provider) PublishDescription(_ context.Context, title, body string) error {
	pr, _, err := p.client.EditPullRequest(p.owner, p.repo, p.index, gitea.EditPullRequestOption{Title: title, Body: body})
	if err != nil {
		return fmt.Errorf("editing description: %w", err)
	}
	p.mu.Lock()
	p.pull = pr
	p.mu.Unlock()
	return nil
}

// Labels implements providers.Labeler.
func (p *Provider) Labels(context.Context) ([]string, error) {
	labels, _, err := p.client.GetIssueLabels(p.owner, p.repo, p.index, gitea.ListLabelsOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing labels: %w", err)
	}
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		out = append(out, l.Name)
	}
	return out, nil
}

// SetLabels implements providers.Labeler. Gitea labels are referenced by id,
// so names the repository does not define are skipped.
func (p *Provider) SetLabels(ctx context.Context, labels []string) error {
	repoLabels, _, err := p.client.ListRepoLabels(p.owner, p.repo, gitea.ListLabelsOptions{ListOptions: gitea.ListOptions{Page: -1}})
	if err != nil {
		return fmt.Errorf("listing repository labels: %w", err)
	}
	ids := make(map[string]int64, len(repoLabels))
	for _, l := range repoLabels {
		ids[strings.ToLower(l.Name)] = l.ID
	}
	var opt gitea.IssueLabelsOption
	for _, name := range labels {
		id, ok := ids[strings.ToLower(name)]
		if !ok {
			clog.FromContext(ctx).With("label", name).Warn("Label is not defined in the repository, skipping")
			continue
		}
		opt.Labels = append(opt.Labels, id)
	}
	if _, _, err := p.client.ReplaceIssueLabels(p.owner, p.repo, p.index, opt); err != nil {
		return fmt.Errorf("setting labels: %w", err)
	}
	return nil
}

// PublishCodeSuggestions implements providers.Suggester.
func (p *Provider) PublishCodeSuggestions(_ context.Context, suggestions []providers.CodeSuggestion) error {
	pr, err := p.pullRequest()
	if err != nil {
		return err
	}
	_, head := branch(pr.Head)
	opt := gitea.CreatePullReviewOptions{State: gitea.ReviewStateComment, CommitID: head}
	for _, s := range suggestions {
		opt.Comments = append(opt.Comments, gitea.CreatePullReviewComment{
			Path:       s.RelevantFile,
			Body:       s.Body,
			NewLineNum: int64(s.EndLine),
		})
	}
	if _, _, err := p.client.CreatePullReview(p.owner, p.repo, p.index, opt); err != nil {
		return fmt.Errorf("publishing review: %w", err)
	}
	return nil
}

// AddEyesReaction implements providers.Reactor. Gitea reactions have no id,
// so zero is returned.
func (p *Provider) AddEyesReaction(_ context.Context, commentID int64) (int64, error) {
	if _, _, err := p.client.PostIssueCommentReaction(p.owner, p.repo, commentID, "eyes"); err != nil {
		return 0, fmt.Errorf("adding reaction: %w", err)
	}
	return 0, nil
}

// RemoveReaction implements providers.Reactor.
func (p *Provider) RemoveReaction(_ context.Context, commentID, _ int64) error {
	if _, err := p.client.DeleteIssueCommentReaction(p.owner, p.repo, commentID, "eyes"); err != nil {
		return fmt.Errorf("removing reaction: %w", err)
	}
	return nil
}
