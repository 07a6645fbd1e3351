/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package gitlabprovider implements providers.Provider on the GitLab REST
// API.
package gitlabprovider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"chainguard.dev/pragent/patch"
	"chainguard.dev/pragent/providers"
	"chainguard.dev/pragent/settings"
	"github.com/chainguard-dev/clog"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// Name selects this provider in config.git_provider.
const Name = "gitlab"

// Config holds the GitLab connection settings.
type Config struct {
	URL   string
	Token string
	// HTTPClient replaces the client's pooled transport when set.
	HTTPClient *http.Client
}

var errNoToken = errors.New("gitlab.personal_access_token is required")

// perPage is the page size for list calls.
const perPage = 100

// ConfigFromStore reads the gitlab section of s.
func ConfigFromStore(s *settings.Store) Config {
	return Config{
		URL:   s.String("gitlab.url"),
		Token: s.String("gitlab.personal_access_token"),
	}
}

// ParseURL extracts the project path and merge request iid from a URL such
// as https://gitlab.com/group/sub/project/-/merge_requests/12.
func ParseURL(mrURL string) (project string, iid int, err error) {
	u, err := url.Parse(mrURL)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", providers.ErrUnsupportedURL, err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	i := -1
	for j, p := range parts {
		if p == "merge_requests" {
			i = j
			break
		}
	}
	if i < 1 || i+1 >= len(parts) {
		return "", 0, fmt.Errorf("%w: %s", providers.ErrUnsupportedURL, mrURL)
	}
	iid, err = strconv.Atoi(parts[i+1])
	if err != nil {
		return "", 0, fmt.Errorf("%w: bad merge request number in %s", providers.ErrUnsupportedURL, mrURL)
	}
	path := parts[:i]
	if path[len(path)-1] == "-" {
		path = path[:len(path)-1]
	}
	if len(path) < 2 {
		return "", 0, fmt.Errorf("%w: %s", providers.ErrUnsupportedURL, mrURL)
	}
	return strings.Join(path, "/"), iid, nil
}

// Provider is a merge request on GitLab.
type Provider struct {
	client  *gitlab.Client
	base    string
	project string
	iid     int

	mu    sync.Mutex
	mr    *gitlab.MergeRequest
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

// New binds a provider to the merge request at mrURL.
func New(mrURL string, cfg Config) (*Provider, error) {
	project, iid, err := ParseURL(mrURL)
	if err != nil {
		return nil, err
	}
	if cfg.Token == "" {
		return nil, errNoToken
	}
	base := strings.TrimSuffix(cfg.URL, "/")
	if base == "" {
		u, _ := url.Parse(mrURL)
		base = u.Scheme + "://" + u.Host
	}
	opts := []gitlab.ClientOptionFunc{gitlab.WithBaseURL(base)}
	if cfg.HTTPClient != nil {
		opts = append(opts, gitlab.WithHTTPClient(cfg.HTTPClient))
	}
	client, err := gitlab.NewClient(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}
	return &Provider{
		client:  client,
		base:    base,
		project: project,
		iid:     iid,
	}, nil
}

// Name implements providers.Provider.
func (p *Provider) Name() string { return Name }

// apiError maps a 404 onto providers.ErrNotFound.
func apiError(resp *gitlab.Response, err error) error {
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w", providers.ErrNotFound, err)
	}
	return err
}

// paginate calls fetch for every page until GitLab stops reporting a next
// page.
func paginate[T any](fetch func(page int) ([]T, *gitlab.Response, error)) ([]T, error) {
	var out []T
	for page := 1; page != 0; {
		items, resp, err := fetch(page)
		if err != nil {
			return nil, apiError(resp, err)
		}
		out = append(out, items...)
		page = resp.NextPage
	}
	return out, nil
}

func (p *Provider) mergeRequest(ctx context.Context) (*gitlab.MergeRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mr != nil {
		return p.mr, nil
	}
	mr, resp, err := p.client.MergeRequests.GetMergeRequest(p.project, p.iid, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetching %s!%d: %w", p.project, p.iid, apiError(resp, err))
	}
	p.mr = mr
	return mr, nil
}

// PR implements providers.Provider.
func (p *Provider) PR(ctx context.Context) (*providers.PR, error) {
	mr, err := p.mergeRequest(ctx)
	if err != nil {
		return nil, err
	}
	out := &providers.PR{
		Number:       mr.IID,
		Title:        mr.Title,
		Description:  mr.Description,
		SourceBranch: mr.SourceBranch,
		TargetBranch: mr.TargetBranch,
		BaseSHA:      mr.DiffRefs.BaseSha,
		HeadSHA:      mr.DiffRefs.HeadSha,
		State:        mr.State,
		Draft:        mr.Draft,
		Merged:       mr.State == "merged",
		Labels:       []string(mr.Labels),
		URL:          mr.WebURL,
	}
	if mr.Author != nil {
		out.Author = mr.Author.Username
	}
	if mr.DiffRefs.HeadSha != "" {
		out.LatestCommitURL = fmt.Sprintf("%s/%s/-/commit/%s", p.base, p.project, mr.DiffRefs.HeadSha)
	}
	if mr.CreatedAt != nil {
		out.CreatedAt = *mr.CreatedAt
	}
	if mr.UpdatedAt != nil {
		out.UpdatedAt = *mr.UpdatedAt
	}
	return out, nil
}

func editType(d *gitlab.MergeRequestDiff) patch.EditType {
	switch {
	case d.NewFile:
		return patch.Added
	case d.DeletedFile:
		return patch.Deleted
	case d.RenamedFile:
		return patch.Renamed
	default:
		return patch.Modified
	}
}

// DiffFiles implements prdiff.Source.
func (p *Provider) DiffFiles(ctx context.Context) ([]patch.FilePatch, error) {
	p.mu.Lock()
	cached := p.files
	p.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	mr, err := p.mergeRequest(ctx)
	if err != nil {
		return nil, err
	}
	diffs, err := paginate(func(page int) ([]*gitlab.MergeRequestDiff, *gitlab.Response, error) {
		opt := &gitlab.ListMergeRequestDiffsOptions{ListOptions: gitlab.ListOptions{Page: page, PerPage: perPage}}
		return p.client.MergeRequests.ListMergeRequestDiffs(p.project, p.iid, opt, gitlab.WithContext(ctx))
	})
	if err != nil {
		return nil, fmt.Errorf("listing diffs: %w", err)
	}
	files := make([]patch.FilePatch, 0, len(diffs))
	for _, d := range diffs {
		f := patch.FilePatch{
			Filename: d.NewPath,
			Patch:    d.Diff,
			EditType: editType(d),
		}
		if f.EditType == patch.Renamed {
			f.OldFilename = d.OldPath
		}
		f.NumPlusLines, f.NumMinusLines = patch.CountLines(d.Diff)
		log := clog.FromContext(ctx).With("file", f.Filename)
		if f.EditType != patch.Added {
			if f.Base, err = p.FileContent(ctx, d.OldPath, mr.DiffRefs.BaseSha); err != nil {
				log.With("error", err).Warn("Failed to read base file")
			}
		}
		if f.EditType != patch.Deleted {
			if f.Head, err = p.FileContent(ctx, d.NewPath, mr.DiffRefs.HeadSha); err != nil {
				log.With("error", err).Warn("Failed to read head file")
			}
		}
		files = append(files, f)
	}

	p.mu.Lock()
	p.files = files
	p.mu.Unlock()
	return files, nil
}

// Languages implements prdiff.Source. GitLab reports percentages, which are
// scaled to keep their order.
func (p *Provider) Languages(ctx context.Context) (map[string]int, error) {
	langs, resp, err := p.client.Projects.GetProjectLanguages(p.project, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("listing languages: %w", apiError(resp, err))
	}
	out := make(map[string]int)
	if langs == nil {
		return out, nil
	}
	for k, v := range *langs {
		out[k] = int(math.Round(float64(v) * 100))
	}
	return out, nil
}

// CommitMessages implements providers.Provider.
func (p *Provider) CommitMessages(ctx context.Context) (string, error) {
	commits, err := paginate(func(page int) ([]*gitlab.Commit, *gitlab.Response, error) {
		opt := &gitlab.GetMergeRequestCommitsOptions{Page: page, PerPage: perPage}
		return p.client.MergeRequests.GetMergeRequestCommits(p.project, p.iid, opt, gitlab.WithContext(ctx))
	})
	if err != nil {
		return "", fmt.Errorf("listing commits: %w", err)
	}
	msgs := make([]string, 0, len(commits))
	for i, c := range commits {
		msgs = append(msgs, fmt.Sprintf("%d. %s", i+1, c.Message))
	}
	return strings.Join(msgs, "\n"), nil
}

// RepoSettings implements providers.Provider. The file is read from the
// target branch.
func (p *Provider) RepoSettings(ctx context.Context) ([]byte, error) {
	mr, err := p.mergeRequest(ctx)
	if err != nil {
		return nil, err
	}
	content, err := p.FileContent(ctx, ".pr_agent.toml", mr.TargetBranch)
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
	data, resp, err := p.client.RepositoryFiles.GetRawFile(p.project, path, &gitlab.GetRawFileOptions{Ref: gitlab.Ptr(ref)}, gitlab.WithContext(ctx))
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("%s: %w", path, providers.ErrNotFound)
		}
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

func (p *Provider) comment(ctx context.Context, n *gitlab.Note) *providers.Comment {
	out := &providers.Comment{ID: int64(n.ID), Body: n.Body, Author: n.Author.Username}
	if mr, err := p.mergeRequest(ctx); err == nil {
		out.URL = fmt.Sprintf("%s#note_%d", mr.WebURL, n.ID)
	}
	return out
}

// PublishComment implements providers.Provider.
func (p *Provider) PublishComment(ctx context.Context, body string) (*providers.Comment, error) {
	opt := &gitlab.CreateMergeRequestNoteOptions{Body: gitlab.Ptr(body)}
	n, resp, err := p.client.Notes.CreateMergeRequestNote(p.project, p.iid, opt, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("publishing comment: %w", apiError(resp, err))
	}
	return p.comment(ctx, n), nil
}

// Comments implements providers.Provider. System notes are skipped.
func (p *Provider) Comments(ctx context.Context) ([]providers.Comment, error) {
	notes, err := paginate(func(page int) ([]*gitlab.Note, *gitlab.Response, error) {
		opt := &gitlab.ListMergeRequestNotesOptions{
			ListOptions: gitlab.ListOptions{Page: page, PerPage: perPage},
			Sort:        gitlab.Ptr("asc"),
		}
		return p.client.Notes.ListMergeRequestNotes(p.project, p.iid, opt, gitlab.WithContext(ctx))
	})
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	var out []providers.Comment
	for _, n := range notes {
		if n.System {
			continue
		}
		out = append(out, *p.comment(ctx, n))
	}
	return out, nil
}

// EditComment implements providers.Provider.
func (p *Provider) EditComment(ctx context.Context, c *providers.Comment, body string) error {
	opt := &gitlab.UpdateMergeRequestNoteOptions{Body: gitlab.Ptr(body)}
	if _, resp, err := p.client.Notes.UpdateMergeRequestNote(p.project, p.iid, int(c.ID), opt, gitlab.WithContext(ctx)); err != nil {
		return fmt.Errorf("editing comment %d: %w", c.ID, apiError(resp, err))
	}
	c.Body = body
	return nil
}

// DeleteComment implements providers.Provider.
func (p *Provider) DeleteComment(ctx context.Context, c *providers.Comment) error {
	if resp, err := p.client.Notes.DeleteMergeRequestNote(p.project, p.iid, int(c.ID), gitlab.WithContext(ctx)); err != nil {
		return fmt.Errorf("deleting comment %d: %w", c.ID, apiError(resp, err))
	}
	return nil
}

// IsSupported implements providers.Provider.
func (p *Provider) IsSupported(c providers.Capability) bool {
	return c != providers.CapCommitChangelogs
}

// PublishDescription implements providers.Describer.
func (p *Provider) PublishDescription(ctx context.Context, title, body string) error {
	opt := &gitlab.UpdateMergeRequestOptions{Title: gitlab.Ptr(title), Description: gitlab.Ptr(body)}
	mr, resp, err := p.client.MergeRequests.UpdateMergeRequest(p.project, p.iid, opt, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("editing description: %w", apiError(resp, err))
	}
	p.mu.Lock()
	p.mr = mr
	p.mu.Unlock()
	return nil
}

// Labels implements providers.Labeler.
func (p *Provider) Labels(ctx context.Context) ([]string, error) {
	mr, resp, err := p.client.MergeRequests.GetMergeRequest(p.project, p.iid, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("listing labels: %w", apiError(resp, err))
	}
	return []string(mr.Labels), nil
}

// SetLabels implements providers.Labeler.
func (p *Provider) SetLabels(ctx context.Context, labels []string) error {
	opt := &gitlab.UpdateMergeRequestOptions{Labels: gitlab.Ptr(gitlab.LabelOptions(labels))}
	if _, resp, err := p.client.MergeRequests.UpdateMergeRequest(p.project, p.iid, opt, gitlab.WithContext(ctx)); err != nil {
		return fmt.Errorf("setting labels: %w", apiError(resp, err))
	}
	return nil
}

// PublishCodeSuggestions implements providers.Suggester. Each suggestion is
// its own discussion; an error is returned only when none was published.
func (p *Provider) PublishCodeSuggestions(ctx context.Context, suggestions []providers.CodeSuggestion) error {
	mr, err := p.mergeRequest(ctx)
	if err != nil {
		return err
	}
	var published int
	var errs []error
	for _, s := range suggestions {
		opt := &gitlab.CreateMergeRequestDiscussionOptions{
			Body: gitlab.Ptr(s.Body),
			Position: &gitlab.PositionOptions{
				BaseSHA:      gitlab.Ptr(mr.DiffRefs.BaseSha),
				StartSHA:     gitlab.Ptr(mr.DiffRefs.StartSha),
				HeadSHA:      gitlab.Ptr(mr.DiffRefs.HeadSha),
				PositionType: gitlab.Ptr("text"),
				NewPath:      gitlab.Ptr(s.RelevantFile),
				OldPath:      gitlab.Ptr(s.RelevantFile),
				NewLine:      gitlab.Ptr(s.EndLine),
			},
		}
		if _, resp, err := p.client.Discussions.CreateMergeRequestDiscussion(p.project, p.iid, opt, gitlab.WithContext(ctx)); err != nil {
			err = apiError(resp, err)
			clog.FromContext(ctx).With("file", s.RelevantFile, "line", s.EndLine, "error", err).Warn("Failed to publish code suggestion")
			errs = append(errs, err)
			continue
		}
		published++
	}
	if published == 0 && len(errs) > 0 {
		return fmt.Errorf("publishing code suggestions: %w", errors.Join(errs...))
	}
	return nil
}

// AddEyesReaction implements providers.Reactor.
func (p *Provider) AddEyesReaction(ctx context.Context, commentID int64) (int64, error) {
	opt := &gitlab.CreateAwardEmojiOptions{Name: "eyes"}
	award, resp, err := p.client.AwardEmoji.CreateMergeRequestAwardEmojiOnNote(p.project, p.iid, int(commentID), opt, gitlab.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("adding reaction: %w", apiError(resp, err))
	}
	return int64(award.ID), nil
}

// RemoveReaction implements providers.Reactor.
func (p *Provider) RemoveReaction(ctx context.Context, commentID, reactionID int64) error {
	if resp, err := p.client.AwardEmoji.DeleteMergeRequestAwardEmojiOnNote(p.project, p.iid, int(commentID), int(reactionID), gitlab.WithContext(ctx)); err != nil {
		return fmt.Errorf("removing reaction: %w", apiError(resp, err))
	}
	return nil
}

// ReplyToComment implements providers.Replier by adding a note to the
// discussion holding commentID.
func (p *Provider) ReplyToComment(ctx context.Context, commentID int64, body string) error {
	discussions, err := paginate(func(page int) ([]*gitlab.Discussion, *gitlab.Response, error) {
		opt := &gitlab.ListMergeRequestDiscussionsOptions{Page: page, PerPage: perPage}
		return p.client.Discussions.ListMergeRequestDiscussions(p.project, p.iid, opt, gitlab.WithContext(ctx))
	})
	if err != nil {
		return fmt.Errorf("listing discussions: %w", err)
	}
	for _, d := range discussions {
		for _, n := range d.Notes {
			if int64(n.ID) != commentID {
				continue
			}
			opt := &gitlab.AddMergeRequestDiscussionNoteOptions{Body: gitlab.Ptr(body)}
			if _, resp, err := p.client.Discussions.AddMergeRequestDiscussionNote(p.project, p.iid, d.ID, opt, gitlab.WithContext(ctx)); err != nil {
				return fmt.Errorf("replying to comment %d: %w", commentID, apiError(resp, err))
			}
			return nil
		}
	}
	return fmt.Errorf("comment %d: %w", commentID, providers.ErrNotFound)
}
