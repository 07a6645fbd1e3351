/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package localprovider implements providers.Provider on a local git
// checkout. The current branch plays the pull request and its merge base
// with a target branch plays the base. Comments and descriptions are written
// to files.
package localprovider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"chainguard.dev/pragent/patch"
	"chainguard.dev/pragent/prdiff"
	"chainguard.dev/pragent/providers"
	"chainguard.dev/pragent/settings"
	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// Name selects this provider in config.git_provider.
const Name = "local"

const maxDescription = 200

// ErrDirty is returned when the checkout has uncommitted changes.
var ErrDirty = errors.New("the repository has uncommitted changes; commit or stash them first")

// Config locates the checkout and the output files.
type Config struct {
	// Path is any directory inside the checkout. Defaults to ".".
	Path            string
	ReviewPath      string
	DescriptionPath string
}

// ConfigFromStore reads the local section of s.
func ConfigFromStore(s *settings.Store) Config {
	return Config{
		ReviewPath:      s.String("local.review_path"),
		DescriptionPath: s.String("local.description_path"),
	}
}

// Provider is the current branch of a local checkout.
type Provider struct {
	repo            *git.Repository
	root            string
	headBranch      string
	targetBranch    string
	head            *object.Commit
	base            *object.Commit
	reviewPath      string
	descriptionPath string

	mu    sync.Mutex
	files []patch.FilePatch
}

var (
	_ providers.Provider   = (*Provider)(nil)
	_ providers.Describer  = (*Provider)(nil)
	_ providers.FileReader = (*Provider)(nil)
)

// New opens the checkout and compares its current branch with targetBranch.
func New(targetBranch string, cfg Config) (*Provider, error) {
	path := cfg.Path
	if path == "" {
		path = "."
	}
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", path, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("opening worktree: %w", err)
	}
	if err := checkClean(wt); err != nil {
		return nil, err
	}

	headRef, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}
	head, err := repo.CommitObject(headRef.Hash())
	if err != nil {
		return nil, fmt.Errorf("reading HEAD commit: %w", err)
	}
	targetRef, err := repo.Reference(plumbing.NewBranchReferenceName(targetBranch), true)
	if err != nil {
		return nil, fmt.Errorf("branch %s does not exist: %w", targetBranch, err)
	}
	target, err := repo.CommitObject(targetRef.Hash())
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", targetBranch, err)
	}
	bases, err := head.MergeBase(target)
	if err != nil {
		return nil, fmt.Errorf("computing merge base with %s: %w", targetBranch, err)
	}
	if len(bases) == 0 {
		return nil, fmt.Errorf("HEAD and %s share no history", targetBranch)
	}

	root := wt.Filesystem.Root()
	p := &Provider{
		repo:            repo,
		root:            root,
		headBranch:      headRef.Name().Short(),
		targetBranch:    targetBranch,
		head:            head,
		base:            bases[0],
		reviewPath:      cfg.ReviewPath,
		descriptionPath: cfg.DescriptionPath,
	}
	if p.reviewPath == "" {
		p.reviewPath = filepath.Join(root, "review.md")
	}
	if p.descriptionPath == "" {
		p.descriptionPath = filepath.Join(root, "description.md")
	}
	return p, nil
}

// checkClean ignores untracked files, which include earlier outputs.
func checkClean(wt *git.Worktree) error {
	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("reading worktree status: %w", err)
	}
	for _, s := range status {
		if s.Staging == git.Untracked && s.Worktree == git.Untracked {
			continue
		}
		if s.Staging != git.Unmodified || s.Worktree != git.Unmodified {
			return ErrDirty
		}
	}
	return nil
}

// Name implements providers.Provider.
func (p *Provider) Name() string { return Name }

// ReviewPath is where published comments are written.
func (p *Provider) ReviewPath() string { return p.reviewPath }

// DescriptionPath is where published descriptions are written.
func (p *Provider) DescriptionPath() string { return p.descriptionPath }

// commits returns the commits on HEAD since the merge base, newest first.
func (p *Provider) commits() ([]*object.Commit, error) {
	iter, err := p.repo.Log(&git.LogOptions{From: p.head.Hash})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []*object.Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if c.Hash == p.base.Hash {
			return storer.ErrStop
		}
		out = append(out, c)
		return nil
	})
	return out, err
}

// PR implements providers.Provider. The branch name is the title and the
// commit messages, clipped, are the description.
func (p *Provider) PR(context.Context) (*providers.PR, error) {
	commits, err := p.commits()
	if err != nil {
		return nil, fmt.Errorf("listing commits: %w", err)
	}
	msgs := make([]string, 0, len(commits))
	for _, c := range commits {
		msgs = append(msgs, c.Message)
	}
	desc := strings.Join(msgs, " ")
	if len(desc) > maxDescription {
		desc = desc[:maxDescription]
	}
	return &providers.PR{
		Title:        p.headBranch,
		Description:  desc,
		Author:       p.head.Author.Name,
		SourceBranch: p.headBranch,
		TargetBranch: p.targetBranch,
		BaseSHA:      p.base.Hash.String(),
		HeadSHA:      p.head.Hash.String(),
		State:        "open",
		CreatedAt:    p.head.Author.When,
		UpdatedAt:    p.head.Committer.When,
	}, nil
}

// DiffFiles implements prdiff.Source.
func (p *Provider) DiffFiles(ctx context.Context) ([]patch.FilePatch, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.files != nil {
		return p.files, nil
	}

	diff, err := p.base.PatchContext(ctx, p.head)
	if err != nil {
		return nil, fmt.Errorf("diffing %s..%s: %w", p.targetBranch, p.headBranch, err)
	}
	files, err := patch.SplitUnifiedDiff(diff.String())
	if err != nil {
		return nil, err
	}
	for i := range files {
		f := &files[i]
		log := clog.FromContext(ctx).With("file", f.Filename)
		if f.EditType != patch.Added {
			name := f.Filename
			if f.OldFilename != "" {
				name = f.OldFilename
			}
			if f.Base, err = contents(p.base, name); err != nil {
				log.With("error", err).Warn("Failed to read base file")
			}
		}
		if f.EditType != patch.Deleted {
			if f.Head, err = contents(p.head, f.Filename); err != nil {
				log.With("error", err).Warn("Failed to read head file")
			}
		}
	}
	p.files = files
	return files, nil
}

func contents(c *object.Commit, path string) (string, error) {
	f, err := c.File(path)
	if errors.Is(err, object.ErrFileNotFound) {
		return "", fmt.Errorf("%s: %w", path, providers.ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return f.Contents()
}

// Languages implements prdiff.Source as the share of files per language at
// HEAD, in percent.
func (p *Provider) Languages(context.Context) (map[string]int, error) {
	tree, err := p.head.Tree()
	if err != nil {
		return nil, fmt.Errorf("reading tree: %w", err)
	}
	counts := map[string]int{}
	var total int
	err = tree.Files().ForEach(func(f *object.File) error {
		total++
		if lang := prdiff.LanguageOf(f.Name); lang != "" {
			counts[lang]++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking tree: %w", err)
	}
	out := make(map[string]int, len(counts))
	for lang, n := range counts {
		out[lang] = n * 100 / total
	}
	return out, nil
}

// CommitMessages implements providers.Provider, oldest commit first.
func (p *Provider) CommitMessages(context.Context) (string, error) {
	commits, err := p.commits()
	if err != nil {
		return "", fmt.Errorf("listing commits: %w", err)
	}
	msgs := make([]string, 0, len(commits))
	for i := len(commits) - 1; i >= 0; i-- {
		msgs = append(msgs, fmt.Sprintf("%d. %s", len(msgs)+1, strings.TrimSpace(commits[i].Message)))
	}
	return strings.Join(msgs, "\n"), nil
}

// RepoSettings implements providers.Provider by reading .pr_agent.toml at
// HEAD.
func (p *Provider) RepoSettings(context.Context) ([]byte, error) {
	content, err := contents(p.head, ".pr_agent.toml")
	if errors.Is(err, providers.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(content), nil
}

// FileContent implements providers.FileReader. ref is any revision git
// understands.
func (p *Provider) FileContent(_ context.Context, path, ref string) (string, error) {
	hash, err := p.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", ref, err)
	}
	c, err := p.repo.CommitObject(*hash)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", ref, err)
	}
	return contents(c, path)
}

// PublishComment implements providers.Provider by overwriting the review
// file.
func (p *Provider) PublishComment(_ context.Context, body string) (*providers.Comment, error) {
	if err := os.WriteFile(p.reviewPath, []byte(body), 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", p.reviewPath, err)
	}
	return &providers.Comment{ID: 1, Body: body, URL: "file://" + p.reviewPath}, nil
}

// Comments implements providers.Provider. A checkout has no comments.
func (p *Provider) Comments(context.Context) ([]providers.Comment, error) {
	return nil, nil
}

// EditComment implements providers.Provider.
func (p *Provider) EditComment(ctx context.Context, c *providers.Comment, body string) error {
	if _, err := p.PublishComment(ctx, body); err != nil {
		return err
	}
	c.Body = body
	return nil
}

// DeleteComment implements providers.Provider. The next published comment
// replaces the file, so this does nothing.
func (p *Provider) DeleteComment(context.Context, *providers.Comment) error {
	return nil
}

// IsSupported implements providers.Provider.
func (p *Provider) IsSupported(c providers.Capability) bool {
	return c == providers.CapEditDescription
}

// PublishDescription implements providers.Describer.
func (p *Provider) PublishDescription(_ context.Context, title, body string) error {
	if err := os.WriteFile(p.descriptionPath, []byte(title+"\n"+body), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", p.descriptionPath, err)
	}
	return nil
}
