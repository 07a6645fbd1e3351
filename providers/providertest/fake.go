/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package providertest provides an in-memory provider for tests.
package providertest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"chainguard.dev/pragent/patch"
	"chainguard.dev/pragent/providers"
)

// Fake is a providers.Provider backed by memory. It implements every
// optional provider interface and records what was published.
type Fake struct {
	PRInfo        providers.PR
	Files         []patch.FilePatch
	LanguageBytes map[string]int
	Commits       []string
	Settings      []byte
	RepoFiles     map[string]string
	// Supported lists capabilities; nil supports everything.
	Supported []providers.Capability
	// Err is returned by every read.
	Err error

	mu          sync.Mutex
	nextID      int64
	comments    []providers.Comment
	labels      []string
	suggestions []providers.CodeSuggestion
	replies     map[int64][]string
	reactions   map[int64]int64
	title, desc string
	described   bool
}

var (
	_ providers.Provider   = (*Fake)(nil)
	_ providers.Describer  = (*Fake)(nil)
	_ providers.Labeler    = (*Fake)(nil)
	_ providers.Suggester  = (*Fake)(nil)
	_ providers.Reactor    = (*Fake)(nil)
	_ providers.Replier    = (*Fake)(nil)
	_ providers.FileReader = (*Fake)(nil)
)

// Name implements providers.Provider.
func (f *Fake) Name() string { return "fake" }

// PR implements providers.Provider.
func (f *Fake) PR(context.Context) (*providers.PR, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	pr := f.PRInfo
	if f.labels != nil {
		pr.Labels = slices.Clone(f.labels)
	}
	if f.described {
		pr.Title, pr.Description = f.title, f.desc
	}
	return &pr, nil
}

// DiffFiles implements prdiff.Source.
func (f *Fake) DiffFiles(context.Context) ([]patch.FilePatch, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return slices.Clone(f.Files), nil
}

// Languages implements prdiff.Source.
func (f *Fake) Languages(context.Context) (map[string]int, error) {
	return f.LanguageBytes, f.Err
}

// CommitMessages implements providers.Provider.
func (f *Fake) CommitMessages(context.Context) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	out := ""
	for i, m := range f.Commits {
		if i > 0 {
			out += "\n"
		}
		out += fmt.Sprintf("%d. %s", i+1, m)
	}
	return out, nil
}

// RepoSettings implements providers.Provider.
func (f *Fake) RepoSettings(context.Context) ([]byte, error) { return f.Settings, f.Err }

// PublishComment implements providers.Provider.
func (f *Fake) PublishComment(_ context.Context, body string) (*providers.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c := providers.Comment{
		ID:     f.nextID,
		Body:   body,
		URL:    fmt.Sprintf("https://example.com/comments/%d", f.nextID),
		Author: "pr-agent",
	}
	f.comments = append(f.comments, c)
	return &c, nil
}

// Comments implements providers.Provider.
func (f *Fake) Comments(context.Context) ([]providers.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.comments), nil
}

// EditComment implements providers.Provider.
func (f *Fake) EditComment(_ context.Context, c *providers.Comment, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.comments {
		if f.comments[i].ID == c.ID {
			f.comments[i].Body = body
			return nil
		}
	}
	return fmt.Errorf("comment %d: %w", c.ID, providers.ErrNotFound)
}

// DeleteComment implements providers.Provider.
func (f *Fake) DeleteComment(_ context.Context, c *providers.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.comments {
		if f.comments[i].ID == c.ID {
			f.comments = slices.Delete(f.comments, i, i+1)
			return nil
		}
	}
	return fmt.Errorf("comment %d: %w", c.ID, providers.ErrNotFound)
}

// IsSupported implements providers.Provider.
func (f *Fake) IsSupported(c providers.Capability) bool {
	return f.Supported == nil || slices.Contains(f.Supported, c)
}

// PublishDescription implements providers.Describer.
func (f *Fake) PublishDescription(_ context.Context, title, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.title, f.desc, f.described = title, body, true
	return nil
}

// Labels implements providers.Labeler.
func (f *Fake) Labels(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.labels == nil {
		f.labels = slices.Clone(f.PRInfo.Labels)
	}
	return slices.Clone(f.labels), nil
}

// SetLabels implements providers.Labeler.
func (f *Fake) SetLabels(_ context.Context, labels []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.labels = slices.Clone(labels)
	return nil
}

// PublishCodeSuggestions implements providers.Suggester.
func (f *Fake) PublishCodeSuggestions(_ context.Context, s []providers.CodeSuggestion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suggestions = append(f.suggestions, s...)
	return nil
}

// AddEyesReaction implements providers.Reactor.
func (f *Fake) AddEyesReaction(_ context.Context, commentID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reactions == nil {
		f.reactions = map[int64]int64{}
	}
	f.nextID++
	f.reactions[commentID] = f.nextID
	return f.nextID, nil
}

// RemoveReaction implements providers.Reactor.
func (f *Fake) RemoveReaction(_ context.Context, commentID, reactionID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reactions[commentID] != reactionID {
		return fmt.Errorf("reaction %d: %w", reactionID, providers.ErrNotFound)
	}
	delete(f.reactions, commentID)
	return nil
}

// ReplyToComment implements providers.Replier.
func (f *Fake) ReplyToComment(_ context.Context, commentID int64, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replies == nil {
		f.replies = map[int64][]string{}
	}
	f.replies[commentID] = append(f.replies[commentID], body)
	return nil
}

// FileContent implements providers.FileReader.
func (f *Fake) FileContent(_ context.Context, path, _ string) (string, error) {
	content, ok := f.RepoFiles[path]
	if !ok {
		return "", fmt.Errorf("%s: %w", path, providers.ErrNotFound)
	}
	return content, nil
}

// Published returns the bodies of the current comments in order.
func (f *Fake) Published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.comments))
	for _, c := range f.comments {
		out = append(out, c.Body)
	}
	return out
}

// Description returns the published title and body, and whether one was
// published.
func (f *Fake) Description() (string, string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.title, f.desc, f.described
}

// Suggestions returns the published code suggestions.
func (f *Fake) Suggestions() []providers.CodeSuggestion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.suggestions)
}

// Replies returns the replies posted under commentID.
func (f *Fake) Replies(commentID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.replies[commentID])
}

// Reactions returns the active reaction per comment.
func (f *Fake) Reactions() map[int64]int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int64]int64, len(f.reactions))
	for k, v := range f.reactions {
		out[k] = v
	}
	return out
}
