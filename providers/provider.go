/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package providers

import (
	"context"
	"errors"
	"time"

	"chainguard.dev/pragent/prdiff"
)

var (
	// ErrUnsupportedURL is returned when a pull request URL cannot be parsed.
	ErrUnsupportedURL = errors.New("unsupported pull request URL")
	// ErrUnknownProvider is returned for a git_provider with no implementation.
	ErrUnknownProvider = errors.New("unknown git provider")
	// ErrNotFound is returned when a file or comment does not exist.
	ErrNotFound = errors.New("not found")
)

// PR is the state of a pull request.
type PR struct {
	Number       int
	Title        string
	Description  string
	Author       string
	SourceBranch string
	TargetBranch string
	BaseSHA      string
	HeadSHA      string
	State        string
	Draft        bool
	Merged       bool
	Labels       []string
	URL          string
	// LatestCommitURL links to the head commit.
	LatestCommitURL string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Comment is a conversation comment on a pull request.
type Comment struct {
	ID     int64
	Body   string
	URL    string
	Author string
}

// Capability names an optional provider feature.
type Capability string

const (
	CapGFMMarkdown      Capability = "gfm_markdown"
	CapIssueComments    Capability = "get_issue_comments"
	CapInlineComments   Capability = "publish_inline_comments"
	CapLabels           Capability = "get_labels"
	CapEditDescription  Capability = "edit_description"
	CapReactions        Capability = "reactions"
	CapCommentReplies   Capability = "comment_replies"
	CapCommitChangelogs Capability = "commit_changelog"
)

// Provider is a git hosting backend bound to one pull request.
type Provider interface {
	prdiff.Source

	// Name is the git_provider value that selects this backend.
	Name() string
	PR(ctx context.Context) (*PR, error)
	// CommitMessages returns the numbered commit messages of the pull request.
	CommitMessages(ctx context.Context) (string, error)
	// RepoSettings returns the repository's .pr_agent.toml, or nil when it
	// has none.
	RepoSettings(ctx context.Context) ([]byte, error)

	PublishComment(ctx context.Context, body string) (*Comment, error)
	Comments(ctx context.Context) ([]Comment, error)
	EditComment(ctx context.Context, c *Comment, body string) error
	DeleteComment(ctx context.Context, c *Comment) error

	IsSupported(c Capability) bool
}

// Describer publishes a new title and description.
type Describer interface {
	PublishDescription(ctx context.Context, title, body string) error
}

// Labeler reads and replaces pull request labels.
type Labeler interface {
	Labels(ctx context.Context) ([]string, error)
	SetLabels(ctx context.Context, labels []string) error
}

// CodeSuggestion is a comment anchored to lines of the new file.
type CodeSuggestion struct {
	Body         string
	RelevantFile string
	StartLine    int
	EndLine      int
}

// Suggester publishes comments anchored to code.
type Suggester interface {
	PublishCodeSuggestions(ctx context.Context, suggestions []CodeSuggestion) error
}

// Reactor acknowledges a command comment with a reaction.
type Reactor interface {
	// AddEyesReaction returns the id of the new reaction.
	AddEyesReaction(ctx context.Context, commentID int64) (int64, error)
	RemoveReaction(ctx context.Context, commentID, reactionID int64) error
}

// Replier answers in the thread of a review comment.
type Replier interface {
	ReplyToComment(ctx context.Context, commentID int64, body string) error
}

// FileReader reads a repository file at ref. An empty ref reads the default
// branch. Missing files return ErrNotFound.
type FileReader interface {
	FileContent(ctx context.Context, path, ref string) (string, error)
}
