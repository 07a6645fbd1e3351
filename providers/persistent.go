/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"
)

// Persistent configures PublishPersistent.
type Persistent struct {
	// Header is the first line of the comment, used to find it again.
	Header string
	// Name is the tool name shown in update notes ("review").
	Name string
	// UpdateHeader adds the latest commit under the header.
	UpdateHeader bool
	// FinalUpdateMessage publishes a short comment linking the updated one.
	FinalUpdateMessage bool
}

// PublishPersistent edits the comment starting with opts.Header, or
// publishes body as a new comment when there is none.
func PublishPersistent(ctx context.Context, p Provider, body string, opts Persistent) error {
	log := clog.FromContext(ctx)

	comments, err := p.Comments(ctx)
	if err != nil {
		log.With("error", err).Warn("Failed to list comments, publishing a new one")
		_, err := p.PublishComment(ctx, body)
		return err
	}
	for i := range comments {
		c := &comments[i]
		if !strings.HasPrefix(c.Body, opts.Header) {
			continue
		}

		pr, err := p.PR(ctx)
		if err != nil {
			return fmt.Errorf("fetching pull request: %w", err)
		}
		updated := body
		if opts.UpdateHeader {
			header := fmt.Sprintf("%s\n\n#### (%s updated until commit %s)\n", opts.Header, capitalize(opts.Name), pr.LatestCommitURL)
			updated = strings.ReplaceAll(body, opts.Header, header)
		}
		log.With("comment", c.URL).With("name", opts.Name).Info("Updating persistent comment")
		if err := p.EditComment(ctx, c, updated); err != nil {
			return fmt.Errorf("editing persistent comment: %w", err)
		}
		if opts.FinalUpdateMessage {
			note := fmt.Sprintf("**[Persistent %s](%s)** updated to latest commit %s", opts.Name, c.URL, pr.LatestCommitURL)
			if _, err := p.PublishComment(ctx, note); err != nil {
				return fmt.Errorf("publishing update note: %w", err)
			}
		}
		return nil
	}
	_, err = p.PublishComment(ctx, body)
	return err
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
