/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chainguard.dev/pragent/agents/metaagent"
	"chainguard.dev/pragent/patch"
	"chainguard.dev/pragent/providers"
	"chainguard.dev/pragent/settings"
	"github.com/chainguard-dev/clog"
)

// Ask answers a free form question about the pull request.
func Ask(ctx context.Context, env Env, args []string) error {
	s := env.Settings
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return ErrNoQuestion
	}

	done := progress(ctx, env, "Preparing answer...")
	defer done()

	pr, err := loadPR(ctx, env)
	if err != nil {
		return err
	}
	system, user := prompt(s, "pr_questions_prompt")
	vars := pr.with(map[string]string{"questions": question})

	answer, err := metaagent.Run(ctx, env.Router, s.Models(settings.ModelRegular), func(ctx context.Context, call metaagent.Call) (string, error) {
		return diffPrediction(ctx, env, call, system, user, vars)
	})
	if errors.Is(err, errEmptyDiff) {
		clog.FromContext(ctx).Info("Empty diff, not answering")
		return nil
	}
	if err != nil {
		return fmt.Errorf("predicting answer: %w", err)
	}
	body := fmt.Sprintf("### **Ask**❓\n%s\n\n### **Answer:**\n%s\n\n", question, sanitizeAnswer(answer))
	return publish(ctx, env, body, false, providers.Persistent{})
}

// AskLine answers a question about lines of one file. The location comes
// from the file_name, line_start, line_end and side settings, and the answer
// goes to the thread of comment_id when the provider supports replies.
func AskLine(ctx context.Context, env Env, args []string) error {
	s := env.Settings
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return ErrNoQuestion
	}
	fileName := s.String("file_name")
	start, end := s.Int("line_start", 0), s.Int("line_end", 0)
	side := patch.Side(s.String("side"))
	if side == "" {
		side = patch.Right
	}
	if end < start {
		end = start
	}

	pr, err := loadPR(ctx, env)
	if err != nil {
		return err
	}
	files, err := env.Provider.DiffFiles(ctx)
	if err != nil {
		return fmt.Errorf("listing changed files: %w", err)
	}
	var hunk, selected string
	for _, f := range files {
		if f.Filename == fileName {
			hunk, selected = patch.ExtractHunkLines(f.Patch, f.Filename, start, end, side)
			break
		}
	}
	if hunk == "" {
		return fmt.Errorf("no hunk of %q contains line %d: %w", fileName, start, providers.ErrNotFound)
	}

	system, user := prompt(s, "pr_line_questions_prompt")
	vars := pr.with(map[string]string{
		"full_hunk":            hunk,
		"selected_lines":       selected,
		"conversation_history": "",
		"question":             question,
	})
	answer, err := metaagent.Run(ctx, env.Router, s.Models(settings.ModelRegular), func(ctx context.Context, call metaagent.Call) (string, error) {
		return chat(ctx, call, system, user, vars)
	})
	if err != nil {
		return fmt.Errorf("predicting answer: %w", err)
	}
	answer = sanitizeAnswer(answer)

	if !s.Bool("config.publish_output") {
		clog.FromContext(ctx).With("answer", answer).Info("Not publishing answer")
		return nil
	}
	commentID := int64(s.Int("comment_id", 0))
	if r, ok := env.Provider.(providers.Replier); ok && commentID > 0 && env.Provider.IsSupported(providers.CapCommentReplies) {
		if err := r.ReplyToComment(ctx, commentID, answer); err != nil {
			return fmt.Errorf("replying to comment %d: %w", commentID, err)
		}
		return nil
	}
	_, err = env.Provider.PublishComment(ctx, answer)
	return err
}
