/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package tools

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"chainguard.dev/pragent/agents/metaagent"
	"chainguard.dev/pragent/agents/result"
	"chainguard.dev/pragent/providers"
	"chainguard.dev/pragent/settings"
	"github.com/chainguard-dev/clog"
)

// ReviewHeader starts every review comment.
const ReviewHeader = "## PR Reviewer Guide 🔍"

type reviewPrediction struct {
	Review review `yaml:"review"`
}

type review struct {
	Effort           string     `yaml:"estimated_effort_to_review_[1-5]"`
	Score            string     `yaml:"score"`
	RelevantTests    string     `yaml:"relevant_tests"`
	KeyIssues        []keyIssue `yaml:"key_issues_to_review"`
	SecurityConcerns string     `yaml:"security_concerns"`
	CanBeSplit       any        `yaml:"can_be_split"`
}

type keyIssue struct {
	RelevantFile string `yaml:"relevant_file"`
	Header       string `yaml:"issue_header"`
	Content      string `yaml:"issue_content"`
	StartLine    int    `yaml:"start_line"`
	EndLine      int    `yaml:"end_line"`
}

// AutoReview reviews a pull request for an automatic trigger. Nothing but the
// review itself is published.
func AutoReview(ctx context.Context, env Env, args []string) error {
	env.Settings.Set("config.is_auto_command", true)
	return Review(ctx, env, args)
}

// Review publishes a review guide: the effort to review, test and security
// observations and the key issues a reviewer should look at.
func Review(ctx context.Context, env Env, _ []string) error {
	s := env.Settings
	log := clog.FromContext(ctx)

	done := progress(ctx, env, "Preparing review...")
	defer done()

	pr, err := loadPR(ctx, env)
	if err != nil {
		return err
	}
	system, user := prompt(s, "pr_review_prompt")
	vars := pr.with(map[string]string{
		"extra_instructions": s.String("pr_reviewer.extra_instructions"),
		"num_max_findings":   strconv.Itoa(s.Int("pr_reviewer.num_max_findings", 3)),
	})

	text, err := metaagent.Run(ctx, env.Router, s.Models(settings.ModelRegular), func(ctx context.Context, call metaagent.Call) (string, error) {
		return diffPrediction(ctx, env, call, system, user, vars)
	})
	if errors.Is(err, errEmptyDiff) {
		log.Info("Empty diff, skipping review")
		return nil
	}
	if err != nil {
		return fmt.Errorf("predicting review: %w", err)
	}
	pred, err := result.DecodeYAML[reviewPrediction](ctx, text,
		result.WithRepairKeys("issue_header:", "issue_content:", "security_concerns:", "relevant_tests:"),
		result.WithKeyRange("review", "security_concerns"))
	if err != nil {
		return fmt.Errorf("parsing review: %w", err)
	}

	body := reviewMarkdown(pred.Review, s, env.Provider, pr.PR)
	if err := publish(ctx, env, body, s.Bool("pr_reviewer.persistent_comment"), providers.Persistent{
		Header:             ReviewHeader,
		Name:               "review",
		UpdateHeader:       true,
		FinalUpdateMessage: s.Bool("pr_reviewer.final_update_message"),
	}); err != nil {
		return fmt.Errorf("publishing review: %w", err)
	}

	if _, err := updateLabels(ctx, env, reviewLabels(pred.Review, s)); err != nil {
		log.With("error", err).Warn("Failed to update review labels")
	}
	return nil
}

// effortLevel reads the leading digit of an effort answer such as "3, because".
func effortLevel(effort string) int {
	effort = strings.TrimSpace(effort)
	if effort == "" {
		return 0
	}
	n, err := strconv.Atoi(effort[:1])
	if err != nil || n < 1 || n > 5 {
		return 0
	}
	return n
}

func hasSecurityConcern(concerns string) bool {
	c := strings.ToLower(strings.TrimSpace(concerns))
	return c != "" && c != "no" && c != "none" && !strings.HasPrefix(c, "no ") && !strings.HasPrefix(c, "no,")
}

func reviewLabels(r review, s *settings.Store) []string {
	var out []string
	if s.Bool("pr_reviewer.enable_review_labels_effort") {
		if n := effortLevel(r.Effort); n > 0 {
			out = append(out, fmt.Sprintf("%s [1-5]: %d", effortLabelPrefix, n))
		}
	}
	if s.Bool("pr_reviewer.enable_review_labels_security") && s.Bool("pr_reviewer.require_security_review") && hasSecurityConcern(r.SecurityConcerns) {
		out = append(out, securityLabel)
	}
	return out
}

func reviewMarkdown(r review, s *settings.Store, p providers.Provider, pr *providers.PR) string {
	gfm := p.IsSupported(providers.CapGFMMarkdown)
	var b strings.Builder
	b.WriteString(ReviewHeader + "\n\n")
	b.WriteString("Here are some key observations to aid the review process:\n\n")

	if s.Bool("pr_reviewer.require_estimate_effort_to_review") {
		if n := effortLevel(r.Effort); n > 0 {
			fmt.Fprintf(&b, "⏱️ **Estimated effort to review**: %d %s%s\n\n", n, strings.Repeat("🔵", n), strings.Repeat("⚪", 5-n))
		}
	}
	if s.Bool("pr_reviewer.require_score_review") && strings.TrimSpace(r.Score) != "" {
		fmt.Fprintf(&b, "🏅 **Score**: %s\n\n", strings.TrimSpace(r.Score))
	}
	if s.Bool("pr_reviewer.require_tests_review") && r.RelevantTests != "" {
		if strings.EqualFold(strings.TrimSpace(r.RelevantTests), "no") {
			b.WriteString("🧪 **No relevant tests**\n\n")
		} else {
			b.WriteString("🧪 **PR contains tests**\n\n")
		}
	}
	if s.Bool("pr_reviewer.require_security_review") {
		if hasSecurityConcern(r.SecurityConcerns) {
			fmt.Fprintf(&b, "🔒 **Security concerns**\n\n%s\n\n", strings.TrimSpace(r.SecurityConcerns))
		} else {
			b.WriteString("🔒 **No security concerns identified**\n\n")
		}
	}
	if themes, ok := r.CanBeSplit.([]any); ok && s.Bool("pr_reviewer.require_can_be_split_review") && len(themes) > 1 {
		fmt.Fprintf(&b, "🔀 **Multiple PR themes**: this PR could be split into %d smaller PRs\n\n", len(themes))
	}

	if len(r.KeyIssues) == 0 {
		b.WriteString("⚡ **No major issues detected**\n")
		return strings.TrimRight(b.String(), "\n")
	}
	b.WriteString("⚡ **Recommended focus areas for review**\n\n")
	for _, issue := range r.KeyIssues {
		header := strings.TrimSpace(issue.Header)
		content := strings.TrimSpace(issue.Content)
		loc := issueLocation(issue)
		link := issueLink(pr, issue)
		switch {
		case gfm && link != "":
			fmt.Fprintf(&b, "<a href='%s'><strong>%s</strong></a>\n%s\n\n", link, header, content)
		case loc != "":
			fmt.Fprintf(&b, "- **%s** (%s)\n  %s\n", header, loc, content)
		default:
			fmt.Fprintf(&b, "- **%s**\n  %s\n", header, content)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func issueLocation(issue keyIssue) string {
	file := strings.TrimSpace(issue.RelevantFile)
	switch {
	case file == "":
		return ""
	case issue.StartLine <= 0:
		return "`" + file + "`"
	case issue.EndLine > issue.StartLine:
		return fmt.Sprintf("`%s` [%d-%d]", file, issue.StartLine, issue.EndLine)
	default:
		return fmt.Sprintf("`%s` [%d]", file, issue.StartLine)
	}
}

// issueLink points at the issue lines in the head commit. Providers without a
// web URL get no link.
func issueLink(pr *providers.PR, issue keyIssue) string {
	file := strings.TrimSpace(issue.RelevantFile)
	if pr.URL == "" || pr.HeadSHA == "" || file == "" || issue.StartLine <= 0 {
		return ""
	}
	i := strings.LastIndex(pr.URL, "/pull/")
	if i < 0 {
		return ""
	}
	link := fmt.Sprintf("%s/blob/%s/%s#L%d", pr.URL[:i], pr.HeadSHA, file, issue.StartLine)
	if issue.EndLine > issue.StartLine {
		link += fmt.Sprintf("-L%d", issue.EndLine)
	}
	return link
}
