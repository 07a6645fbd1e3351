/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package tools

import (
	"context"
	"errors"
	"fmt"
	"html"
	"slices"
	"strconv"
	"strings"
	"sync"

	"chainguard.dev/pragent/agents/metaagent"
	"chainguard.dev/pragent/agents/result"
	"chainguard.dev/pragent/prdiff"
	"chainguard.dev/pragent/providers"
	"chainguard.dev/pragent/settings"
	"github.com/chainguard-dev/clog"
	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/sync/errgroup"
)

// SuggestionsHeader starts every code suggestions comment.
const SuggestionsHeader = "## PR Code Suggestions ✨"

const focusOnProblems = "Focus only on problems: bugs, security issues and errors in the new code. Do not suggest style changes."

type suggestion struct {
	RelevantFile      string `yaml:"relevant_file"`
	Language          string `yaml:"language"`
	ExistingCode      string `yaml:"existing_code"`
	SuggestionContent string `yaml:"suggestion_content"`
	ImprovedCode      string `yaml:"improved_code"`
	Summary           string `yaml:"one_sentence_summary"`
	Label             string `yaml:"label"`
	Start             int    `yaml:"relevant_lines_start"`
	End               int    `yaml:"relevant_lines_end"`
	Score             int    `yaml:"score"`
}

type improvePrediction struct {
	Suggestions []suggestion `yaml:"code_suggestions"`
}

// Improve asks for code suggestions on every chunk of the diff and publishes
// them as committable inline comments or as a summary table.
func Improve(ctx context.Context, env Env, _ []string) error {
	s := env.Settings
	log := clog.FromContext(ctx)

	done := progress(ctx, env, "Preparing suggestions...")
	defer done()

	pr, err := loadPR(ctx, env)
	if err != nil {
		return err
	}
	focus := ""
	if s.Bool("pr_code_suggestions.focus_only_on_problems") {
		focus = focusOnProblems
	}
	system, user := prompt(s, "pr_code_suggestions_prompt")
	vars := pr.with(map[string]string{
		"extra_instructions":   s.String("pr_code_suggestions.extra_instructions"),
		"num_code_suggestions": strconv.Itoa(s.Int("pr_code_suggestions.num_code_suggestions_per_chunk", 3)),
		"focus_hint":           focus,
	})

	suggestions, err := metaagent.Run(ctx, env.Router, s.Models(settings.ModelRegular), func(ctx context.Context, call metaagent.Call) ([]suggestion, error) {
		return suggest(ctx, env, call, system, user, vars)
	})
	if errors.Is(err, errEmptyDiff) {
		log.Info("Empty diff, skipping code suggestions")
		return nil
	}
	if err != nil {
		return fmt.Errorf("predicting code suggestions: %w", err)
	}
	suggestions = filterSuggestions(suggestions, s.Int("pr_code_suggestions.suggestions_score_threshold", 0))

	persistent := providers.Persistent{Header: SuggestionsHeader, Name: "suggestions", UpdateHeader: true}
	if len(suggestions) == 0 {
		log.Info("No code suggestions found")
		if !s.Bool("pr_code_suggestions.publish_output_no_suggestions") {
			return nil
		}
		body := SuggestionsHeader + "\n\nNo code suggestions found for the PR."
		return publish(ctx, env, body, s.Bool("pr_code_suggestions.persistent_comment"), persistent)
	}

	sg, ok := env.Provider.(providers.Suggester)
	if s.Bool("pr_code_suggestions.commitable_code_suggestions") && ok && env.Provider.IsSupported(providers.CapInlineComments) {
		if !s.Bool("config.publish_output") {
			log.With("suggestions", len(suggestions)).Info("Not publishing code suggestions")
			return nil
		}
		inline := make([]providers.CodeSuggestion, 0, len(suggestions))
		for _, sug := range suggestions {
			inline = append(inline, providers.CodeSuggestion{
				Body:         committableBody(sug),
				RelevantFile: strings.TrimSpace(sug.RelevantFile),
				StartLine:    sug.Start,
				EndLine:      sug.End,
			})
		}
		if err := sg.PublishCodeSuggestions(ctx, inline); err != nil {
			return fmt.Errorf("publishing code suggestions: %w", err)
		}
		return nil
	}

	body := suggestionsTable(suggestions, env.Provider.IsSupported(providers.CapGFMMarkdown))
	if err := publish(ctx, env, body, s.Bool("pr_code_suggestions.persistent_comment"), persistent); err != nil {
		return fmt.Errorf("publishing code suggestions: %w", err)
	}
	return nil
}

// suggest asks for suggestions on each diff chunk. Failed chunks are skipped
// unless every chunk fails.
func suggest(ctx context.Context, env Env, call metaagent.Call, system, user string, vars map[string]string) ([]suggestion, error) {
	b, err := budget(ctx, call, system, user, vars)
	if err != nil {
		return nil, err
	}
	opts := prdiff.OptionsFromStore(env.Settings)
	opts.LineNumbers = true
	chunks, err := prdiff.MultiDiffs(ctx, env.Provider, b.handler, b.maxTokens, opts)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, errEmptyDiff
	}

	results := make([][]suggestion, len(chunks))
	var (
		mu   sync.Mutex
		errs []error
	)
	var g errgroup.Group
	if !env.Settings.Bool("pr_code_suggestions.parallel_calls") {
		g.SetLimit(1)
	}
	for i, chunk := range chunks {
		g.Go(func() error {
			text, err := chat(ctx, call, system, user, withDiff(vars, chunk))
			if err == nil {
				var pred improvePrediction
				pred, err = result.DecodeYAML[improvePrediction](ctx, text,
					result.WithRepairKeys("relevant_file:", "suggestion_content:", "existing_code:", "improved_code:", "one_sentence_summary:", "label:"),
					result.WithKeyRange("code_suggestions", "label"))
				results[i] = pred.Suggestions
			}
			if err != nil {
				clog.FromContext(ctx).With("chunk", i).With("error", err).Warn("Failed to get suggestions for chunk")
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	if len(errs) == len(chunks) {
		return nil, errors.Join(errs...)
	}
	return slices.Concat(results...), nil
}

// filterSuggestions drops suggestions that change nothing or score below
// threshold, and orders the rest by score.
func filterSuggestions(in []suggestion, threshold int) []suggestion {
	var out []suggestion
	for _, s := range in {
		if strings.TrimSpace(s.ExistingCode) == strings.TrimSpace(s.ImprovedCode) {
			continue
		}
		if strings.TrimSpace(s.RelevantFile) == "" {
			continue
		}
		if threshold > 0 && s.Score < threshold {
			continue
		}
		out = append(out, s)
	}
	slices.SortStableFunc(out, func(a, b suggestion) int { return b.Score - a.Score })
	return out
}

func committableBody(s suggestion) string {
	body := fmt.Sprintf("**Suggestion:** %s [%s, importance: %d]\n```suggestion\n%s\n```",
		strings.TrimSpace(s.SuggestionContent), strings.TrimSpace(s.Label), s.Score, strings.TrimRight(s.ImprovedCode, "\n"))
	return body
}

func impact(score int) string {
	switch {
	case score >= 8:
		return "High"
	case score >= 6:
		return "Medium"
	default:
		return "Low"
	}
}

// suggestionDiff renders the change a suggestion proposes as a unified diff.
func suggestionDiff(s suggestion) string {
	d, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:       difflib.SplitLines(strings.TrimRight(s.ExistingCode, "\n") + "\n"),
		B:       difflib.SplitLines(strings.TrimRight(s.ImprovedCode, "\n") + "\n"),
		Context: 3,
	})
	if err != nil || d == "" {
		return ""
	}
	// Drop the hunk header, the lines are linked separately.
	lines := strings.Split(strings.TrimRight(d, "\n"), "\n")
	lines = slices.DeleteFunc(lines, func(l string) bool { return strings.HasPrefix(l, "@@") })
	return strings.Join(lines, "\n")
}

func suggestionsTable(suggestions []suggestion, gfm bool) string {
	var order []string
	groups := map[string][]suggestion{}
	for _, s := range suggestions {
		label := strings.TrimSpace(s.Label)
		if label == "" {
			label = "general"
		}
		if _, ok := groups[label]; !ok {
			order = append(order, label)
		}
		groups[label] = append(groups[label], s)
	}

	var b strings.Builder
	b.WriteString(SuggestionsHeader + "\n\n")
	if !gfm {
		for _, label := range order {
			fmt.Fprintf(&b, "### %s\n\n", capitalizeWords(label))
			for _, s := range groups[label] {
				fmt.Fprintf(&b, "- **%s** (`%s` [%d-%d], impact: %s)\n\n  %s\n\n```diff\n%s\n```\n\n",
					strings.TrimSpace(s.Summary), strings.TrimSpace(s.RelevantFile), s.Start, s.End, impact(s.Score),
					strings.TrimSpace(s.SuggestionContent), suggestionDiff(s))
			}
		}
		return strings.TrimRight(b.String(), "\n")
	}

	b.WriteString("<table><thead><tr><td><strong>Category</strong></td><td align=left><strong>Suggestion</strong></td><td align=center><strong>Impact</strong></td></tr><tbody>")
	for _, label := range order {
		items := groups[label]
		for i, s := range items {
			b.WriteString("<tr>")
			if i == 0 {
				fmt.Fprintf(&b, "<td rowspan=%d>%s</td>\n", len(items), capitalizeWords(label))
			}
			fmt.Fprintf(&b, "<td>\n\n<details><summary>%s</summary>\n\n___\n\n", html.EscapeString(strings.TrimSpace(s.Summary)))
			fmt.Fprintf(&b, "**%s**\n\n[%s [%d-%d]]\n\n", strings.TrimSpace(s.SuggestionContent), strings.TrimSpace(s.RelevantFile), s.Start, s.End)
			fmt.Fprintf(&b, "```diff\n%s\n```\n\n</details></td><td align=center>%s\n\n</td></tr>", suggestionDiff(s), impact(s.Score))
		}
	}
	b.WriteString("</tbody></table>")
	return b.String()
}
