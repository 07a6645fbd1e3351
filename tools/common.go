/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package tools

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"chainguard.dev/pragent/agents/executor"
	"chainguard.dev/pragent/agents/metaagent"
	"chainguard.dev/pragent/agents/promptbuilder"
	"chainguard.dev/pragent/agents/tokens"
	"chainguard.dev/pragent/prdiff"
	"chainguard.dev/pragent/providers"
	"chainguard.dev/pragent/settings"
	"github.com/chainguard-dev/clog"
)

// errEmptyDiff is returned by predictions when no file survives filtering.
var errEmptyDiff = errors.New("the pull request has no reviewable changes")

// defaultTypeLabels are offered to describe when custom labels are off.
var defaultTypeLabels = []string{"Bug fix", "Tests", "Enhancement", "Documentation", "Other"}

// Labels the reviewer owns. Users cannot keep stale copies of them.
const (
	effortLabelPrefix = "Review effort"
	securityLabel     = "Possible security concern"
)

// progress publishes a temporary comment and returns a function removing it.
// Nothing is published for automatic runs or when progress output is off.
func progress(ctx context.Context, env Env, text string) func() {
	s := env.Settings
	if !s.Bool("config.publish_output") || !s.Bool("config.publish_output_progress") || s.Bool("config.is_auto_command") {
		return func() {}
	}
	c, err := env.Provider.PublishComment(ctx, text)
	if err != nil {
		clog.FromContext(ctx).With("error", err).Warn("Failed to publish progress comment")
		return func() {}
	}
	return func() {
		if err := env.Provider.DeleteComment(ctx, c); err != nil {
			clog.FromContext(ctx).With("error", err).Warn("Failed to remove progress comment")
		}
	}
}

// prContext is the pull request metadata shared by the prompts.
type prContext struct {
	PR              *providers.PR
	UserDescription string
	vars            map[string]string
}

// loadPR fetches the pull request and renders its prompt variables. A
// description the agent generated earlier is reduced to the user's part.
func loadPR(ctx context.Context, env Env) (*prContext, error) {
	s := env.Settings
	pr, err := env.Provider.PR(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching pull request: %w", err)
	}
	desc := pr.Description
	if providers.IsGeneratedDescription(desc) {
		desc = providers.UserDescription(desc)
	}
	commits, err := env.Provider.CommitMessages(ctx)
	if err != nil {
		clog.FromContext(ctx).With("error", err).Warn("Failed to read commit messages")
		commits = ""
	}
	return &prContext{
		PR:              pr,
		UserDescription: desc,
		vars: map[string]string{
			"title":           pr.Title,
			"branch":          pr.SourceBranch,
			"description":     tokens.Clip(desc, s.Int("config.max_description_tokens", 500)),
			"commit_messages": tokens.Clip(commits, s.Int("config.max_commits_tokens", 500)),
		},
	}, nil
}

// with returns the prompt variables extended by extra.
func (p *prContext) with(extra map[string]string) map[string]string {
	out := maps.Clone(p.vars)
	maps.Copy(out, extra)
	return out
}

// prompt reads the system and user templates of section.
func prompt(s *settings.Store, section string) (system, user string) {
	return s.String(section + ".system"), s.String(section + ".user")
}

// render fills both templates with vars.
func render(system, user string, vars map[string]string) (string, string, error) {
	sys, err := promptbuilder.Render(system, vars)
	if err != nil {
		return "", "", fmt.Errorf("rendering system prompt: %w", err)
	}
	usr, err := promptbuilder.Render(user, vars)
	if err != nil {
		return "", "", fmt.Errorf("rendering user prompt: %w", err)
	}
	return sys, usr, nil
}

// chat renders the templates and sends them to the call's model.
func chat(ctx context.Context, call metaagent.Call, system, user string, vars map[string]string) (string, error) {
	sys, usr, err := render(system, user, vars)
	if err != nil {
		return "", err
	}
	resp, err := call.Chat(ctx, sys, usr)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", executor.ErrEmptyResponse
	}
	return resp.Text, nil
}

type promptBudget struct {
	handler   *tokens.Handler
	maxTokens int
}

// budget renders the templates without a diff and returns the token handler
// and the context size a diff must fit in for the call's model.
func budget(ctx context.Context, call metaagent.Call, system, user string, vars map[string]string) (*promptBudget, error) {
	base := maps.Clone(vars)
	base["diff"] = ""
	sys, usr, err := render(system, user, base)
	if err != nil {
		return nil, err
	}
	maxTokens, err := call.MaxTokens()
	if err != nil {
		return nil, err
	}
	return &promptBudget{handler: call.TokenHandler(ctx, sys, usr), maxTokens: maxTokens}, nil
}

// diffPrediction renders the pull request diff for the call's model and asks
// it once. Large pull requests are clipped to the first chunk.
func diffPrediction(ctx context.Context, env Env, call metaagent.Call, system, user string, vars map[string]string) (string, error) {
	b, err := budget(ctx, call, system, user, vars)
	if err != nil {
		return "", err
	}
	res, err := prdiff.Diff(ctx, env.Provider, b.handler, b.maxTokens, prdiff.OptionsFromStore(env.Settings))
	if err != nil {
		return "", err
	}
	if res.Diff == "" {
		return "", errEmptyDiff
	}
	return chat(ctx, call, system, user, withDiff(vars, res.Diff))
}

func withDiff(vars map[string]string, diff string) map[string]string {
	out := maps.Clone(vars)
	out["diff"] = strings.TrimSpace(diff)
	return out
}

// publish posts body, as a persistent comment when persistent is set. With
// publish_output off the body is only logged.
func publish(ctx context.Context, env Env, body string, persistent bool, opts providers.Persistent) error {
	if !env.Settings.Bool("config.publish_output") {
		clog.FromContext(ctx).With("output", body).Info("Not publishing output")
		return nil
	}
	if persistent {
		return providers.PublishPersistent(ctx, env.Provider, body, opts)
	}
	_, err := env.Provider.PublishComment(ctx, body)
	return err
}

// customLabels returns the names of the configured custom labels in order,
// with their descriptions.
func customLabels(s *settings.Store) ([]string, map[string]string) {
	table := s.Table("custom_labels")
	names := slices.Sorted(maps.Keys(table))
	desc := make(map[string]string, len(names))
	for _, name := range names {
		if t, ok := table[name].(map[string]any); ok {
			desc[name], _ = t["description"].(string)
		}
	}
	return names, desc
}

// typeLabels are the labels describe may assign.
func typeLabels(s *settings.Store) []string {
	if s.Bool("config.enable_custom_labels") {
		if names, _ := customLabels(s); len(names) > 0 {
			return names
		}
	}
	return defaultTypeLabels
}

// userLabels drops the labels the agent manages from current.
func userLabels(s *settings.Store, current []string) []string {
	managed := map[string]bool{strings.ToLower(securityLabel): true}
	names, _ := customLabels(s)
	for _, l := range append(names, defaultTypeLabels...) {
		managed[strings.ToLower(l)] = true
	}
	var out []string
	for _, l := range current {
		lower := strings.ToLower(l)
		if managed[lower] || strings.HasPrefix(lower, strings.ToLower(effortLabelPrefix)) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// updateLabels replaces the managed labels with labels when the result
// differs from the current set. It reports whether the provider took them.
func updateLabels(ctx context.Context, env Env, labels []string) (bool, error) {
	lb, ok := env.Provider.(providers.Labeler)
	if !ok || !env.Provider.IsSupported(providers.CapLabels) {
		return false, nil
	}
	current, err := lb.Labels(ctx)
	if err != nil {
		return false, fmt.Errorf("reading labels: %w", err)
	}
	next := dedupe(append(slices.Clone(labels), userLabels(env.Settings, current)...))
	if slices.Equal(sortedCopy(next), sortedCopy(current)) {
		clog.FromContext(ctx).Info("Labels are up to date")
		return true, nil
	}
	if !env.Settings.Bool("config.publish_output") {
		clog.FromContext(ctx).With("labels", next).Info("Not publishing labels")
		return true, nil
	}
	if err := lb.SetLabels(ctx, next); err != nil {
		return false, fmt.Errorf("setting labels: %w", err)
	}
	return true, nil
}

func sortedCopy(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[strings.ToLower(s)] {
			continue
		}
		seen[strings.ToLower(s)] = true
		out = append(out, s)
	}
	return out
}

// sanitizeAnswer keeps model answers from starting a line with "/", which
// some providers read as a quick action.
func sanitizeAnswer(answer string) string {
	answer = strings.TrimSpace(answer)
	answer = strings.ReplaceAll(answer, "\n/", "\n /")
	if strings.HasPrefix(answer, "/") {
		answer = " " + answer
	}
	return answer
}
