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
	"chainguard.dev/pragent/agents/result"
	"chainguard.dev/pragent/providers"
	"chainguard.dev/pragent/settings"
	"github.com/chainguard-dev/clog"
)

type labelsPrediction struct {
	Labels stringList `yaml:"labels"`
}

// GenerateLabels picks custom labels for the pull request and sets them, or
// lists them in a comment when the provider has no labels.
func GenerateLabels(ctx context.Context, env Env, _ []string) error {
	s := env.Settings
	log := clog.FromContext(ctx)

	done := progress(ctx, env, "Preparing PR labels...")
	defer done()

	pr, err := loadPR(ctx, env)
	if err != nil {
		return err
	}
	names, descriptions := customLabels(s)
	if len(names) == 0 {
		names = defaultTypeLabels
	}
	var list strings.Builder
	for _, name := range names {
		if d := descriptions[name]; d != "" {
			fmt.Fprintf(&list, "- %s: %s\n", name, d)
		} else {
			fmt.Fprintf(&list, "- %s\n", name)
		}
	}

	system, user := prompt(s, "pr_custom_labels_prompt")
	vars := pr.with(map[string]string{
		"custom_labels":      strings.TrimRight(list.String(), "\n"),
		"extra_instructions": s.String("pr_description.extra_instructions"),
	})
	pred, err := metaagent.Run(ctx, env.Router, s.Models(settings.ModelRegular), func(ctx context.Context, call metaagent.Call) (labelsPrediction, error) {
		text, err := diffPrediction(ctx, env, call, system, user, vars)
		if err != nil {
			return labelsPrediction{}, err
		}
		return result.DecodeYAML[labelsPrediction](ctx, text)
	})
	if errors.Is(err, errEmptyDiff) {
		log.Info("Empty diff, skipping labels")
		return nil
	}
	if err != nil {
		return fmt.Errorf("predicting labels: %w", err)
	}

	// Keep the configured spelling of known labels.
	canonical := make(map[string]string, len(names))
	for _, n := range names {
		canonical[strings.ToLower(n)] = n
	}
	labels := make([]string, 0, len(pred.Labels))
	for _, l := range pred.Labels {
		l = strings.TrimSpace(l)
		if c, ok := canonical[strings.ToLower(l)]; ok {
			l = c
		}
		labels = append(labels, l)
	}
	labels = dedupe(labels)

	set, err := updateLabels(ctx, env, labels)
	if err != nil {
		return err
	}
	if set {
		return nil
	}
	body := "## PR Labels:\n" + strings.Join(labels, ", ") + "\n"
	return publish(ctx, env, body, false, providers.Persistent{})
}
