/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package tools

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"chainguard.dev/pragent/providers"
	"github.com/BurntSushi/toml"
)

// configSections are the sections ShowConfig prints, in order.
var configSections = []string{
	"config",
	"ignore",
	"pr_reviewer",
	"pr_description",
	"pr_questions",
	"pr_code_suggestions",
	"pr_update_changelog",
	"custom_labels",
	"github_app",
}

// secretWords mark keys whose values are never printed when they appear as a
// word of the key.
var secretWords = []string{"key", "secret", "token", "password", "dsn"}

// ShowConfig publishes the effective configuration with secrets masked.
func ShowConfig(ctx context.Context, env Env, _ []string) error {
	body, err := configMarkdown(env)
	if err != nil {
		return err
	}
	return publish(ctx, env, body, false, providers.Persistent{})
}

func configMarkdown(env Env) (string, error) {
	var b strings.Builder
	b.WriteString("🛠️ PR-Agent Configurations: \n\n")
	for _, section := range configSections {
		table := env.Settings.Table(section)
		if len(table) == 0 {
			continue
		}
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(masked(table)); err != nil {
			return "", fmt.Errorf("encoding %s: %w", section, err)
		}
		fmt.Fprintf(&b, "\n\n<details><summary><strong>%s</strong></summary>\n\n```toml\n[%s]\n%s```\n\n</details>",
			strings.ToUpper(section), section, buf.String())
	}
	return b.String(), nil
}

func masked(table map[string]any) map[string]any {
	out := make(map[string]any, len(table))
	for _, k := range slices.Sorted(maps.Keys(table)) {
		v := table[k]
		switch {
		case isSecretKey(k):
			if s, ok := v.(string); ok && s == "" {
				out[k] = ""
			} else {
				out[k] = "***"
			}
		default:
			if sub, ok := v.(map[string]any); ok {
				v = masked(sub)
			}
			out[k] = v
		}
	}
	return out
}

func isSecretKey(k string) bool {
	for _, word := range strings.Split(strings.ToLower(k), "_") {
		if slices.Contains(secretWords, word) {
			return true
		}
	}
	return false
}
