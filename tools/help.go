/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package tools

import (
	"context"
	"fmt"
	"strings"

	"chainguard.dev/pragent/providers"
)

type helpEntry struct {
	command, description string
}

var helpEntries = []helpEntry{
	{"/describe", "Generates the PR title, type, summary and a walkthrough of the changed files."},
	{"/review", "Adjustable feedback about the PR: effort to review, tests, security issues and focus areas."},
	{"/improve", "Code suggestions for improving the PR."},
	{"/ask <question>", "Answers a free-text question about the PR."},
	{"/update_changelog", "Proposes a CHANGELOG.md entry for the PR."},
	{"/generate_labels", "Labels the PR with the configured custom labels."},
	{"/config", "Shows the effective configuration of the agent."},
	{"/help", "Shows this message."},
}

// Help publishes the list of commands.
func Help(ctx context.Context, env Env, _ []string) error {
	var b strings.Builder
	b.WriteString("## PR Agent Walkthrough 🤖\n\n")
	b.WriteString("Welcome to the PR Agent, an AI-powered tool for automated pull request analysis, feedback, suggestions and more.\n\n")
	b.WriteString("Here is a list of tools you can use to interact with the PR Agent:\n\n")
	if env.Provider.IsSupported(providers.CapGFMMarkdown) {
		b.WriteString("<table><tr><th align=\"left\">Tool</th><th align=\"left\">Description</th></tr>")
		for _, e := range helpEntries {
			fmt.Fprintf(&b, "<tr><td><strong>%s</strong></td><td>%s</td></tr>", strings.ReplaceAll(e.command, "<", "&lt;"), e.description)
		}
		b.WriteString("</table>\n\n")
	} else {
		for _, e := range helpEntries {
			fmt.Fprintf(&b, "- **%s**: %s\n", e.command, e.description)
		}
		b.WriteString("\n")
	}
	b.WriteString("Add `--section.option=value` after a command to override a setting, for example `/review --pr_reviewer.num_max_findings=5`.")
	return publish(ctx, env, b.String(), false, providers.Persistent{})
}
