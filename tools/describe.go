/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package tools

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"chainguard.dev/pragent/agents/metaagent"
	"chainguard.dev/pragent/agents/result"
	"chainguard.dev/pragent/patch"
	"chainguard.dev/pragent/prdiff"
	"chainguard.dev/pragent/providers"
	"chainguard.dev/pragent/settings"
	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

const (
	descriptionSeparator = "\n\n___\n\n"
	additionalFilesLabel = "additional files"
	// maxWalkthroughFiles bounds the files added for uncovered changes.
	maxWalkthroughFiles = 100
)

// stringList accepts a YAML list or a comma separated string.
type stringList []string

func (l *stringList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.SequenceNode:
		var items []string
		if err := n.Decode(&items); err != nil {
			return err
		}
		*l = items
	case yaml.ScalarNode:
		var out []string
		for _, item := range strings.Split(n.Value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		*l = out
	default:
		return fmt.Errorf("line %d: expected a list or a string", n.Line)
	}
	return nil
}

// text accepts a YAML string or a list of strings, joined with ", ".
type text string

func (t *text) UnmarshalYAML(n *yaml.Node) error {
	var l stringList
	if n.Kind == yaml.ScalarNode {
		*t = text(n.Value)
		return nil
	}
	if err := n.Decode(&l); err != nil {
		return err
	}
	*t = text(strings.Join(l, ", "))
	return nil
}

type describePrediction struct {
	Type        stringList   `yaml:"type"`
	Description text         `yaml:"description"`
	Title       string       `yaml:"title"`
	Labels      stringList   `yaml:"labels"`
	Files       []fileChange `yaml:"pr_files"`
}

type fileChange struct {
	Filename       string `yaml:"filename"`
	ChangesTitle   string `yaml:"changes_title"`
	ChangesSummary string `yaml:"changes_summary"`
	Label          string `yaml:"label"`
}

var describeRepairKeys = []string{"filename:", "changes_title:", "changes_summary:", "title:", "description:"}

// Describe generates a title, a type, a summary and a file walkthrough for
// the pull request and publishes them as its description.
func Describe(ctx context.Context, env Env, _ []string) error {
	s := env.Settings
	log := clog.FromContext(ctx)

	done := progress(ctx, env, "Preparing PR description...")
	defer done()

	pr, err := loadPR(ctx, env)
	if err != nil {
		return err
	}
	bullets := ""
	if s.Bool("pr_description.use_bullet_points") {
		bullets = " as bullet points"
	}
	system, user := prompt(s, "pr_description_prompt")
	vars := pr.with(map[string]string{
		"extra_instructions": s.String("pr_description.extra_instructions"),
		"type_labels":        `"` + strings.Join(typeLabels(s), `", "`) + `"`,
		"bullet_hint":        bullets,
	})

	pred, err := metaagent.Run(ctx, env.Router, s.Models(settings.ModelWeak), func(ctx context.Context, call metaagent.Call) (*describePrediction, error) {
		return describePR(ctx, env, call, system, user, vars)
	})
	if errors.Is(err, errEmptyDiff) {
		log.Info("Empty diff, skipping description")
		return nil
	}
	if err != nil {
		return fmt.Errorf("predicting description: %w", err)
	}
	changed, err := env.Provider.DiffFiles(ctx)
	if err != nil {
		log.With("error", err).Warn("Failed to list changed files")
	}
	pred.Files = extendUncovered(pred.Files, changed)

	title := pr.PR.Title
	if s.Bool("pr_description.generate_ai_title") && strings.TrimSpace(pred.Title) != "" {
		title = strings.TrimSpace(pred.Title)
	}
	body := descriptionMarkdown(pred, pr.UserDescription, s, env.Provider, changed)

	if s.Bool("pr_description.publish_labels") {
		labels := []string(pred.Labels)
		if len(labels) == 0 {
			labels = pred.Type
		}
		if _, err := updateLabels(ctx, env, labels); err != nil {
			log.With("error", err).Warn("Failed to update labels")
		}
	}

	if !s.Bool("config.publish_output") {
		log.With("title", title).With("description", body).Info("Not publishing description")
		return nil
	}
	describer, ok := env.Provider.(providers.Describer)
	if s.Bool("pr_description.publish_description_as_comment") || !ok || !env.Provider.IsSupported(providers.CapEditDescription) {
		full := "## Title\n\n" + title + "\n\n___\n" + body
		return publish(ctx, env, full, s.Bool("pr_description.publish_description_as_comment_persistent"), providers.Persistent{
			Header:       "## Title",
			Name:         "describe",
			UpdateHeader: false,
		})
	}
	if err := describer.PublishDescription(ctx, title, body); err != nil {
		return fmt.Errorf("publishing description: %w", err)
	}
	if s.Bool("pr_description.final_update_message") && !s.Bool("config.is_auto_command") && pr.PR.URL != "" {
		latest, err := env.Provider.PR(ctx)
		if err != nil {
			return fmt.Errorf("fetching pull request: %w", err)
		}
		msg := fmt.Sprintf("**[PR Description](%s)** updated to latest commit (%s)", pr.PR.URL, latest.LatestCommitURL)
		if _, err := env.Provider.PublishComment(ctx, msg); err != nil {
			return fmt.Errorf("publishing update note: %w", err)
		}
	}
	return nil
}

// describePR asks the model once, or once per chunk when the diff does not
// fit, and merges the chunk answers.
func describePR(ctx context.Context, env Env, call metaagent.Call, system, user string, vars map[string]string) (*describePrediction, error) {
	b, err := budget(ctx, call, system, user, vars)
	if err != nil {
		return nil, err
	}
	opts := prdiff.OptionsFromStore(env.Settings)
	opts.LargePR = true
	res, err := prdiff.Diff(ctx, env.Provider, b.handler, b.maxTokens, opts)
	if err != nil {
		return nil, err
	}
	if len(res.Chunks) == 0 {
		if res.Diff == "" {
			return nil, errEmptyDiff
		}
		return describeChunk(ctx, call, system, user, withDiff(vars, res.Diff))
	}

	preds := make([]*describePrediction, len(res.Chunks))
	var g errgroup.Group
	for i, chunk := range res.Chunks {
		g.Go(func() error {
			p, err := describeChunk(ctx, call, system, user, withDiff(vars, chunk.Diff))
			if err != nil {
				clog.FromContext(ctx).With("chunk", i).With("error", err).Warn("Failed to describe chunk")
				return nil
			}
			preds[i] = p
			return nil
		})
	}
	_ = g.Wait()
	return mergeDescriptions(preds)
}

func describeChunk(ctx context.Context, call metaagent.Call, system, user string, vars map[string]string) (*describePrediction, error) {
	text, err := chat(ctx, call, system, user, vars)
	if err != nil {
		return nil, err
	}
	pred, err := result.DecodeYAML[describePrediction](ctx, text,
		result.WithRepairKeys(describeRepairKeys...),
		result.WithKeyRange("type", "pr_files"))
	if err != nil {
		return nil, err
	}
	return &pred, nil
}

// mergeDescriptions keeps the first successful summary and every walkthrough
// entry.
func mergeDescriptions(preds []*describePrediction) (*describePrediction, error) {
	var out *describePrediction
	seen := map[string]bool{}
	for _, p := range preds {
		if p == nil {
			continue
		}
		if out == nil {
			out = &describePrediction{Type: p.Type, Description: p.Description, Title: p.Title, Labels: p.Labels}
		}
		for _, f := range p.Files {
			if seen[f.Filename] {
				continue
			}
			seen[f.Filename] = true
			out.Files = append(out.Files, f)
		}
	}
	if out == nil {
		return nil, errors.New("every chunk of the description failed")
	}
	return out, nil
}

// extendUncovered adds changed files the model left out of the walkthrough.
func extendUncovered(files []fileChange, changed []patch.FilePatch) []fileChange {
	covered := make(map[string]bool, len(files))
	for _, f := range files {
		covered[strings.TrimSpace(f.Filename)] = true
	}
	for _, f := range changed {
		if len(files) >= maxWalkthroughFiles {
			break
		}
		if covered[f.Filename] {
			continue
		}
		files = append(files, fileChange{
			Filename:     f.Filename,
			ChangesTitle: "Additional files not described",
			Label:        additionalFilesLabel,
		})
	}
	return files
}

func descriptionMarkdown(pred *describePrediction, userDescription string, s *settings.Store, p providers.Provider, changed []patch.FilePatch) string {
	var sections []string
	if s.Bool("pr_description.add_original_user_description") && strings.TrimSpace(userDescription) != "" {
		sections = append(sections, "### **User description**\n"+strings.TrimSpace(userDescription))
	}
	if s.Bool("pr_description.enable_pr_type") && len(pred.Type) > 0 {
		sections = append(sections, "### **PR Type**\n"+strings.Join(pred.Type, ", "))
	}
	if d := strings.TrimSpace(string(pred.Description)); d != "" {
		sections = append(sections, "### **Description**\n"+strings.ReplaceAll(d, "\n-", "\n\n-"))
	}
	body := strings.Join(sections, descriptionSeparator)

	if len(pred.Files) > 0 {
		walkthrough := walkthroughTable(pred.Files, changed)
		if s.Bool("pr_description.enable_semantic_files_types") && p.IsSupported(providers.CapGFMMarkdown) {
			body += descriptionSeparator + "<details> <summary><h3> File Walkthrough</h3></summary>\n\n" + walkthrough + "\n\n</details>\n\n___"
		} else {
			body += descriptionSeparator + "### **Changes walkthrough**\n\n" + walkthroughList(pred.Files)
		}
	}
	return body
}

// walkthroughTable groups files by label in order of first appearance.
func walkthroughTable(files []fileChange, changed []patch.FilePatch) string {
	stats := make(map[string]patch.FilePatch, len(changed))
	for _, f := range changed {
		stats[f.Filename] = f
	}
	var order []string
	groups := map[string][]fileChange{}
	for _, f := range files {
		label := strings.TrimSpace(f.Label)
		if label == "" {
			label = "other"
		}
		if _, ok := groups[label]; !ok {
			order = append(order, label)
		}
		groups[label] = append(groups[label], f)
	}

	var b strings.Builder
	b.WriteString("<table><thead><tr><th></th><th align=\"left\">Relevant files</th></tr></thead><tbody>")
	for _, label := range order {
		fmt.Fprintf(&b, "<tr><td><strong>%s</strong></td><td><table>", capitalizeWords(label))
		for _, f := range groups[label] {
			name := strings.TrimSpace(f.Filename)
			b.WriteString("\n<tr>\n  <td>\n    <details>\n")
			fmt.Fprintf(&b, "      <summary><strong>%s</strong><dd><code>%s</code></dd></summary>\n<hr>\n\n%s\n\n", path.Base(name), strings.TrimSpace(f.ChangesTitle), name)
			if summary := strings.TrimSpace(f.ChangesSummary); summary != "" {
				b.WriteString(summary + "\n\n")
			}
			b.WriteString("</details>\n  </td>\n")
			if fp, ok := stats[name]; ok {
				fmt.Fprintf(&b, "  <td>+%d/-%d</td>\n", fp.NumPlusLines, fp.NumMinusLines)
			}
			b.WriteString("</tr>")
		}
		b.WriteString("\n</table></td></tr>")
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

func walkthroughList(files []fileChange) string {
	var b strings.Builder
	for _, f := range files {
		fmt.Fprintf(&b, "- `%s`: %s\n", strings.TrimSpace(f.Filename), strings.TrimSpace(f.ChangesTitle))
	}
	return strings.TrimRight(b.String(), "\n")
}

func capitalizeWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
