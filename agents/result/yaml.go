/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package result

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"
	"gopkg.in/yaml.v3"
)

// ErrUnparseable is returned when no repair yields valid YAML.
var ErrUnparseable = errors.New("model response is not valid YAML")

// blockScalarKeys hold free text that models often emit unquoted.
var blockScalarKeys = []string{
	"relevant_line:",
	"suggestion_content:",
	"relevant_file:",
	"existing_code:",
	"improved_code:",
	"label:",
}

type yamlOptions struct {
	repairKeys []string
	firstKey   string
	lastKey    string
}

// YAMLOption configures DecodeYAML.
type YAMLOption func(*yamlOptions)

// WithRepairKeys adds keys whose values are rewritten as block scalars during repair.
func WithRepairKeys(keys ...string) YAMLOption {
	return func(o *yamlOptions) { o.repairKeys = append(o.repairKeys, keys...) }
}

// WithKeyRange lets repair cut the document from firstKey through the
// paragraph holding lastKey. Keys may be given with or without their colon.
func WithKeyRange(firstKey, lastKey string) YAMLOption {
	return func(o *yamlOptions) {
		o.firstKey = strings.TrimSuffix(firstKey, ":")
		o.lastKey = strings.TrimSuffix(lastKey, ":")
	}
}

// repair rewrites a response that failed to parse. ok is false when the
// repair does not apply.
type repair struct {
	name string
	fn   func(cleaned, original string, o yamlOptions) (string, bool)
}

var repairs = []repair{
	{"block scalars", blockScalars},
	{"indent indicator", func(s, _ string, _ yamlOptions) (string, bool) {
		return strings.ReplaceAll(s, "|\n", "|2\n"), strings.Contains(s, "|\n")
	}},
	{"indent indicator and braces", indentBraces},
	{"fenced snippet", func(_, original string, _ yamlOptions) (string, bool) {
		if !strings.Contains(original, "```yaml") {
			return "", false
		}
		return extractFence(original, "yaml"), true
	}},
	{"curly braces", func(s, _ string, _ yamlOptions) (string, bool) {
		s = strings.TrimSpace(s)
		s = strings.TrimSuffix(strings.TrimPrefix(s, "{"), "}")
		return strings.TrimRight(s, ":\n"), true
	}},
	{"key range", keyRange},
	{"leading plus", func(s, _ string, _ yamlOptions) (string, bool) {
		lines := strings.Split(s, "\n")
		for i, l := range lines {
			if strings.HasPrefix(l, "+") {
				lines[i] = " " + l[1:]
			}
		}
		return strings.Join(lines, "\n"), true
	}},
	{"tabs", func(s, _ string, _ yamlOptions) (string, bool) {
		return strings.ReplaceAll(s, "\t", "    "), strings.Contains(s, "\t")
	}},
	{"code block indent", codeBlockIndent},
}

// DecodeYAML decodes a model's YAML response into T. Responses that fail to
// parse are passed through a series of repairs for common model mistakes.
func DecodeYAML[T any](ctx context.Context, text string, opts ...YAMLOption) (T, error) {
	var o yamlOptions
	for _, opt := range opts {
		opt(&o)
	}

	cleaned := strings.Trim(text, "\n")
	cleaned = strings.TrimPrefix(cleaned, "```yaml")
	cleaned = strings.TrimRight(cleaned, " \t\r\n")
	cleaned = strings.TrimSuffix(cleaned, "```")

	out, err := decode[T](cleaned)
	if err == nil {
		return out, nil
	}
	log := clog.FromContext(ctx)
	log.Warnf("Initial failure to parse model response: %v", err)

	for _, r := range repairs {
		candidate, ok := r.fn(cleaned, text, o)
		if !ok {
			continue
		}
		if out, err := decode[T](candidate); err == nil {
			log.Infof("Parsed model response after repair: %s", r.name)
			return out, nil
		}
	}
	if out, ok := dropTrailingLines[T](ctx, cleaned, o); ok {
		return out, nil
	}
	var zero T
	return zero, fmt.Errorf("%w: %w", ErrUnparseable, err)
}

func decode[T any](s string) (T, error) {
	var out T
	if strings.TrimSpace(s) == "" {
		return out, errors.New("empty document")
	}
	if err := yaml.Unmarshal([]byte(s), &out); err != nil {
		return out, err
	}
	return out, nil
}

func blockScalars(s, _ string, o yamlOptions) (string, bool) {
	keys := append(append([]string{}, blockScalarKeys...), o.repairKeys...)
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if strings.Contains(l, "|") {
			continue
		}
		for _, k := range keys {
			if strings.Contains(l, k) {
				l = strings.Replace(l, k, k+" |\n        ", 1)
			}
		}
		lines[i] = l
	}
	return strings.Join(lines, "\n"), true
}

func indentBraces(s, _ string, _ yamlOptions) (string, bool) {
	lines := strings.Split(strings.ReplaceAll(s, "|\n", "|2\n"), "\n")
	for i, l := range lines {
		trimmed := strings.TrimLeft(l, " ")
		if len(l)-len(trimmed) == 2 && !strings.Contains(l, "|2") && strings.Contains(l, "}") {
			lines[i] = "    " + trimmed
		}
	}
	return strings.Join(lines, "\n"), true
}

func keyRange(s, _ string, o yamlOptions) (string, bool) {
	if o.firstKey == "" || o.lastKey == "" {
		return "", false
	}
	start := strings.Index(s, "\n"+o.firstKey+":")
	if start == -1 {
		start = strings.Index(s, o.firstKey+":")
	}
	if start == -1 {
		return "", false
	}
	last := max(strings.LastIndex(s, o.lastKey+":"), start)
	end := strings.Index(s[last:], "\n\n")
	if end == -1 {
		end = len(s)
	} else {
		end += last
	}
	snippet := strings.TrimSpace(s[start:end])
	snippet = strings.TrimPrefix(snippet, "```yaml")
	return strings.TrimSpace(strings.Trim(snippet, "`")), true
}

func codeBlockIndent(s, _ string, _ yamlOptions) (string, bool) {
	lines := strings.Split(s, "\n")
	inCode := false
	for i, l := range lines {
		switch {
		case strings.Contains(l, "existing_code:") || strings.Contains(l, "improved_code:"):
			inCode = true
		case strings.HasSuffix(l, ": |") || strings.HasSuffix(l, ": |-") || strings.HasSuffix(l, ": |2") || strings.HasSuffix(l, ":"):
			inCode = false
		case inCode:
			lines[i] = "    " + l
		}
	}
	return strings.Join(lines, "\n"), true
}

// dropTrailingLines handles truncated responses by removing lines from the
// end until the rest parses. The remainder must still hold the first key.
func dropTrailingLines[T any](ctx context.Context, s string, o yamlOptions) (T, bool) {
	var zero T
	if o.firstKey == "" {
		return zero, false
	}
	lines := strings.Split(s, "\n")
	for n := len(lines) - 1; n > 0; n-- {
		candidate := strings.Join(lines[:n], "\n")
		if !strings.Contains(candidate, o.firstKey+":") {
			break
		}
		if out, err := decode[T](candidate); err == nil {
			clog.FromContext(ctx).Infof("Parsed model response after dropping %d trailing lines", len(lines)-n)
			return out, true
		}
	}
	return zero, false
}
