/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package prdiff

import (
	"context"
	"fmt"
	"regexp"

	"chainguard.dev/pragent/patch"
	"chainguard.dev/pragent/settings"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/chainguard-dev/clog"
)

// maxExtraLines caps the context added around each hunk.
const maxExtraLines = 10

// Large patch policies for MultiDiffs.
const (
	PolicySkip = "skip"
	PolicyClip = "clip"
)

// Options controls how a pull request diff is rendered.
type Options struct {
	ExtraLinesBefore      int
	ExtraLinesAfter       int
	DisableExtraLines     bool
	AllowDynamicContext   bool
	MaxLinesBeforeDynamic int
	SkipExtensions        []string

	// LineNumbers renders hunks with patch.ConvertToLineNumbers.
	LineNumbers bool
	// LargePR makes Diff return every compressed chunk instead of the first
	// when the diff does not fit in one call.
	LargePR bool
	// MaxChunks bounds the chunks produced in LargePR mode.
	MaxChunks int
	// MaxCalls bounds the chunks produced by MultiDiffs.
	MaxCalls         int
	LargePatchPolicy string

	IgnoreGlobs []string
	IgnoreRegex []string
}

// OptionsFromStore reads the [config] and [ignore] settings.
func OptionsFromStore(s *settings.Store) Options {
	return Options{
		ExtraLinesBefore:      s.Int("config.patch_extra_lines_before", 3),
		ExtraLinesAfter:       s.Int("config.patch_extra_lines_after", 1),
		AllowDynamicContext:   s.Bool("config.allow_dynamic_context"),
		MaxLinesBeforeDynamic: s.Int("config.max_extra_lines_before_dynamic_context", 10),
		SkipExtensions:        s.Strings("config.patch_extension_skip_types"),
		MaxChunks:             s.Int("pr_description.max_ai_calls", 4) - 1,
		MaxCalls:              s.Int("pr_code_suggestions.max_number_of_calls", 3),
		LargePatchPolicy:      s.String("config.large_patch_policy"),
		IgnoreGlobs:           s.Strings("ignore.glob"),
		IgnoreRegex:           s.Strings("ignore.regex"),
	}
}

func (o Options) extendOptions(ctx context.Context) patch.ExtendOptions {
	if o.DisableExtraLines {
		return patch.ExtendOptions{}
	}
	capped := func(v int, direction string) int {
		if v > maxExtraLines {
			clog.FromContext(ctx).With("direction", direction).With("value", v).Warn("Capping extra patch lines")
			return maxExtraLines
		}
		return v
	}
	return patch.ExtendOptions{
		Before:                capped(o.ExtraLinesBefore, "before"),
		After:                 capped(o.ExtraLinesAfter, "after"),
		AllowDynamicContext:   o.AllowDynamicContext,
		MaxLinesBeforeDynamic: o.MaxLinesBeforeDynamic,
		SkipExtensions:        o.SkipExtensions,
	}
}

// Filter drops files matching any ignore glob or regular expression.
func Filter(files []patch.FilePatch, globs, regexes []string) ([]patch.FilePatch, error) {
	if len(globs) == 0 && len(regexes) == 0 {
		return files, nil
	}
	res := make([]*regexp.Regexp, 0, len(regexes))
	for _, r := range regexes {
		re, err := regexp.Compile(r)
		if err != nil {
			return nil, fmt.Errorf("compiling ignore regex %q: %w", r, err)
		}
		res = append(res, re)
	}
	for _, g := range globs {
		if !doublestar.ValidatePattern(g) {
			return nil, fmt.Errorf("invalid ignore glob %q", g)
		}
	}

	out := files[:0:0]
outer:
	for _, f := range files {
		for _, g := range globs {
			if ok, _ := doublestar.Match(g, f.Filename); ok {
				continue outer
			}
		}
		for _, re := range res {
			if re.MatchString(f.Filename) {
				continue outer
			}
		}
		out = append(out, f)
	}
	return out, nil
}
