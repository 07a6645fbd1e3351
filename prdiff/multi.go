/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package prdiff

import (
	"context"
	"fmt"
	"strings"

	"chainguard.dev/pragent/agents/tokens"
	"chainguard.dev/pragent/patch"
	"github.com/chainguard-dev/clog"
)

// MultiDiffs splits the pull request diff into at most opts.MaxCalls
// chunks that each fit in maxTokens. Patches larger than a whole call are
// skipped or clipped according to opts.LargePatchPolicy.
func MultiDiffs(ctx context.Context, src Source, th *tokens.Handler, maxTokens int, opts Options) ([]string, error) {
	groups, err := Load(ctx, src, opts)
	if err != nil {
		return nil, err
	}
	return MultiDiffsGroups(ctx, groups, th, maxTokens, opts), nil
}

// MultiDiffsGroups is MultiDiffs for files that were already loaded.
func MultiDiffsGroups(ctx context.Context, groups []Group, th *tokens.Handler, maxTokens int, opts Options) []string {
	log := clog.FromContext(ctx)
	maxCalls := max(1, opts.MaxCalls)

	patches, total := extended(ctx, groups, th, opts)
	if total+softBuffer < maxTokens {
		if len(patches) == 0 {
			return nil
		}
		return []string{strings.Join(patches, "\n")}
	}

	limit := maxTokens - softBuffer
	var out, current []string
	total = th.PromptTokens
	call := 1
	for _, f := range bySize(groups) {
		if call > maxCalls {
			log.With("max_calls", maxCalls).Debug("Reached max calls")
			break
		}
		if f.Patch == "" {
			continue
		}
		p, deleted := patch.HandlePatchDeletions(ctx, f.Patch, f.Head, f.Filename, f.EditType)
		if deleted {
			continue
		}
		if opts.LineNumbers {
			p = patch.ConvertToLineNumbers(p, &f)
		} else {
			p = fmt.Sprintf("\n\n## File: '%s'\n\n%s\n", strings.TrimSpace(f.Filename), strings.TrimSpace(p))
		}
		n := th.Count(p)

		if p != "" && th.PromptTokens+n > limit {
			if opts.LargePatchPolicy != PolicyClip {
				log.With("file", f.Filename).Warn("Patch too large, skipping")
				continue
			}
			clipped := tokens.Clip(p, limit-th.PromptTokens, tokens.DeleteLastLine(), tokens.WithInputTokens(n))
			n = th.Count(clipped)
			if clipped != "" && th.PromptTokens+n > limit {
				log.With("file", f.Filename).Warn("Patch too large, skipping")
				continue
			}
			log.With("file", f.Filename).Info("Clipped large patch")
			p = clipped
		}

		if p != "" && total+n > limit {
			out = append(out, strings.Join(current, "\n"))
			current = nil
			total = th.PromptTokens
			call++
			if call > maxCalls {
				log.With("max_calls", maxCalls).Debug("Reached max calls")
				break
			}
		}
		if p != "" {
			current = append(current, p)
			total += n
		}
	}
	if len(current) > 0 {
		out = append(out, strings.TrimSpace(strings.Join(current, "\n")))
	}
	return out
}
