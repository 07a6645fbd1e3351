/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package prdiff renders the changed files of a pull request as a diff that
// fits the model's context window.
package prdiff

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"chainguard.dev/pragent/agents/tokens"
	"chainguard.dev/pragent/patch"
	"github.com/chainguard-dev/clog"
)

const (
	deletedFilesHeader  = "Deleted files:\n"
	modifiedFilesHeader = "Additional modified files (insufficient token budget to process):\n"
	addedFilesHeader    = "Additional added files (insufficient token budget to process):\n"

	// softBuffer and hardBuffer are the tokens reserved for the response.
	softBuffer = 1500
	hardBuffer = 1000
)

// Source provides the changed files of a pull request.
type Source interface {
	DiffFiles(ctx context.Context) ([]patch.FilePatch, error)
	Languages(ctx context.Context) (map[string]int, error)
}

// Result is a rendered pull request diff.
type Result struct {
	Diff string
	// Chunks is set instead of Diff in LargePR mode when the compressed diff
	// needs more than one call.
	Chunks []Chunk
	// Remaining lists files that did not fit.
	Remaining []string
	// Deleted lists removed files.
	Deleted []string
	// Compressed reports that extra context and deletion hunks were dropped.
	Compressed bool
}

// Chunk is one part of a compressed diff.
type Chunk struct {
	Diff   string
	Tokens int
	Files  []string
}

// Load fetches changed files, drops ignored ones and groups them by
// language.
func Load(ctx context.Context, src Source, opts Options) ([]Group, error) {
	files, err := src.DiffFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching diff files: %w", err)
	}
	files, err = Filter(files, opts.IgnoreGlobs, opts.IgnoreRegex)
	if err != nil {
		return nil, err
	}
	languages, err := src.Languages(ctx)
	if err != nil {
		clog.FromContext(ctx).With("error", err).Warn("Failed to fetch repository languages")
	}
	groups := SortByLanguage(languages, files)
	if len(groups) > 0 {
		clog.FromContext(ctx).With("language", groups[0].Language).Info("PR main language")
	}
	return groups, nil
}

// Diff renders the pull request diff within maxTokens. Hunks get extra
// context while the whole diff fits; otherwise deletion-only hunks are
// dropped, the largest files are skipped and the names of files that did not
// fit are listed at the end.
func Diff(ctx context.Context, src Source, th *tokens.Handler, maxTokens int, opts Options) (*Result, error) {
	groups, err := Load(ctx, src, opts)
	if err != nil {
		return nil, err
	}
	return DiffGroups(ctx, groups, th, maxTokens, opts), nil
}

// DiffGroups is Diff for files that were already loaded.
func DiffGroups(ctx context.Context, groups []Group, th *tokens.Handler, maxTokens int, opts Options) *Result {
	log := clog.FromContext(ctx)
	patches, total := extended(ctx, groups, th, opts)
	if total+softBuffer < maxTokens {
		log.With("tokens", total).With("max_tokens", maxTokens).Info("Returning full diff")
		return &Result{Diff: strings.Join(patches, "\n")}
	}

	log.With("tokens", total).With("max_tokens", maxTokens).Info("Diff over limit, pruning")
	iterations := 1
	if opts.LargePR {
		iterations = max(1, opts.MaxChunks)
	}
	c := compressed(ctx, groups, th, maxTokens, opts.LineNumbers, iterations)
	if opts.LargePR && len(c.chunks) > 1 {
		log.With("chunks", len(c.chunks)).Info("Large PR, returning multiple chunks")
		return &Result{Chunks: c.chunks, Remaining: c.remaining, Deleted: c.deleted, Compressed: true}
	}

	first := c.chunks[0]
	budget := maxTokens - hardBuffer
	cur := first.Tokens
	final := first.Diff

	var added, modified, deleted []string
	if budget-cur > 10 {
		in := map[string]bool{}
		for _, f := range first.Files {
			in[f] = true
		}
		for _, e := range c.entries {
			if in[e.name] {
				continue
			}
			switch e.edit {
			case patch.Added:
				added = append(added, e.name)
			case patch.Modified, patch.Renamed:
				modified = append(modified, e.name)
			case patch.Deleted:
				deleted = append(deleted, e.name)
			}
		}
	}

	appendList := func(header string, names []string, last bool) {
		if len(names) == 0 {
			return
		}
		list := tokens.Clip(header+"\n"+strings.Join(names, "\n"), budget-cur)
		if list == "" {
			return
		}
		final += "\n\n" + list
		if !last {
			cur += th.Count(list) + 2
		}
	}
	appendList(addedFilesHeader, added, false)
	appendList(modifiedFilesHeader, modified, false)
	appendList(deletedFilesHeader, deleted, true)

	return &Result{Diff: final, Remaining: c.remaining, Deleted: c.deleted, Compressed: true}
}

// extended renders every patch with extra context and records each file's
// token count in groups.
func extended(ctx context.Context, groups []Group, th *tokens.Handler, opts Options) ([]string, int) {
	ext := opts.extendOptions(ctx)
	total := th.PromptTokens
	var patches []string
	for gi := range groups {
		for fi := range groups[gi].Files {
			f := &groups[gi].Files[fi]
			if f.Patch == "" {
				continue
			}
			p := patch.Extend(f.Base, f.Patch, f.Head, f.Filename, ext)
			if p == "" {
				clog.FromContext(ctx).With("file", f.Filename).Warn("Failed to extend patch")
				continue
			}
			var full string
			if opts.LineNumbers {
				full = patch.ConvertToLineNumbers(p, f)
			} else {
				p = strings.ReplaceAll(p, "\n@@ ", "\n\n@@ ")
				full = fmt.Sprintf("\n\n## File: '%s'\n\n%s\n", strings.TrimSpace(f.Filename), strings.TrimSpace(p))
			}
			f.Tokens = th.Measure(ctx, full)
			total += f.Tokens
			patches = append(patches, full)
		}
	}
	return patches, total
}

type entry struct {
	name   string
	patch  string
	tokens int
	edit   patch.EditType
}

type compression struct {
	chunks    []Chunk
	entries   []entry
	deleted   []string
	remaining []string
}

// bySize orders each language's files by token count, largest first.
func bySize(groups []Group) []patch.FilePatch {
	var out []patch.FilePatch
	for _, g := range groups {
		files := slices.Clone(g.Files)
		slices.SortStableFunc(files, func(a, b patch.FilePatch) int {
			return cmp.Compare(b.Tokens, a.Tokens)
		})
		out = append(out, files...)
	}
	return out
}

func compressed(ctx context.Context, groups []Group, th *tokens.Handler, maxTokens int, lineNumbers bool, iterations int) compression {
	var c compression
	index := map[string]int{}
	sorted := bySize(groups)
	for i := range sorted {
		f := &sorted[i]
		if f.Patch == "" {
			continue
		}
		p, deleted := patch.HandlePatchDeletions(ctx, f.Patch, f.Head, f.Filename, f.EditType)
		if deleted {
			if !slices.Contains(c.deleted, f.Filename) {
				c.deleted = append(c.deleted, f.Filename)
			}
			continue
		}
		if lineNumbers {
			p = patch.ConvertToLineNumbers(p, f)
		}
		e := entry{name: f.Filename, patch: p, tokens: th.Count(p), edit: f.EditType}
		if i, ok := index[e.name]; ok {
			c.entries[i] = e
			continue
		}
		index[e.name] = len(c.entries)
		c.entries = append(c.entries, e)
	}

	remaining := make([]string, 0, len(sorted))
	for _, f := range sorted {
		remaining = append(remaining, f.Filename)
	}
	for i := 0; i < iterations && len(remaining) > 0; i++ {
		chunk, rest := fullPatch(ctx, c.entries, remaining, th, maxTokens, lineNumbers)
		remaining = rest
		if i == 0 || len(chunk.Files) > 0 {
			c.chunks = append(c.chunks, chunk)
		}
	}
	if len(c.chunks) == 0 {
		c.chunks = []Chunk{{Tokens: th.PromptTokens}}
	}
	c.remaining = remaining
	return c
}

// fullPatch packs the entries named in pending into one chunk and returns
// the names of patches that were too large to fit.
func fullPatch(ctx context.Context, entries []entry, pending []string, th *tokens.Handler, maxTokens int, lineNumbers bool) (Chunk, []string) {
	log := clog.FromContext(ctx)
	chunk := Chunk{Tokens: th.PromptTokens}
	var patches, rest []string
	for _, e := range entries {
		if !slices.Contains(pending, e.name) {
			continue
		}
		if chunk.Tokens > maxTokens-hardBuffer {
			log.With("file", e.name).Warn("File skipped, no more tokens")
			continue
		}
		if chunk.Tokens+e.tokens > maxTokens-softBuffer {
			log.With("file", e.name).Debug("Patch too large, skipping")
			rest = append(rest, e.name)
			continue
		}
		if e.patch == "" {
			continue
		}
		var final string
		if lineNumbers {
			final = "\n\n" + strings.TrimSpace(e.patch)
		} else {
			final = fmt.Sprintf("\n\n## File: '%s'\n\n%s\n", strings.TrimSpace(e.name), strings.TrimSpace(e.patch))
		}
		patches = append(patches, final)
		chunk.Tokens += th.Count(final)
		chunk.Files = append(chunk.Files, e.name)
	}
	chunk.Diff = strings.Join(patches, "\n")
	return chunk, rest
}
