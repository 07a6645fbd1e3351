/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package patch

import (
	"fmt"
	"strings"
)

// ExtendOptions controls how much context Extend adds around each hunk.
type ExtendOptions struct {
	Before int
	After  int
	// AllowDynamicContext widens a hunk up to MaxLinesBeforeDynamic lines
	// when that reaches the enclosing function or class named in the hunk
	// section header.
	AllowDynamicContext   bool
	MaxLinesBeforeDynamic int
	// SkipExtensions lists filename suffixes that are never extended.
	SkipExtensions []string
}

// Extend adds lines of the original file before and after every hunk of
// patch. newFile is the file after the change; when present, context lines
// that differ between the two versions are not added. Hunks whose first
// context line does not match original are left alone.
func Extend(original, patch, newFile, filename string, opts ExtendOptions) string {
	if patch == "" || (opts.Before == 0 && opts.After == 0) || original == "" {
		return patch
	}
	if filename != "" {
		for _, ext := range opts.SkipExtensions {
			if ext != "" && strings.HasSuffix(filename, ext) {
				return patch
			}
		}
	}
	return extendLines(patch, original, newFile, opts)
}

func extendLines(patchStr, originalStr, newStr string, opts ExtendOptions) string {
	original := splitLines(originalStr)
	newLines := splitLines(newStr)
	patchLines := splitLines(patchStr)
	var out []string

	valid := true
	cur := hunk{start1: -1, size1: -1, start2: -1, size2: -1}

	appendAfter := func() {
		if valid && cur.start1 != -1 && opts.After > 0 {
			from := cur.start1 + cur.size1 - 1
			out = append(out, prefixed(slice(original, from, from+opts.After))...)
		}
	}

	for i, line := range patchLines {
		if !strings.HasPrefix(line, "@@") {
			out = append(out, line)
			continue
		}
		h, ok := parseHunkHeader(line)
		if !ok {
			out = append(out, line)
			continue
		}
		appendAfter()
		cur = h
		valid = hunkMatchesFile(i, original, patchLines, h.start1)

		ext := h
		section := h.section
		var delta []string
		if valid && (opts.Before > 0 || opts.After > 0) {
			ext, section, delta = widen(h, original, newLines, opts)
		}
		out = append(out, "", fmt.Sprintf("@@ -%d,%d +%d,%d @@ %s", ext.start1, ext.size1, ext.start2, ext.size2, section))
		out = append(out, delta...)
	}
	appendAfter()
	return strings.Join(out, "\n")
}

// contextLimits widens h by before lines above and opts.After lines below,
// never past the end of the original file.
func contextLimits(h hunk, before, after, originalLen int) hunk {
	e := hunk{section: h.section}
	e.start1 = max(1, h.start1-before)
	e.size1 = h.size1 + (h.start1 - e.start1) + after
	e.start2 = max(1, h.start2-before)
	e.size2 = h.size2 + (h.start2 - e.start2) + after
	if over := e.start1 - 1 + e.size1 - originalLen; over > 0 {
		e.size1 = max(e.size1-over, h.size1)
		e.size2 = max(e.size2-over, h.size2)
	}
	return e
}

// widen computes the extended hunk header, its section label and the
// context lines to insert after it.
func widen(h hunk, original, newLines []string, opts ExtendOptions) (hunk, string, []string) {
	section := h.section
	var e hunk
	found := false
	if opts.AllowDynamicContext && len(newLines) > 0 {
		e = contextLimits(h, opts.MaxLinesBeforeDynamic, opts.After, len(original))
		beforeOrig := slice(original, e.start1-1, h.start1-1)
		beforeNew := slice(newLines, e.start2-1, h.start2-1)
		for i, line := range beforeOrig {
			if !strings.Contains(line, section) {
				continue
			}
			e.start1, e.start2 = e.start1+i, e.start2+i
			e.size1, e.size2 = e.size1-i, e.size2-i
			if equal(slice(beforeOrig, i, len(beforeOrig)), slice(beforeNew, i, len(beforeNew))) {
				found = true
				section = ""
			}
			break
		}
	}
	if !found {
		e = contextLimits(h, opts.Before, opts.After, len(original))
	}

	delta := prefixed(slice(original, e.start1-1, h.start1-1))
	if len(newLines) > 0 {
		deltaNew := prefixed(slice(newLines, e.start2-1, h.start2-1))
		if !equal(delta, deltaNew) {
			matched := false
			for i := range delta {
				if equal(slice(delta, i, len(delta)), slice(deltaNew, i, len(deltaNew))) {
					delta = slice(delta, i, len(delta))
					e.start1 += i
					e.size1 -= i
					e.start2 += i
					e.size2 -= i
					matched = true
					break
				}
			}
			if !matched {
				e = h
				delta = nil
			}
		}
	}

	if section != "" && !opts.AllowDynamicContext {
		for _, line := range delta {
			if strings.Contains(line, section) {
				section = ""
				break
			}
		}
	}
	return e, section, delta
}

// hunkMatchesFile reports whether the first context line after the header
// at index i matches line start1 of the original file.
func hunkMatchesFile(i int, original, patchLines []string, start1 int) bool {
	if i+1 >= len(patchLines) || !strings.HasPrefix(patchLines[i+1], " ") {
		return true
	}
	if start1 < 1 || start1 > len(original) {
		return true
	}
	return strings.TrimSpace(patchLines[i+1]) == strings.TrimSpace(original[start1-1])
}
