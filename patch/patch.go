/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package patch manipulates single-file unified diffs: it widens hunks with
// context from the original file, drops deletion-only hunks, renders hunks
// with line numbers for the model and splits multi-file diffs.
package patch

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// EditType classifies how a pull request changed a file.
type EditType int

const (
	Unknown EditType = iota
	Added
	Deleted
	Modified
	Renamed
)

func (e EditType) String() string {
	switch e {
	case Added:
		return "added"
	case Deleted:
		return "deleted"
	case Modified:
		return "modified"
	case Renamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FilePatch is one changed file of a pull request.
type FilePatch struct {
	Filename    string
	OldFilename string
	// Base and Head hold the file content before and after the change.
	Base     string
	Head     string
	Patch    string
	EditType EditType

	NumPlusLines  int
	NumMinusLines int
	// Tokens is filled in by the diff builder.
	Tokens int
}

// CountLines returns the number of added and removed lines in patch.
func CountLines(patch string) (plus, minus int) {
	for _, line := range splitLines(patch) {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			plus++
		case strings.HasPrefix(line, "-"):
			minus++
		}
	}
	return plus, minus
}

var hunkHeader = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@[ ]?(.*)`)

type hunk struct {
	start1, size1 int
	start2, size2 int
	section       string
}

// parseHunkHeader parses an "@@ -a,b +c,d @@ section" line. Omitted sizes
// parse as zero.
func parseHunkHeader(line string) (hunk, bool) {
	m := hunkHeader.FindStringSubmatch(line)
	if m == nil {
		return hunk{}, false
	}
	num := func(s string) int {
		n, _ := strconv.Atoi(s)
		return n
	}
	return hunk{
		start1:  num(m[1]),
		size1:   num(m[2]),
		start2:  num(m[3]),
		size2:   num(m[4]),
		section: m[5],
	}, true
}

// splitLines splits on line breaks without a trailing empty element.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// splitLinesKeepEnds is splitLines that keeps the line terminators.
func splitLinesKeepEnds(s string) []string {
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// slice returns lines[lo:hi] with negative indices counted from the end and
// out of range bounds clamped.
func slice(lines []string, lo, hi int) []string {
	clamp := func(i int) int {
		if i < 0 {
			i += len(lines)
		}
		return max(0, min(i, len(lines)))
	}
	lo, hi = clamp(lo), clamp(hi)
	if lo >= hi {
		return nil
	}
	return lines[lo:hi]
}

func rstrip(s string) string {
	return strings.TrimRightFunc(s, unicode.IsSpace)
}

func prefixed(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = " " + l
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
