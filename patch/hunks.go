/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package patch

import (
	"context"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"
)

// OmitDeletionHunks drops hunks that add no lines.
func OmitDeletionHunks(lines []string) string {
	var kept, pending []string
	adds, inside := false, false
	for _, line := range lines {
		if strings.HasPrefix(line, "@@") {
			if _, ok := parseHunkHeader(line); ok {
				if inside && adds {
					kept = append(kept, pending...)
				}
				if inside {
					pending = nil
				}
				adds = false
				pending = append(pending, line)
				inside = true
			}
			continue
		}
		pending = append(pending, line)
		if strings.HasPrefix(line, "+") {
			adds = true
		}
	}
	if inside && adds {
		kept = append(kept, pending...)
	}
	return strings.Join(kept, "\n")
}

// HandlePatchDeletions minimizes deletions. It reports deleted when the file
// was removed, in which case the patch should not be shown at all; otherwise
// it returns patch without its deletion-only hunks.
func HandlePatchDeletions(ctx context.Context, patch, newContent, filename string, editType EditType) (string, bool) {
	if newContent == "" && (editType == Deleted || editType == Unknown) {
		clog.FromContext(ctx).With("file", filename).Debug("Minimizing deleted file")
		return "", true
	}
	trimmed := OmitDeletionHunks(splitLines(patch))
	if trimmed != patch {
		clog.FromContext(ctx).With("file", filename).Debug("Removed deletion hunks")
	}
	return trimmed, false
}

// ConvertToLineNumbers renders patch as "__new hunk__" sections whose lines
// carry their line number in the new file, followed by "__old hunk__"
// sections listing removed lines. A nil file omits the file header.
func ConvertToLineNumbers(patch string, file *FilePatch) string {
	var b strings.Builder
	if file != nil {
		name := strings.TrimSpace(file.Filename)
		if file.EditType == Deleted {
			return fmt.Sprintf("\n\n## File '%s' was deleted\n", name)
		}
		fmt.Fprintf(&b, "\n\n## File: '%s'\n", name)
	}
	out := b.String()

	var newLines, oldLines []string
	var cur hunk
	matched := false
	prevHeader, header := "", ""

	flush := func(h string) {
		if h != "" {
			out += "\n" + h + "\n"
		}
		plus := hasPrefix(newLines, "+")
		minus := hasPrefix(oldLines, "-")
		if plus || minus {
			out = rstrip(out) + "\n__new hunk__\n"
			for i, l := range newLines {
				out += fmt.Sprintf("%d %s\n", cur.start2+i, l)
			}
		}
		if minus {
			out = rstrip(out) + "\n__old hunk__\n"
			for _, l := range oldLines {
				out += l + "\n"
			}
		}
	}

	lines := splitLines(patch)
	for i, line := range lines {
		if strings.Contains(strings.ToLower(line), "no newline at end of file") {
			continue
		}
		switch {
		case strings.HasPrefix(line, "@@"):
			header = line
			h, ok := parseHunkHeader(line)
			matched = ok
			if ok && (len(newLines) > 0 || len(oldLines) > 0) {
				flush(prevHeader)
				newLines, oldLines = nil, nil
			}
			if ok {
				prevHeader = header
				cur = h
			}
		case strings.HasPrefix(line, "+"):
			newLines = append(newLines, line)
		case strings.HasPrefix(line, "-"):
			oldLines = append(oldLines, line)
		default:
			if line == "" && i > 0 {
				if i+1 < len(lines) && strings.HasPrefix(lines[i+1], "@@") {
					continue
				}
				if i+1 == len(lines) {
					continue
				}
			}
			newLines = append(newLines, line)
			oldLines = append(oldLines, line)
		}
	}
	if matched && len(newLines) > 0 {
		flush(header)
	}
	return rstrip(out)
}

func hasPrefix(lines []string, prefix string) bool {
	for _, l := range lines {
		if strings.HasPrefix(l, prefix) {
			return true
		}
	}
	return false
}

// Side selects which version of the file line numbers refer to.
type Side string

const (
	Left  Side = "left"
	Right Side = "right"
)

// ExtractHunkLines returns the hunks of patch containing lineStart on side,
// rendered with a file header, and the lines between lineStart and lineEnd.
// Removed lines do not advance the line counter.
func ExtractHunkLines(patch, filename string, lineStart, lineEnd int, side Side) (hunks, selected string) {
	out := fmt.Sprintf("\n\n## File: '%s'\n\n", strings.TrimSpace(filename))
	var sel strings.Builder
	side = Side(strings.ToLower(string(side)))

	var cur hunk
	skip := false
	n := 0
	for _, line := range splitLines(patch) {
		if strings.Contains(strings.ToLower(line), "no newline at end of file") {
			continue
		}
		if strings.HasPrefix(line, "@@") {
			skip, n = false, 0
			h, ok := parseHunkHeader(line)
			if !ok {
				return "", ""
			}
			cur = h
			switch side {
			case Left:
				if lineStart < h.start1 || lineStart > h.start1+h.size1 {
					skip = true
					continue
				}
			case Right:
				if lineStart < h.start2 || lineStart > h.start2+h.size2 {
					skip = true
					continue
				}
			}
			out += "\n" + line + "\n"
			continue
		}
		if skip {
			continue
		}
		if side == Right && lineStart <= cur.start2+n && cur.start2+n <= lineEnd {
			sel.WriteString(line + "\n")
		}
		if side == Left && n+cur.start1 <= lineEnd {
			sel.WriteString(line + "\n")
		}
		out += line + "\n"
		if !strings.HasPrefix(line, "-") {
			n++
		}
	}
	return rstrip(out), rstrip(sel.String())
}
