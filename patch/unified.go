/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package patch

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sourcegraph/go-diff/diff"
)

// LoadLargeDiff builds a unified diff from the two versions of a file for
// providers that omit patches of large files. Trailing whitespace of either
// version is ignored.
func LoadLargeDiff(newContent, original string) (string, error) {
	if newContent == "" && original == "" {
		return "", nil
	}
	out, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:       splitLinesKeepEnds(rstrip(original) + "\n"),
		B:       splitLinesKeepEnds(rstrip(newContent) + "\n"),
		Context: 3,
	})
	if err != nil {
		return "", fmt.Errorf("computing diff: %w", err)
	}
	if out == "" {
		return "", nil
	}
	return "--- \n+++ \n" + out, nil
}

// SplitUnifiedDiff splits a multi-file git diff into per-file patches. File
// contents are left empty.
func SplitUnifiedDiff(text string) ([]FilePatch, error) {
	fds, err := diff.ParseMultiFileDiff([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}
	out := make([]FilePatch, 0, len(fds))
	for _, fd := range fds {
		body, err := diff.PrintHunks(fd.Hunks)
		if err != nil {
			return nil, fmt.Errorf("printing hunks of %s: %w", fd.NewName, err)
		}
		fp := FilePatch{
			Filename:    trimPrefix(fd.NewName),
			OldFilename: trimPrefix(fd.OrigName),
			Patch:       string(body),
			EditType:    Modified,
		}
		switch {
		case fd.OrigName == "/dev/null":
			fp.EditType = Added
			fp.OldFilename = ""
		case fd.NewName == "/dev/null":
			fp.EditType = Deleted
			fp.Filename = fp.OldFilename
		case fp.Filename != fp.OldFilename:
			fp.EditType = Renamed
		}
		for _, ext := range fd.Extended {
			switch {
			case strings.HasPrefix(ext, "new file mode"):
				fp.EditType = Added
			case strings.HasPrefix(ext, "deleted file mode"):
				fp.EditType = Deleted
			case strings.HasPrefix(ext, "rename from "):
				fp.EditType = Renamed
				fp.OldFilename = strings.TrimPrefix(ext, "rename from ")
			case strings.HasPrefix(ext, "rename to ") && fp.Filename == "":
				fp.Filename = strings.TrimPrefix(ext, "rename to ")
			}
		}
		if fp.Filename == "" {
			fp.Filename = fp.OldFilename
		}
		if fp.EditType != Renamed {
			fp.OldFilename = ""
		}
		fp.NumPlusLines, fp.NumMinusLines = CountLines(fp.Patch)
		out = append(out, fp)
	}
	return out, nil
}

func trimPrefix(name string) string {
	if name == "/dev/null" {
		return ""
	}
	for _, p := range []string{"a/", "b/"} {
		if strings.HasPrefix(name, p) {
			return name[len(p):]
		}
	}
	return name
}
