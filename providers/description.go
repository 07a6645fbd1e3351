/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package providers

import (
	"strings"
)

const userDescriptionHeader = "### **user description**"

// generatedHeaders open descriptions the describe tool wrote.
var generatedHeaders = []string{
	userDescriptionHeader,
	"### **pr type**",
	"### **pr description**",
	"### **pr labels**",
	"### **type**",
	"### **description**",
	"### **labels**",
	"### 🤖 generated by pr agent",
}

// IsGeneratedDescription reports whether description was written by the
// describe tool.
func IsGeneratedDescription(description string) bool {
	lower := lowerASCII(strings.TrimSpace(description))
	for _, h := range generatedHeaders {
		if strings.HasPrefix(lower, h) {
			return true
		}
	}
	return false
}

// UserDescription returns the part of a pull request description the author
// wrote. Descriptions the describe tool did not generate are returned as is;
// generated ones yield the text kept under the user description header.
func UserDescription(description string) string {
	description = strings.TrimSpace(description)
	if !IsGeneratedDescription(description) {
		return description
	}
	lower := lowerASCII(description)
	if !strings.Contains(lower, userDescriptionHeader) {
		return ""
	}

	start := strings.Index(lower, userDescriptionHeader) + len(userDescriptionHeader)
	end := len(description)
	for _, h := range generatedHeaders {
		if h == userDescriptionHeader {
			continue
		}
		if i := strings.Index(lower, h); i >= 0 {
			end = min(end, i)
		}
	}
	if end != len(description) && end > start {
		out := strings.TrimSpace(description[start:end])
		if trimmed, ok := strings.CutSuffix(out, "___"); ok {
			out = strings.TrimSpace(trimmed)
		}
		return out
	}
	out, _, _ := strings.Cut(description, "___")
	out = strings.TrimSpace(out)
	if strings.HasPrefix(lowerASCII(out), userDescriptionHeader) {
		out = strings.TrimSpace(out[len(userDescriptionHeader):])
	}
	return out
}

// lowerASCII lower-cases ASCII letters only so byte offsets match the input.
func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}
