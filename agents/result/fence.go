/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package result

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractFence returns the body of the first ```lang block in text. Without a
// block it returns text trimmed of whitespace and stray fences. An unterminated
// block runs to the end of text.
func extractFence(text, lang string) string {
	open := "```" + lang
	var body []string
	in, found := false, false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case !in && !found && trimmed == open:
			in, found = true, true
		case in && trimmed == "```":
			in = false
		case in:
			body = append(body, line)
		}
	}
	if found {
		return strings.TrimSpace(strings.Join(body, "\n"))
	}

	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, open)
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// ExtractJSON returns the JSON payload of a model response that may wrap it
// in a ```json block.
func ExtractJSON(text string) string {
	return extractFence(text, "json")
}

// Extract unmarshals the JSON payload of a model response into T.
func Extract[T any](text string) (T, error) {
	var out T
	if err := json.Unmarshal([]byte(ExtractJSON(text)), &out); err != nil {
		return out, fmt.Errorf("decode JSON response: %w", err)
	}
	return out, nil
}
