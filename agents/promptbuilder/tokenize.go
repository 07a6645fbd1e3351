/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package promptbuilder

import (
	"fmt"
	"strings"
	"unicode"
)

// segment is either literal text or a placeholder reference.
type segment struct {
	text        string
	placeholder string
}

// scan splits a template into literal and placeholder segments in one pass.
// Values substituted later are never rescanned, so a bound diff that contains
// "{{...}}" stays literal.
func scan(template string) ([]segment, error) {
	var segs []segment
	offset := 0
	for len(template) > 0 {
		start := strings.Index(template, "{{")
		if start == -1 {
			segs = append(segs, segment{text: template})
			break
		}
		if start > 0 {
			segs = append(segs, segment{text: template[:start]})
		}

		end := strings.Index(template[start:], "}}")
		if end == -1 {
			return nil, fmt.Errorf("unclosed placeholder at offset %d: missing '}}'", offset+start)
		}
		end += start + 2

		name := strings.TrimSpace(template[start+2 : end-2])
		if !isValidIdentifier(name) {
			return nil, fmt.Errorf("invalid placeholder %q at offset %d", name, offset+start)
		}
		segs = append(segs, segment{placeholder: name})

		offset += end
		template = template[end:]
	}
	return segs, nil
}

// isValidIdentifier accepts a letter followed by letters, digits or underscores.
func isValidIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case unicode.IsLetter(r):
		case i > 0 && (unicode.IsDigit(r) || r == '_'):
		default:
			return false
		}
	}
	return s != ""
}
