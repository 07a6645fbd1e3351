/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package tokens

import "strings"

// Truncated is appended to clipped text.
const Truncated = "\n...(truncated)"

// clipFactor keeps clipped output safely under the budget.
const clipFactor = 0.9

type clipOptions struct {
	addEllipsis    bool
	deleteLastLine bool
	inputTokens    int
}

// ClipOption configures Clip.
type ClipOption func(*clipOptions)

// WithoutEllipsis omits the truncation marker.
func WithoutEllipsis() ClipOption {
	return func(o *clipOptions) { o.addEllipsis = false }
}

// DeleteLastLine drops the partial last line of clipped text.
func DeleteLastLine() ClipOption {
	return func(o *clipOptions) { o.deleteLastLine = true }
}

// WithInputTokens supplies a known token count for text.
func WithInputTokens(n int) ClipOption {
	return func(o *clipOptions) { o.inputTokens = n }
}

// Clip shortens text to roughly maxTokens tokens. Text already within budget is
// returned unchanged and a negative budget yields "".
func Clip(text string, maxTokens int, opts ...ClipOption) string {
	if text == "" {
		return text
	}
	o := clipOptions{addEllipsis: true, inputTokens: -1}
	for _, opt := range opts {
		opt(&o)
	}
	n := o.inputTokens
	if n < 0 {
		n = Estimate(text)
	}
	if n <= maxTokens {
		return text
	}
	if maxTokens < 0 {
		return ""
	}

	runes := []rune(text)
	charsPerTok := float64(len(runes)) / float64(n)
	keep := int(clipFactor * charsPerTok * float64(maxTokens))
	if keep <= 0 {
		return ""
	}
	clipped := string(runes[:min(keep, len(runes))])
	if o.deleteLastLine {
		if i := strings.LastIndex(clipped, "\n"); i >= 0 {
			clipped = clipped[:i]
		}
	}
	if o.addEllipsis {
		clipped += Truncated
	}
	return clipped
}
