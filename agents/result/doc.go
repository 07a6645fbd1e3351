/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package result parses structured answers out of model responses.

Most commands ask the model for YAML. DecodeYAML strips the ```yaml fence and,
when the document does not parse, retries with a sequence of repairs for the
mistakes models commonly make: unquoted multi-line values, lost block-scalar
indentation, leading '+' markers copied from diffs, tabs, and prose around the
document.

	type review struct {
		Review struct {
			SecurityConcerns string `yaml:"security_concerns"`
		} `yaml:"review"`
	}
	out, err := result.DecodeYAML[review](ctx, response, result.WithKeyRange("review", "security_concerns"))

ExtractJSON and Extract do the same for ```json blocks without repairs.
*/
package result
