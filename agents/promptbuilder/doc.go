/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package promptbuilder renders the system and user prompts that every command
sends to a model.

Templates come from settings (the [*_prompt] sections) and use {{name}}
placeholders. A template is tokenized once; bound values are inserted
verbatim and never rescanned, so diffs and PR descriptions that contain
"{{" cannot inject new placeholders.

	p, err := promptbuilder.Parse(store.String("pr_review_prompt.user"))
	if err != nil {
		return err
	}
	p, err = p.BindVars(map[string]string{"title": pr.Title, "diff": diff})
	if err != nil {
		return err
	}
	user, err := p.Build() // fails with ErrUnbound if a placeholder is missing

Structured values can be bound with BindJSON or BindYAML.
*/
package promptbuilder
