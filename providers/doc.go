/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package providers defines the git hosting backends the agent reads pull
// requests from and publishes results to.
//
// A Provider is bound to a single pull request. Backends implement the core
// interface and opt into the optional ones they support:
//
//	if d, ok := p.(providers.Describer); ok {
//		err = d.PublishDescription(ctx, title, body)
//	}
//
// # Persistent comments
//
// PublishPersistent keeps one comment per tool up to date across pushes. It
// finds the previous comment by its header, edits it in place and optionally
// announces the update:
//
//	err := providers.PublishPersistent(ctx, p, body, providers.Persistent{
//		Header:             "## PR Reviewer Guide",
//		Name:               "review",
//		UpdateHeader:       true,
//		FinalUpdateMessage: true,
//	})
//
// Concrete backends live in the sub-packages; factory selects one from the
// git_provider setting.
package providers
