/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package factory builds the providers.Provider named by
// config.git_provider.
package factory

import (
	"context"
	"fmt"

	"chainguard.dev/pragent/providers"
	"chainguard.dev/pragent/providers/giteaprovider"
	"chainguard.dev/pragent/providers/githubprovider"
	"chainguard.dev/pragent/providers/gitlabprovider"
	"chainguard.dev/pragent/providers/localprovider"
	"chainguard.dev/pragent/settings"
)

// New returns a provider for prURL. For the local provider prURL names the
// target branch.
func New(ctx context.Context, s *settings.Store, prURL string) (providers.Provider, error) {
	switch name := s.String("config.git_provider"); name {
	case githubprovider.Name:
		return wrap(githubprovider.New(ctx, prURL, githubprovider.ConfigFromStore(s)))
	case gitlabprovider.Name:
		return wrap(gitlabprovider.New(prURL, gitlabprovider.ConfigFromStore(s)))
	case giteaprovider.Name:
		return wrap(giteaprovider.New(ctx, prURL, giteaprovider.ConfigFromStore(s)))
	case localprovider.Name:
		return wrap(localprovider.New(prURL, localprovider.ConfigFromStore(s)))
	default:
		return nil, fmt.Errorf("%w: %q", providers.ErrUnknownProvider, name)
	}
}

// wrap keeps a failed constructor from yielding a non-nil interface.
func wrap[P providers.Provider](p P, err error) (providers.Provider, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}
