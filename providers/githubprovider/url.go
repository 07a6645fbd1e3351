/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubprovider

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"chainguard.dev/pragent/providers"
)

// ParseURL extracts the repository and number from a pull request URL. Both
// web URLs (https://github.com/o/r/pull/1) and API URLs
// (https://api.github.com/repos/o/r/pulls/1) are accepted, including GitHub
// Enterprise hosts.
func ParseURL(prURL string) (owner, repo string, number int, err error) {
	u, err := url.Parse(prURL)
	if err != nil {
		return "", "", 0, fmt.Errorf("%w: %w", providers.ErrUnsupportedURL, err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) > 2 && parts[0] == "api" && parts[1] == "v3" {
		parts = parts[2:]
	}
	kind := "pull"
	if len(parts) > 0 && parts[0] == "repos" {
		parts, kind = parts[1:], "pulls"
	}
	if len(parts) < 4 || parts[2] != kind {
		return "", "", 0, fmt.Errorf("%w: %s", providers.ErrUnsupportedURL, prURL)
	}
	number, err = strconv.Atoi(parts[3])
	if err != nil {
		return "", "", 0, fmt.Errorf("%w: bad pull request number in %s", providers.ErrUnsupportedURL, prURL)
	}
	return parts[0], parts[1], number, nil
}
