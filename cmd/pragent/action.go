/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"errors"
	"fmt"
	"os"

	"chainguard.dev/pragent/agent"
	"chainguard.dev/pragent/analytics"
	"chainguard.dev/pragent/servers"
	"chainguard.dev/pragent/workqueue"
	"github.com/spf13/cobra"
)

func actionCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:          "action",
		Short:        "Handle the event that triggered a GitHub Actions workflow",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if cfg.GitHubEventName == "" || cfg.GitHubEventPath == "" {
				return errors.New("GITHUB_EVENT_NAME and GITHUB_EVENT_PATH must be set")
			}
			if cfg.GitHubToken == "" {
				return errors.New("GITHUB_TOKEN must be set")
			}
			payload, err := os.ReadFile(cfg.GitHubEventPath)
			if err != nil {
				return fmt.Errorf("reading event: %w", err)
			}
			s, err := loadSettings(ctx, cfg, os.Environ())
			if err != nil {
				return err
			}
			store, err := analytics.OpenFromStore(ctx, s)
			if err != nil {
				return err
			}
			defer store.Close()

			a := agent.New(s, agent.WithAnalytics(store))
			srv := servers.New(a, workqueue.New(), servers.WithAnalytics(store))
			return srv.RunGitHubAction(ctx, cfg.GitHubEventName, payload)
		},
	}
}
