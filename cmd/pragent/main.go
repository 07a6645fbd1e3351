/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package main is the pragent command: it runs pull request tools from the
// command line, serves webhooks and runs inside GitHub Actions.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"chainguard.dev/pragent/agent"
	"chainguard.dev/pragent/analytics"
	"chainguard.dev/pragent/secrets"
	"chainguard.dev/pragent/settings"
	"github.com/chainguard-dev/clog"
	_ "github.com/chainguard-dev/clog/gcp/init"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"
)

type config struct {
	SettingsFile string `env:"PRAGENT_SETTINGS"`
	SecretsFile  string `env:"PRAGENT_SECRETS,default=.secrets.toml"`

	Port        int    `env:"PORT,default=3000"`
	Workers     int    `env:"WORKERS,default=4"`
	BuildNumber string `env:"BUILD_NUMBER,default=unknown"`

	GitHubEventName string `env:"GITHUB_EVENT_NAME"`
	GitHubEventPath string `env:"GITHUB_EVENT_PATH"`
	GitHubToken     string `env:"GITHUB_TOKEN"`
	OpenAIKey       string `env:"OPENAI_KEY"`
	OpenAIOrg       string `env:"OPENAI_ORG"`
}

func version() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "devel"
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}

	root := rootCmd(&cfg)
	root.AddCommand(serveCmd(&cfg), actionCmd(&cfg), schemaCmd())
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd(cfg *config) *cobra.Command {
	var prURL string
	cmd := &cobra.Command{
		Use:   "pragent --pr_url URL <command> [args]",
		Short: "AI based pull request analyzer",
		Long: `Runs a tool on a pull request and publishes its feedback on the pull request.

Commands: review, describe, improve, ask, ask_line, update_changelog, generate_labels, help, config.
Any setting can be overridden with --section.key=value, for example
  pragent --pr_url=... review --pr_reviewer.extra_instructions="focus on main.go"`,
		Version:      version(),
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if prURL == "" {
				return errors.New("--pr_url is required")
			}
			s, err := loadSettings(ctx, cfg, os.Environ())
			if err != nil {
				return err
			}
			s.Set("config.cli_mode", true)
			store, err := analytics.OpenFromStore(ctx, s)
			if err != nil {
				return err
			}
			defer store.Close()

			a := agent.New(s, agent.WithAnalytics(store))
			args[0] = strings.ToLower(args[0])
			if _, err := a.Handle(ctx, prURL, args, nil); err != nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&prURL, "pr_url", "", "URL of the pull request")
	// everything after the command belongs to it
	cmd.Flags().SetInterspersed(false)
	return cmd
}

// loadSettings layers the settings and secrets files, SECTION__KEY
// environment variables and the configured secret provider over the
// defaults.
func loadSettings(ctx context.Context, cfg *config, environ []string) (*settings.Store, error) {
	s, err := settings.Load(
		settings.WithOptionalFile(cfg.SettingsFile),
		settings.WithOptionalFile(cfg.SecretsFile),
		settings.WithEnv(environ),
	)
	if err != nil {
		return nil, err
	}
	if cfg.OpenAIKey != "" {
		s.Set("openai.key", cfg.OpenAIKey)
	}
	if cfg.OpenAIOrg != "" {
		s.Set("openai.org", cfg.OpenAIOrg)
	}
	if cfg.GitHubToken != "" && s.String("github.user_token") == "" {
		s.Set("github.user_token", cfg.GitHubToken)
	}

	provider, err := secrets.FromStore(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("creating secret provider: %w", err)
	}
	if provider != nil {
		all, err := provider.All(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading secrets: %w", err)
		}
		// other entries are keyed by webhook token
		dotted := make(map[string]string, len(all))
		for k, v := range all {
			if strings.Contains(k, ".") {
				dotted[k] = v
			}
		}
		s.ApplySecrets(dotted)
	}
	if _, err := s.Settings(); err != nil {
		return nil, err
	}
	return s, nil
}
