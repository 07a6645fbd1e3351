/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package agent turns a command request on a pull request into a tool run:
// it layers the repository's settings and the request's overrides over the
// base settings, picks the tool and records the outcome.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"chainguard.dev/pragent/agents/agenttrace"
	"chainguard.dev/pragent/agents/metaagent"
	"chainguard.dev/pragent/agents/metrics"
	"chainguard.dev/pragent/analytics"
	"chainguard.dev/pragent/providers"
	"chainguard.dev/pragent/providers/factory"
	"chainguard.dev/pragent/settings"
	"chainguard.dev/pragent/tools"
	"github.com/chainguard-dev/clog"
	"github.com/google/shlex"
)

// DefaultClaudeModel replaces the "claude-sonnet" model alias.
const DefaultClaudeModel = "claude-sonnet-4-5"

// ErrEmptyRequest is returned for requests without a command.
var ErrEmptyRequest = errors.New("empty request")

// ProviderFactory binds a provider to a pull request.
type ProviderFactory func(ctx context.Context, s *settings.Store, prURL string) (providers.Provider, error)

// Agent runs commands against pull requests. It is safe for concurrent use;
// every request works on its own copy of the settings.
type Agent struct {
	settings    *settings.Store
	newProvider ProviderFactory
	routerOpts  []metaagent.Option
	recorder    *metrics.Recorder
	analytics   analytics.Store
}

// Option configures an Agent.
type Option func(*Agent)

// WithProviderFactory replaces the provider selected by config.git_provider.
func WithProviderFactory(f ProviderFactory) Option {
	return func(a *Agent) { a.newProvider = f }
}

// WithRouterOptions adds options to the model router of every request.
func WithRouterOptions(opts ...metaagent.Option) Option {
	return func(a *Agent) { a.routerOpts = append(a.routerOpts, opts...) }
}

// WithRecorder records command and model metrics on rec.
func WithRecorder(rec *metrics.Recorder) Option {
	return func(a *Agent) { a.recorder = rec }
}

// WithAnalytics records every command run in store.
func WithAnalytics(store analytics.Store) Option {
	return func(a *Agent) { a.analytics = store }
}

// New creates an Agent over the base settings s.
func New(s *settings.Store, opts ...Option) *Agent {
	a := &Agent{
		settings:    s,
		newProvider: factory.New,
		recorder:    metrics.New(metrics.MeterName),
		analytics:   analytics.Nop{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Settings returns a copy of the base settings.
func (a *Agent) Settings() *settings.Store { return a.settings.Clone() }

// WithSettings returns an Agent sharing a's options over the base settings s.
func (a *Agent) WithSettings(s *settings.Store) *Agent {
	c := *a
	c.settings = s
	return &c
}

// Prepare returns the settings for prURL, the base settings with the
// repository's settings layered on top, and the provider bound to prURL.
func (a *Agent) Prepare(ctx context.Context, prURL string) (*settings.Store, providers.Provider, error) {
	s := a.settings.Clone()
	provider, err := a.newProvider(ctx, s, prURL)
	if err != nil {
		return nil, nil, fmt.Errorf("creating provider: %w", err)
	}
	applyRepoSettings(ctx, s, provider)
	return s, provider, nil
}

// SplitRequest splits a comment such as `/ask "what's new?"` into words the
// way a shell would. Apostrophes are kept literal.
func SplitRequest(request string) ([]string, error) {
	words, err := shlex.Split(strings.ReplaceAll(request, "'", `\'`))
	if err != nil {
		return nil, fmt.Errorf("splitting request: %w", err)
	}
	return words, nil
}

// HandleRequest runs the command in request, a comment such as
// "/review --pr_reviewer.num_max_findings=5". notify is called once the
// command is accepted, except for automatic reviews. It reports whether a
// command ran successfully.
func (a *Agent) HandleRequest(ctx context.Context, prURL, request string, notify func()) (bool, error) {
	words, err := SplitRequest(request)
	if err != nil {
		return false, err
	}
	return a.Handle(ctx, prURL, words, notify)
}

// Handle is HandleRequest for a request that is already split into words.
func (a *Agent) Handle(ctx context.Context, prURL string, request []string, notify func()) (bool, error) {
	if len(request) == 0 {
		return false, ErrEmptyRequest
	}
	action, args := request[0], request[1:]
	name := tools.Normalize(action)
	log := clog.FromContext(ctx).With("command", name).With("pr_url", prURL)
	ctx = clog.WithLogger(ctx, log)

	if err := settings.ValidateArgs(args); err != nil {
		log.With("error", err).Error("Rejected command arguments")
		return false, err
	}
	cmd, err := tools.Lookup(name)
	if err != nil {
		log.Info("Unknown command")
		return false, err
	}

	s, provider, err := a.Prepare(ctx, prURL)
	if err != nil {
		return false, err
	}
	args = s.ApplyArgs(args)
	s.ApplyResponseLanguage()
	s.ExpandModelAlias(DefaultClaudeModel)

	if name != "auto_review" && notify != nil {
		notify()
	}

	ctx = agenttrace.WithRequestContext(ctx, agenttrace.RequestContext{
		Provider:   provider.Name(),
		Repository: repository(prURL),
		Command:    name,
	})
	ctx, trace := agenttrace.StartTrace(ctx, name)
	router := metaagent.New(metaagent.ConfigFromStore(s), append([]metaagent.Option{metaagent.WithRecorder(a.recorder)}, a.routerOpts...)...)
	record := analytics.NewCommand(name, prURL, provider.Name())

	err = cmd(ctx, tools.Env{Provider: provider, Settings: s, Router: router}, args)

	trace.Complete(err)
	a.recorder.RecordCommand(ctx, name, provider.Name(), err)
	if aerr := a.analytics.RecordCommand(ctx, record.Finish(err)); aerr != nil {
		log.With("error", aerr).Warn("Failed to record command")
	}
	if err != nil {
		return false, fmt.Errorf("running %s: %w", name, err)
	}
	log.With("duration", trace.Duration()).Info("Command finished")
	return true, nil
}

// applyRepoSettings layers the repository's .pr_agent.toml over s. Broken
// files are logged and ignored.
func applyRepoSettings(ctx context.Context, s *settings.Store, p providers.Provider) {
	log := clog.FromContext(ctx)
	data, err := p.RepoSettings(ctx)
	if err != nil {
		log.With("error", err).Warn("Failed to read repository settings")
		return
	}
	if len(data) == 0 {
		return
	}
	if err := s.MergeTOML(data); err != nil {
		log.With("error", err).Warn("Ignoring invalid repository settings")
		return
	}
	log.Info("Applied repository settings")
}

// repository returns the "owner/repo" part of a pull request URL.
func repository(prURL string) string {
	u, err := url.Parse(prURL)
	if err != nil || u.Host == "" {
		return ""
	}
	path := strings.Trim(u.Path, "/")
	for _, marker := range []string{"/-/merge_requests/", "/merge_requests/", "/pulls/", "/pull/"} {
		if i := strings.Index(path, marker); i >= 0 {
			return strings.TrimPrefix(path[:i], "repos/")
		}
	}
	return path
}
