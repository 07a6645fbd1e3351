/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package servers receives GitHub, GitLab and Gitea webhooks and queues the
// commands they trigger.
package servers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"chainguard.dev/pragent/agent"
	"chainguard.dev/pragent/analytics"
	"chainguard.dev/pragent/providers"
	"chainguard.dev/pragent/providers/factory"
	"chainguard.dev/pragent/secrets"
	"chainguard.dev/pragent/settings"
	"chainguard.dev/pragent/tools"
	"chainguard.dev/pragent/workqueue"
	"github.com/chainguard-dev/clog"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Kinds of webhook servers.
const (
	GitHub = "github"
	GitLab = "gitlab"
	Gitea  = "gitea"
)

// RequestIDHeader carries the id assigned to every webhook delivery.
const RequestIDHeader = "X-Request-ID"

// Server turns webhook deliveries into queued agent requests.
type Server struct {
	agent       *agent.Agent
	queue       *workqueue.Queue
	gate        *workqueue.PushGate
	newProvider agent.ProviderFactory
	analytics   analytics.Store
	secrets     secrets.Provider
	metrics     http.Handler
	buildNumber string
}

// Option configures a Server.
type Option func(*Server)

// WithProviderFactory sets the factory used for eye reactions. It should
// match the agent's.
func WithProviderFactory(f agent.ProviderFactory) Option {
	return func(s *Server) { s.newProvider = f }
}

// WithAnalytics records merged pull request statistics in store.
func WithAnalytics(store analytics.Store) Option {
	return func(s *Server) { s.analytics = store }
}

// WithSecrets resolves GitLab webhook tokens through p.
func WithSecrets(p secrets.Provider) Option {
	return func(s *Server) { s.secrets = p }
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithBuildNumber is logged with every delivery.
func WithBuildNumber(n string) Option {
	return func(s *Server) { s.buildNumber = n }
}

// New creates a Server running a's commands through q.
func New(a *agent.Agent, q *workqueue.Queue, opts ...Option) *Server {
	base := a.Settings()
	ttl := time.Duration(base.Int("github_app.push_trigger_pending_tasks_ttl", 300)) * time.Second
	s := &Server{
		agent:       a,
		queue:       q,
		gate:        workqueue.NewPushGate(ttl, base.Bool("github_app.push_trigger_pending_tasks_backlog")),
		newProvider: factory.New,
		analytics:   analytics.Nop{},
		buildNumber: "unknown",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routes of the kind server.
func (s *Server) Handler(kind string) (http.Handler, error) {
	r := gin.New()
	r.Use(gin.Recovery(), otelgin.Middleware("pragent-"+kind), s.requestLogger(kind))
	r.GET("/", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}

	switch kind {
	case GitHub:
		r.POST("/api/v1/github_webhooks", s.githubWebhook)
		r.POST("/api/v1/marketplace_webhooks", s.marketplaceWebhook)
	case GitLab:
		if s.agent.Settings().String("gitlab.url") == "" {
			return nil, fmt.Errorf("gitlab.url is not set")
		}
		r.POST("/webhook", s.gitlabWebhook)
	case Gitea:
		r.POST("/api/v1/gitea_webhooks", s.giteaWebhook)
	default:
		return nil, fmt.Errorf("unknown server kind %q", kind)
	}
	return r, nil
}

// requestLogger tags every delivery with a request id.
func (s *Server) requestLogger(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		log := clog.FromContext(c.Request.Context()).
			With("request_id", id).
			With("server_type", kind+"_app").
			With("build_number", s.buildNumber)
		c.Request = c.Request.WithContext(clog.WithLogger(c.Request.Context(), log))
		start := time.Now()
		c.Next()
		log.With("status", c.Writer.Status()).With("duration", time.Since(start)).Debug("Handled request")
	}
}

// enqueue runs fn in the background with the delivery's logger.
func (s *Server) enqueue(ctx context.Context, key string, fn workqueue.Task) {
	log := clog.FromContext(ctx)
	if !s.queue.Add(key, func(ctx context.Context) error {
		return fn(clog.WithLogger(ctx, log))
	}) {
		log.With("key", key).Warn("Queue is shut down, dropping webhook")
	}
}

// runCommands runs each command of the commandsKey setting as an automatic
// command. Failures are logged and do not stop later commands.
func runCommands(ctx context.Context, a *agent.Agent, prURL string, s *settings.Store, commandsKey string) {
	log := clog.FromContext(ctx)
	commands := s.Strings(commandsKey)
	if len(commands) == 0 {
		log.With("commands", commandsKey).Info("No automatic commands configured")
		return
	}
	for _, command := range commands {
		log.With("command", command).Info("Performing automatic command")
		if _, err := a.HandleRequest(ctx, prURL, command+" --config.is_auto_command=true", nil); err != nil {
			log.With("command", command).With("error", err).Error("Automatic command failed")
		}
	}
}

// runPushCommands runs the push commands for prURL once the push gate lets
// it through.
func (s *Server) runPushCommands(ctx context.Context, a *agent.Agent, prURL string, st *settings.Store, commandsKey string) error {
	log := clog.FromContext(ctx)
	release, ok, err := s.gate.Enter(ctx, prURL)
	if err != nil {
		return err
	}
	if !ok {
		log.Info("Skipping push trigger, another push already triggered the same processing")
		return nil
	}
	defer release()
	runCommands(ctx, a, prURL, st, commandsKey)
	return nil
}

// eyes returns a notify func adding an eyes reaction to commentID.
func (s *Server) eyes(ctx context.Context, st *settings.Store, prURL string, commentID int64) func() {
	return func() {
		log := clog.FromContext(ctx)
		p, err := s.newProvider(ctx, st, prURL)
		if err != nil {
			log.With("error", err).Warn("Failed to create provider for reaction")
			return
		}
		r, ok := p.(providers.Reactor)
		if !ok {
			return
		}
		if _, err := r.AddEyesReaction(ctx, commentID); err != nil {
			log.With("error", err).Warn("Failed to add eyes reaction")
		}
	}
}

// commandError keeps failed commands from being retried: a retry could
// publish the same output twice. Rejected requests are not errors.
func commandError(err error) error {
	switch {
	case err == nil,
		errors.Is(err, tools.ErrUnknownCommand),
		errors.Is(err, settings.ErrForbiddenArg),
		errors.Is(err, agent.ErrEmptyRequest):
		return nil
	}
	return workqueue.NonRetriableError(err, "command failed")
}

// isCommand reports whether a comment body is a slash command.
func isCommand(body string) bool {
	return strings.HasPrefix(strings.TrimLeft(body, " \t\r\n"), "/")
}
