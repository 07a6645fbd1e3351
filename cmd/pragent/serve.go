/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"chainguard.dev/pragent/agent"
	"chainguard.dev/pragent/agents/metrics"
	"chainguard.dev/pragent/analytics"
	"chainguard.dev/pragent/secrets"
	"chainguard.dev/pragent/servers"
	"chainguard.dev/pragent/telemetry"
	"chainguard.dev/pragent/workqueue"
	"chainguard.dev/pragent/workqueue/dispatcher"
	"github.com/chainguard-dev/clog"
	"github.com/chainguard-dev/terraform-infra-common/pkg/httpmetrics"
	"github.com/chainguard-dev/terraform-infra-common/pkg/profiler"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func serveCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:          "serve github|gitlab|gitea",
		Short:        "Serve webhooks from a git hosting service",
		Args:         cobra.ExactArgs(1),
		ValidArgs:    []string{servers.GitHub, servers.GitLab, servers.Gitea},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg, args[0])
		},
	}
}

func serve(ctx context.Context, cfg *config, kind string) error {
	log := clog.FromContext(ctx).With("server_type", kind)
	ctx = clog.WithLogger(ctx, log)
	gin.SetMode(gin.ReleaseMode)

	go httpmetrics.ScrapeDiskUsage(ctx)
	profiler.SetupProfiler()
	defer httpmetrics.SetupTracer(ctx)()

	m, err := telemetry.Setup("pragent-"+kind, version())
	if err != nil {
		return err
	}
	defer func() { _ = m.Shutdown(context.WithoutCancel(ctx)) }()

	s, err := loadSettings(ctx, cfg, os.Environ())
	if err != nil {
		return err
	}
	s.Set("config.git_provider", kind)
	store, err := analytics.OpenFromStore(ctx, s)
	if err != nil {
		return err
	}
	defer store.Close()
	sp, err := secrets.FromStore(ctx, s)
	if err != nil {
		return err
	}

	a := agent.New(s,
		agent.WithAnalytics(store),
		agent.WithRecorder(metrics.New(metrics.MeterName)),
	)
	q := workqueue.New()
	opts := []servers.Option{
		servers.WithAnalytics(store),
		servers.WithMetricsHandler(m.Handler()),
		servers.WithBuildNumber(cfg.BuildNumber),
	}
	if sp != nil {
		opts = append(opts, servers.WithSecrets(sp))
	}
	handler, err := servers.New(a, q, opts...).Handler(kind)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		// the queue is drained after the server stops accepting deliveries
		return dispatcher.Run(context.WithoutCancel(ctx), q, cfg.Workers)
	})
	eg.Go(func() error {
		log.With("addr", srv.Addr).Info("Serving webhooks")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(sctx)
		q.ShutDown()
		return err
	})
	return eg.Wait()
}
