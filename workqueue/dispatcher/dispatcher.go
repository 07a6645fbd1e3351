/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package dispatcher runs the tasks of a workqueue.Queue with bounded
// concurrency.
package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"chainguard.dev/pragent/workqueue"
	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"
)

// Run hands queued tasks to at most concurrency workers until ctx is done or
// the queue is shut down and drained. Tasks already running when ctx is
// cancelled keep a context without the cancellation and Run waits for them.
func Run(ctx context.Context, q *workqueue.Queue, concurrency int) error {
	var eg errgroup.Group
	eg.SetLimit(max(concurrency, 1))
	taskCtx := context.WithoutCancel(ctx)

	for {
		item, err := q.Get(ctx)
		if err != nil {
			_ = eg.Wait()
			if errors.Is(err, workqueue.ErrShutDown) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		eg.Go(func() error {
			handle(taskCtx, q, item)
			return nil
		})
	}
}

func handle(ctx context.Context, q *workqueue.Queue, item *workqueue.Item) {
	log := clog.FromContext(ctx).With("key", item.Key).With("attempt", item.Attempts)
	err := run(clog.WithLogger(ctx, log), item)
	switch {
	case err == nil:
		log.Debug("Task finished")
	case workqueue.GetNonRetriableDetails(err) != nil:
		log.With("error", err).With("reason", workqueue.GetNonRetriableDetails(err).Message).Warn("Task failed with non-retriable error")
	default:
		log.With("error", err).Error("Task failed")
	}
	if q.Done(item, err) {
		log.Info("Task queued for retry")
	}
}

func run(ctx context.Context, item *workqueue.Item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", item.Key, r)
		}
	}()
	return item.Task(ctx)
}
