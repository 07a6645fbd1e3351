/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package workqueue holds webhook work accepted by the servers until a
// dispatcher runs it in the background.
package workqueue

import (
	"context"
	"errors"
	"sync"
)

// ErrShutDown is returned by Get once the queue is shut down and drained.
var ErrShutDown = errors.New("workqueue is shut down")

// Task is one unit of queued work.
type Task func(ctx context.Context) error

// Item is a task handed out by Get. Attempts counts runs, starting at 1.
type Item struct {
	Key      string
	Task     Task
	Attempts int
}

// Queue is a FIFO of tasks. Failed tasks are queued again until they have
// run MaxRetry+1 times, unless they fail with a NonRetriableError.
type Queue struct {
	maxRetry int

	mu      sync.Mutex
	items   []*Item
	active  int
	closed  bool
	changed chan struct{}
}

// Option configures a Queue.
type Option func(*Queue)

// WithMaxRetry sets how often a failed task is retried.
func WithMaxRetry(n int) Option {
	return func(q *Queue) { q.maxRetry = max(n, 0) }
}

// New returns an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{changed: make(chan struct{})}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Add queues task under key. It reports false when the queue is shut down.
func (q *Queue) Add(key string, task Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, &Item{Key: key, Task: task})
	q.notifyLocked()
	return true
}

// Get blocks until an item is available. It returns ctx.Err() when ctx is
// done and ErrShutDown once the queue is shut down and empty.
func (q *Queue) Get(ctx context.Context) (*Item, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			item.Attempts++
			q.active++
			q.mu.Unlock()
			return item, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrShutDown
		}
		changed := q.changed
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-changed:
		}
	}
}

// Done finishes an item returned by Get. It reports whether the item was
// queued again.
func (q *Queue) Done(item *Item, err error) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.active--
	defer q.notifyLocked()
	if err == nil || GetNonRetriableDetails(err) != nil || item.Attempts > q.maxRetry || q.closed {
		return false
	}
	q.items = append(q.items, item)
	return true
}

// Len returns the number of waiting items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Active returns the number of items handed out and not yet done.
func (q *Queue) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// ShutDown stops accepting new work. Waiting items are still handed out.
func (q *Queue) ShutDown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		q.notifyLocked()
	}
}

func (q *Queue) notifyLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
}

// NonRetriableDetails explains why a task must not be retried.
type NonRetriableDetails struct {
	Message string
}

type nonRetriableError struct {
	err     error
	details NonRetriableDetails
}

func (e *nonRetriableError) Error() string { return e.err.Error() }
func (e *nonRetriableError) Unwrap() error { return e.err }

// NonRetriableError marks err as permanent; reason is logged with it.
func NonRetriableError(err error, reason string) error {
	if err == nil {
		return nil
	}
	return &nonRetriableError{err: err, details: NonRetriableDetails{Message: reason}}
}

// GetNonRetriableDetails returns the details of a NonRetriableError in
// err's chain, or nil.
func GetNonRetriableDetails(err error) *NonRetriableDetails {
	var nr *nonRetriableError
	if errors.As(err, &nr) {
		return &nr.details
	}
	return nil
}
