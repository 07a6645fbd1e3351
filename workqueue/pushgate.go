/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package workqueue

import (
	"context"
	"sync"
	"time"
)

// PushGate serializes the commands triggered by pushes to one pull request.
// At most one run is active per pull request. With a backlog, one more push
// waits for it and later pushes are dropped; they are covered by the waiting
// run. Entries older than the TTL are treated as abandoned.
type PushGate struct {
	ttl     time.Duration
	backlog bool
	now     func() time.Time

	mu  sync.Mutex
	prs map[string]*gateState
}

type gateState struct {
	since   time.Time
	pending bool
	evicted bool
	// done is closed when the active run hands over or finishes.
	done chan struct{}
}

// NewPushGate returns a gate. A zero ttl never evicts.
func NewPushGate(ttl time.Duration, backlog bool) *PushGate {
	return &PushGate{ttl: ttl, backlog: backlog, now: time.Now, prs: map[string]*gateState{}}
}

// Enter waits for its turn to run for key. It returns ok=false when the push
// is dropped. Callers that get ok=true must call release when done.
func (g *PushGate) Enter(ctx context.Context, key string) (release func(), ok bool, err error) {
	g.mu.Lock()
	g.evictLocked()
	st, exists := g.prs[key]
	if !exists {
		st = &gateState{since: g.now(), done: make(chan struct{})}
		g.prs[key] = st
		g.mu.Unlock()
		return g.releaser(key, st), true, nil
	}
	if !g.backlog || st.pending {
		g.mu.Unlock()
		return nil, false, nil
	}
	st.pending = true
	done := st.done
	g.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		g.mu.Lock()
		select {
		case <-done:
			// handed over while cancelling
			evicted := st.evicted
			g.mu.Unlock()
			if !evicted {
				g.releaser(key, st)()
			}
		default:
			st.pending = false
			g.mu.Unlock()
		}
		return nil, false, ctx.Err()
	}
	g.mu.Lock()
	evicted := st.evicted
	g.mu.Unlock()
	if evicted {
		return nil, false, nil
	}
	return g.releaser(key, st), true, nil
}

// Len returns the number of pull requests with an active run.
func (g *PushGate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prs)
}

// Pending reports whether a push for key waits for the active run.
func (g *PushGate) Pending(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.prs[key]
	return ok && st.pending
}

func (g *PushGate) releaser(key string, st *gateState) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			if st.evicted {
				return
			}
			old := st.done
			if st.pending {
				st.pending = false
				st.since = g.now()
				st.done = make(chan struct{})
			} else {
				delete(g.prs, key)
			}
			close(old)
		})
	}
}

func (g *PushGate) evictLocked() {
	if g.ttl <= 0 {
		return
	}
	now := g.now()
	for key, st := range g.prs {
		if now.Sub(st.since) > g.ttl {
			st.evicted = true
			close(st.done)
			delete(g.prs, key)
		}
	}
}
