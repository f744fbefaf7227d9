// Package worker runs fire-and-forget writes on a bounded set of goroutines.
//
// Call-count bumps, last-used stamps and session expiry extensions must never
// block the caller. A Pool accepts a task only if a slot is free; when it is
// saturated the task is dropped, logged and counted instead of queueing
// without bound. Task failures are logged and never reach the submitter.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-autoreply-backend/internal/observability"
)

// Task is a unit of background work. The context carries the per-task
// timeout and is detached from the submitter's request context.
type Task func(ctx context.Context) error

// Pool is a bounded fire-and-forget executor. The zero value is not usable;
// construct with New.
type Pool struct {
	g       *errgroup.Group
	base    context.Context
	timeout time.Duration
}

// New returns a pool running at most size tasks at once, each bounded by
// timeout (zero disables the per-task deadline).
func New(size int, timeout time.Duration) *Pool {
	if size < 1 {
		size = 1
	}
	g := new(errgroup.Group)
	g.SetLimit(size)
	return &Pool{g: g, base: context.Background(), timeout: timeout}
}

// Go schedules task under name. It returns false when the pool is full and
// the task was dropped.
func (p *Pool) Go(name string, task Task) bool {
	ok := p.g.TryGo(func() error {
		p.run(name, task)
		// errors are logged in run; the group never fails
		return nil
	})
	if !ok {
		observability.AsyncTasks.WithLabelValues("dropped").Inc()
		log.Warn().Str("task", name).Msg("async pool saturated; task dropped")
	}
	return ok
}

func (p *Pool) run(name string, task Task) {
	ctx := p.base
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			observability.AsyncTasks.WithLabelValues("failed").Inc()
			log.Error().Str("task", name).Interface("panic", r).Msg("async task panicked")
		}
	}()
	if err := task(ctx); err != nil {
		observability.AsyncTasks.WithLabelValues("failed").Inc()
		log.Warn().Err(err).Str("task", name).Msg("async task failed")
		return
	}
	observability.AsyncTasks.WithLabelValues("ok").Inc()
}

// Wait blocks until every accepted task has finished. Used at shutdown and
// in tests; it does not stop new submissions.
func (p *Pool) Wait() { _ = p.g.Wait() }
