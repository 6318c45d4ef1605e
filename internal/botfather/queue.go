package botfather

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

type job struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

// Queue runs jobs one at a time on a single worker. Submitters blocked in Do
// are served in arrival order.
type Queue struct {
	jobs      chan job
	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	pending   atomic.Int64
}

// NewQueue starts the worker goroutine.
func NewQueue() *Queue {
	q := &Queue{
		jobs: make(chan job),
		quit: make(chan struct{}),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

// Do waits for the worker and runs fn on it. If ctx ends before the job is
// picked up, Do returns ctx.Err(). Once picked up, fn runs to completion with
// a context that ignores the caller's cancellation.
func (q *Queue) Do(ctx context.Context, fn func(context.Context) error) error {
	j := job{
		ctx:  context.WithoutCancel(ctx),
		fn:   fn,
		done: make(chan error, 1),
	}

	q.pending.Add(1)
	select {
	case q.jobs <- j:
		q.pending.Add(-1)
	case <-ctx.Done():
		q.pending.Add(-1)
		return ctx.Err()
	case <-q.quit:
		q.pending.Add(-1)
		return ErrQueueClosed
	}
	return <-j.done
}

// Pending returns how many submitters are waiting for the worker.
func (q *Queue) Pending() int {
	return int(q.pending.Load())
}

// Close stops the worker after the running job, if any, finishes.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.quit) })
	q.wg.Wait()
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		select {
		case j := <-q.jobs:
			j.done <- q.exec(j)
		case <-q.quit:
			return
		}
	}
}

func (q *Queue) exec(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrTransport, r)
		}
	}()
	return j.fn(j.ctx)
}
