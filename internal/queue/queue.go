// Package queue runs submitted tasks on a fixed set of workers.
// With a single worker, tasks run in submission order.
package queue

import (
	"context"
	"sync"
)

type Queue struct {
	mu     sync.RWMutex
	closed bool
	q      chan func()
	wg     sync.WaitGroup
	once   sync.Once
}

func New(workers, qlen int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	q := &Queue{q: make(chan func(), qlen)}
	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer q.wg.Done()
			for f := range q.q {
				f()
			}
		}()
	}
	return q
}

// TryPush enqueues f without blocking. It reports false when the queue is
// full or closed; f is then dropped.
func (q *Queue) TryPush(f func()) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	select {
	case q.q <- f:
		return true
	default:
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish or ctx to end.
func (q *Queue) Close(ctx context.Context) error {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.q)
		q.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
