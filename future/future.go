// Package future provides a value that settles exactly once, with success or
// failure, and runs registered continuations when it does.
//
// Continuations registered before settling run on the goroutine that settles
// the future, in registration order. Continuations registered afterwards run
// immediately on the registering goroutine.
package future

import (
	"context"
	"errors"
	"sync"
)

// ErrRejected is used when Reject is called with a nil error.
var ErrRejected = errors.New("future: rejected")

type Future[T any] struct {
	mu      sync.Mutex
	done    chan struct{}
	settled bool
	val     T
	err     error
	cbs     []func(T, error)
}

func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func Resolved[T any](v T) *Future[T] {
	f := New[T]()
	f.Resolve(v)
	return f
}

func Failed[T any](err error) *Future[T] {
	f := New[T]()
	f.Reject(err)
	return f
}

// Go runs fn on a new goroutine and settles the returned future with its result.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := New[T]()
	go func() {
		v, err := fn(ctx)
		if err != nil {
			f.Reject(err)
			return
		}
		f.Resolve(v)
	}()
	return f
}

// Resolve settles f with v. It reports false if f was already settled.
func (f *Future[T]) Resolve(v T) bool {
	return f.settle(v, nil)
}

// Reject settles f with err. It reports false if f was already settled.
func (f *Future[T]) Reject(err error) bool {
	if err == nil {
		err = ErrRejected
	}
	var zero T
	return f.settle(zero, err)
}

func (f *Future[T]) settle(v T, err error) bool {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return false
	}
	f.settled = true
	f.val, f.err = v, err
	cbs := f.cbs
	f.cbs = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range cbs {
		cb(v, err)
	}
	return true
}

// OnSettle registers fn to receive the outcome exactly once.
func (f *Future[T]) OnSettle(fn func(T, error)) {
	f.mu.Lock()
	if !f.settled {
		f.cbs = append(f.cbs, fn)
		f.mu.Unlock()
		return
	}
	v, err := f.val, f.err
	f.mu.Unlock()
	fn(v, err)
}

// Then registers success and failure continuations; either may be nil.
func (f *Future[T]) Then(onSuccess func(T), onFailure func(error)) *Future[T] {
	f.OnSettle(func(v T, err error) {
		if err != nil {
			if onFailure != nil {
				onFailure(err)
			}
			return
		}
		if onSuccess != nil {
			onSuccess(v)
		}
	})
	return f
}

func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Poll returns the outcome without blocking; ok is false while pending.
func (f *Future[T]) Poll() (v T, ok bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.settled {
		return v, false, nil
	}
	return f.val, true, f.err
}

// Wait blocks until f settles or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
