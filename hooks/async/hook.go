// Package asynchook moves optcache.Hooks events off the store lock onto a
// bounded worker queue. Events are dropped when the queue is full.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    ChildSkippedEvery: 10, // sample logs: ~every 10th skipped child
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	store, _ := optcache.New(optcache.Options{
//	    Hooks: hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"context"
	"sync/atomic"

	"github.com/unkn0wn-root/optcache"
	"github.com/unkn0wn-root/optcache/internal/queue"
	"github.com/unkn0wn-root/optcache/value"
)

type Hooks struct {
	inner   optcache.Hooks
	q       *queue.Queue
	dropped atomic.Uint64
}

var _ optcache.Hooks = (*Hooks)(nil)

// New starts workers goroutines (<= 0 => 1) behind a queue of qlen events
// (<= 0 => 1024). With one worker events are delivered in order.
func New(inner optcache.Hooks, workers, qlen int) *Hooks {
	return &Hooks{inner: inner, q: queue.New(workers, qlen)}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (h *Hooks) Close() {
	_ = h.q.Close(context.Background())
}

// Dropped reports how many events were discarded because the queue was full
// or closed.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	if !h.q.TryPush(f) {
		h.dropped.Add(1)
	}
}

func (h *Hooks) FetchFailed(k string, err error)  { h.try(func() { h.inner.FetchFailed(k, err) }) }
func (h *Hooks) MapperFailed(k string, err error) { h.try(func() { h.inner.MapperFailed(k, err) }) }
func (h *Hooks) ChildrenPopulated(k string, n int) {
	h.try(func() { h.inner.ChildrenPopulated(k, n) })
}
func (h *Hooks) ChildSkipped(k string, i int, r string) {
	h.try(func() { h.inner.ChildSkipped(k, i, r) })
}
func (h *Hooks) ShapeMismatch(k string, existing, incoming value.Kind, replaced bool) {
	h.try(func() { h.inner.ShapeMismatch(k, existing, incoming, replaced) })
}
func (h *Hooks) SnapshotFailed(k string, err error) {
	h.try(func() { h.inner.SnapshotFailed(k, err) })
}
func (h *Hooks) SnapshotDropped(k string) { h.try(func() { h.inner.SnapshotDropped(k) }) }
