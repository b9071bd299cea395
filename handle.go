package optcache

import (
	"context"

	"github.com/unkn0wn-root/optcache/future"
	"github.com/unkn0wn-root/optcache/value"
)

// Handle is returned by Store.Cache. It is both a future of the canonical
// value and a binding point for the key's entry.
type Handle struct {
	store  *Store
	key    string
	opts   FetchOptions
	result *future.Future[value.Value]

	// set when Cache refused the call; such a handle never touches the store
	refused bool
}

func newHandle(s *Store, key string, opts FetchOptions) *Handle {
	return &Handle{store: s, key: key, opts: opts, result: future.New[value.Value]()}
}

func (h *Handle) Key() string { return h.key }

func (h *Handle) refuse(err error) {
	h.refused = true
	h.result.Reject(err)
}

// settle is the continuation registered on the Source.
func (h *Handle) settle(raw any, err error) {
	if err != nil {
		h.store.hooks.FetchFailed(h.key, err)
		h.store.log.Debug("fetch failed", Fields{"key": h.key, "err": err})
		h.result.Reject(&ResolveError{Key: h.key, Stage: StageFetch, Err: err})
		return
	}
	v, err := h.store.Resolve(h.key, raw, h.opts)
	if err != nil {
		h.result.Reject(err)
		return
	}
	h.result.Resolve(v)
}

// Bind keeps target's prop pointing at the key's canonical value. When the
// entry already has a value it is assigned before Bind returns; otherwise at
// the first resolution. Later merges mutate the assigned container in place,
// so target is only re-assigned when the canonical identity changes.
// Bind is a no-op on a handle Cache refused and on a closed store.
func (h *Handle) Bind(target Target, prop string) *Handle {
	if target == nil || h.refused {
		return h
	}
	s := h.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return h
	}

	e := s.getOrCreate(h.key)
	b := &binding{target: target, prop: prop, owner: h}
	e.bindings = append(e.bindings, b)
	if e.val != nil {
		b.deliver(e.val)
	}
	return h
}

// Release removes the bindings registered through h. Targets keep whatever
// they were last assigned.
func (h *Handle) Release() {
	s := h.store
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[h.key]
	if !ok {
		return
	}
	kept := e.bindings[:0]
	for _, b := range e.bindings {
		if b.owner != h {
			kept = append(kept, b)
		}
	}
	clear(e.bindings[len(kept):])
	e.bindings = kept
}

// Then registers callbacks for this handle's own resolution. Either may be
// nil. They run outside the store lock, exactly once.
func (h *Handle) Then(onSuccess func(value.Value), onFailure func(error)) *Handle {
	h.result.Then(onSuccess, onFailure)
	return h
}

func (h *Handle) Done() <-chan struct{} { return h.result.Done() }

// Wait blocks until this handle's fetch has been resolved or failed.
func (h *Handle) Wait(ctx context.Context) (value.Value, error) {
	return h.result.Wait(ctx)
}
