package optcache

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/optcache/internal/queue"
	"github.com/unkn0wn-root/optcache/internal/util"
	"github.com/unkn0wn-root/optcache/value"
)

// Store is a keyed registry of canonical values. All resolutions are
// serialized by one store-wide mutex and applied in the order their
// sources settle. Entries are never removed.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	closed  bool

	log      Logger
	hooks    Hooks
	mismatch MismatchPolicy
	idField  string

	snap        Snapshotter
	snapQ       *queue.Queue
	snapTimeout time.Duration
	warm        singleflight.Group
	closeOnce   sync.Once
}

type entry struct {
	key      string
	val      value.Value // nil until first resolution
	rev      uint64
	bindings []*binding
}

type binding struct {
	target Target
	prop   string
	owner  *Handle
	last   value.Value
}

func newStore(opts Options) (*Store, error) {
	switch opts.Mismatch {
	case MismatchReject, MismatchReplace:
	default:
		return nil, fmt.Errorf("optcache: unknown mismatch policy %d", opts.Mismatch)
	}
	if opts.SnapshotQueue < 0 {
		return nil, fmt.Errorf("optcache: negative snapshot queue length %d", opts.SnapshotQueue)
	}

	s := &Store{
		entries:  make(map[string]*entry),
		mismatch: opts.Mismatch,
		snap:     opts.Snapshots,
	}
	s.log = coalesce[Logger](opts.Logger, NopLogger{})
	s.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	s.idField = coalesce(opts.IDField, defaultIDField)
	s.snapTimeout = coalesce(opts.SnapshotTimeout, defaultSnapshotTimeout)

	if s.snap != nil {
		// one worker keeps saves in resolution order
		s.snapQ = queue.New(1, coalesce(opts.SnapshotQueue, defaultSnapshotQueue))
	}
	return s, nil
}

// Cache registers src as a fetch for key and returns its Handle. A Handle
// bound before src settles is pre-filled from the entry when one exists.
func (s *Store) Cache(src Source, key string, opts FetchOptions) *Handle {
	h := newHandle(s, key, opts)
	switch {
	case src == nil:
		h.refuse(ErrNilSource)
		return h
	case key == "":
		h.refuse(ErrEmptyKey)
		return h
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		h.refuse(ErrClosed)
		return h
	}
	s.getOrCreate(key)
	s.mu.Unlock()

	src.OnSettle(h.settle)
	return h
}

// Resolve maps raw with opts.Mapper and merges the result into key's entry,
// seeding child entries when the payload is a list. It returns the canonical
// value. On error nothing is modified.
func (s *Store) Resolve(key string, raw any, opts FetchOptions) (value.Value, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	mapped, err := mapPayload(raw, opts.Mapper)
	if err != nil {
		s.hooks.MapperFailed(key, err)
		s.log.Debug("mapper failed", Fields{"key": key, "err": err})
		return nil, &ResolveError{Key: key, Stage: StageMap, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	var touched []*entry
	v, err := s.resolveLocked(key, mapped, opts, &touched)
	if err != nil {
		return nil, err
	}
	s.persistLocked(touched)
	return v, nil
}

// Peek returns key's canonical value without fetching.
func (s *Store) Peek(key string) (value.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || e.val == nil {
		return nil, false
	}
	return e.val, true
}

// Len reports the number of entries, including ones still waiting for
// their first resolution.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Keys returns all entry keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	s.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// Warm loads persisted snapshots for keys that have no canonical value yet.
// Keys resolved meanwhile by a live fetch are left alone. Without a
// Snapshotter Warm is a no-op.
func (s *Store) Warm(ctx context.Context, keys ...string) error {
	if s.snap == nil {
		return nil
	}
	var errs []error
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := s.Peek(k); ok {
			continue
		}
		_, err, _ := s.warm.Do(k, func() (any, error) {
			return nil, s.warmKey(ctx, k)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("warm %q: %w", k, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Store) warmKey(ctx context.Context, key string) error {
	v, ok, err := s.snap.Load(ctx, key)
	if err != nil || !ok {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	e := s.getOrCreate(key)
	if e.val != nil {
		return nil
	}
	e.val = v
	e.rev++
	s.notifyLocked(e)
	s.log.Debug("entry warmed from snapshot", Fields{"key": key})
	return nil
}

// Close stops accepting fetches and waits for pending snapshot saves.
// Canonical values stay readable through Peek and existing bindings.
func (s *Store) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		if s.snapQ != nil {
			err = s.snapQ.Close(ctx)
		}
	})
	return err
}

func (s *Store) getOrCreate(key string) *entry {
	e, ok := s.entries[key]
	if !ok {
		e = &entry{key: key}
		s.entries[key] = e
	}
	return e
}

func (s *Store) resolveLocked(key string, mapped value.Value, opts FetchOptions, touched *[]*entry) (value.Value, error) {
	e := s.getOrCreate(key)
	merged, err := value.Merge(e.val, mapped)
	if err != nil {
		var me *value.MismatchError
		if !errors.As(err, &me) {
			return nil, &ResolveError{Key: key, Stage: StageMerge, Err: err}
		}
		if s.mismatch != MismatchReplace {
			s.hooks.ShapeMismatch(key, me.Existing, me.Incoming, false)
			s.log.Debug("resolution rejected (shape mismatch)", Fields{"key": key, "existing": me.Existing.String(), "incoming": me.Incoming.String()})
			return nil, &ResolveError{Key: key, Stage: StageMerge, Err: err}
		}
		s.hooks.ShapeMismatch(key, me.Existing, me.Incoming, true)
		s.log.Warn("shape mismatch; replacing cached identity", Fields{"key": key, "existing": me.Existing.String(), "incoming": me.Incoming.String()})
		merged = mapped
	}

	e.val = merged
	e.rev++
	*touched = append(*touched, e)
	s.notifyLocked(e)

	if seq, ok := mapped.(*value.Sequence); ok && !opts.NoChildren {
		s.populateLocked(key, seq, opts, touched)
	}
	return merged, nil
}

// populateLocked seeds key/<id> entries from the items of a list payload.
// Each child receives its own copy of the item: the list merges its items by
// position, so an item shared with a child would be overwritten by whatever
// lands at that index next.
func (s *Store) populateLocked(key string, seq *value.Sequence, opts FetchOptions, touched *[]*entry) {
	idField := coalesce(opts.IDField, s.idField)
	childOpts := opts
	childOpts.NoChildren = false

	count := 0
	for i, item := range seq.Items() {
		obj, ok := item.(*value.Object)
		if !ok {
			s.skipChild(key, i, "not_object")
			continue
		}
		raw, ok := obj.Scalar(idField)
		if !ok {
			s.skipChild(key, i, "missing_id")
			continue
		}
		id, ok := util.FormatID(raw)
		if !ok {
			s.skipChild(key, i, "missing_id")
			continue
		}
		if _, err := s.resolveLocked(util.ChildKey(key, id), value.Clone(obj), childOpts, touched); err != nil {
			s.skipChild(key, i, "mismatch")
			continue
		}
		count++
	}
	if count > 0 {
		s.hooks.ChildrenPopulated(key, count)
	}
}

func (s *Store) skipChild(key string, index int, reason string) {
	s.hooks.ChildSkipped(key, index, reason)
	s.log.Debug("child pre-population skipped", Fields{"key": key, "index": index, "reason": reason})
}

func (s *Store) notifyLocked(e *entry) {
	for _, b := range e.bindings {
		b.deliver(e.val)
	}
}

// persistLocked hands detached trees of the touched entries to the snapshot
// worker. Enqueueing under the lock keeps saves in resolution order.
func (s *Store) persistLocked(touched []*entry) {
	if s.snapQ == nil {
		return
	}
	seen := make(map[*entry]struct{}, len(touched))
	for _, e := range touched {
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}

		key, tree := e.key, value.Dump(e.val)
		ok := s.snapQ.TryPush(func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.snapTimeout)
			defer cancel()
			if err := s.snap.Save(ctx, key, tree); err != nil {
				s.hooks.SnapshotFailed(key, err)
				s.log.Error("snapshot save failed", Fields{"key": key, "err": err})
			}
		})
		if !ok {
			s.hooks.SnapshotDropped(key)
			s.log.Warn("snapshot dropped (queue full)", Fields{"key": key})
		}
	}
}

// deliver assigns v unless the target already holds this container.
// Scalars carry no identity and are always re-assigned.
func (b *binding) deliver(v value.Value) {
	if b.last != nil && sameContainer(b.last, v) {
		return
	}
	b.target.Assign(b.prop, v)
	b.last = v
}

func sameContainer(a, b value.Value) bool {
	switch x := a.(type) {
	case *value.Object:
		y, ok := b.(*value.Object)
		return ok && x == y
	case *value.Sequence:
		y, ok := b.(*value.Sequence)
		return ok && x == y
	default:
		return false
	}
}

func identity(raw any) (value.Value, error) { return value.FromRaw(raw), nil }

// mapPayload applies m to raw, or to each element when raw is a list.
func mapPayload(raw any, m Mapper) (value.Value, error) {
	if m == nil {
		m = identity
	}
	items, ok := listItems(raw)
	if !ok {
		v, err := m(raw)
		if err != nil {
			return nil, err
		}
		return value.Normalize(v), nil
	}
	out := make([]value.Value, len(items))
	for i, it := range items {
		v, err := m(it)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out[i] = v
	}
	return value.NewSequence(out...), nil
}

// listItems unpacks the list shapes a payload can arrive in.
func listItems(raw any) ([]any, bool) {
	switch x := raw.(type) {
	case nil:
		return nil, false
	case []any:
		return x, true
	case *value.Sequence:
		if x == nil {
			return nil, false
		}
		vs := x.Items()
		out := make([]any, len(vs))
		for i, v := range vs {
			out[i] = v
		}
		return out, true
	case []byte:
		return nil, false
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
