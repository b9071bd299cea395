// Package persist writes canonical values to a byte Provider so a Store can
// warm-start them after a restart or on another replica.
//
//	p, _ := persist.New(persist.Options{Namespace: "app", Provider: bigcacheProvider})
//	store, _ := optcache.New(optcache.Options{Snapshots: p})
//	_ = store.Warm(ctx, "user/1", "users")
//
// Every frame carries the generation of its key at write time (see genstore).
// Invalidate bumps the generation; frames from older generations, frames that
// fail validation and payloads the codec cannot decode are deleted on read and
// reported as misses.
package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unkn0wn-root/optcache"
	"github.com/unkn0wn-root/optcache/codec"
	"github.com/unkn0wn-root/optcache/genstore"
	"github.com/unkn0wn-root/optcache/internal/wire"
	"github.com/unkn0wn-root/optcache/provider"
	"github.com/unkn0wn-root/optcache/value"
)

const (
	defaultGenRetention = 30 * 24 * time.Hour
	defaultSweep        = time.Hour
)

// CostFunc returns the admission cost of a frame (ristretto uses it).
type CostFunc func(key string, frame []byte) int64

type Options struct {
	Namespace string            // required; isolates keys in shared providers
	Provider  provider.Provider // required
	Codec     codec.Codec[any]  // nil => codec.JSON[any]

	// GenStore nil => genstore.Local with periodic cleanup.
	GenStore        genstore.GenStore
	CleanupInterval time.Duration // Local only; 0 => 1h
	GenRetention    time.Duration // Local only; 0 => 30d

	// TTL for frames; 0 => no expiry.
	TTL         time.Duration
	ComputeCost CostFunc // nil => len(frame)
	Logger      optcache.Logger
}

// Persister implements optcache.Snapshotter.
type Persister struct {
	ns    string
	prov  provider.Provider
	codec codec.Codec[any]
	gen   genstore.GenStore
	ttl   time.Duration
	cost  CostFunc
	log   optcache.Logger
}

var _ optcache.Snapshotter = (*Persister)(nil)

func New(opts Options) (*Persister, error) {
	if opts.Provider == nil {
		return nil, errors.New("persist: provider is required")
	}
	if opts.Namespace == "" {
		return nil, errors.New("persist: namespace is required")
	}
	if opts.TTL < 0 {
		return nil, fmt.Errorf("persist: negative ttl %s", opts.TTL)
	}

	p := &Persister{
		ns:    opts.Namespace,
		prov:  opts.Provider,
		codec: opts.Codec,
		gen:   opts.GenStore,
		ttl:   opts.TTL,
		cost:  opts.ComputeCost,
		log:   opts.Logger,
	}
	if p.codec == nil {
		p.codec = codec.JSON[any]{}
	}
	if p.cost == nil {
		p.cost = func(_ string, frame []byte) int64 { return int64(len(frame)) }
	}
	if p.log == nil {
		p.log = optcache.NopLogger{}
	}
	if p.gen == nil {
		sweep, retention := opts.CleanupInterval, opts.GenRetention
		if sweep <= 0 {
			sweep = defaultSweep
		}
		if retention <= 0 {
			retention = defaultGenRetention
		}
		p.gen = genstore.NewLocal(sweep, retention)
	}
	return p, nil
}

// Save writes tree (a value.Dump result) under key, stamped with the key's
// current generation.
func (p *Persister) Save(ctx context.Context, key string, tree any) error {
	if key == "" {
		return optcache.ErrEmptyKey
	}
	k := p.storageKey(key)
	gen, err := p.gen.Current(ctx, k)
	if err != nil {
		return fmt.Errorf("persist: gen for %q: %w", key, err)
	}
	payload, err := p.codec.Encode(tree)
	if err != nil {
		return fmt.Errorf("persist: encode %q: %w", key, err)
	}
	frame, err := wire.EncodeSnapshot(k, gen, payload)
	if err != nil {
		return err
	}
	ok, err := p.prov.Set(ctx, k, frame, p.cost(k, frame), p.ttl)
	if err != nil {
		return err
	}
	if !ok {
		p.log.Debug("snapshot rejected by provider (pressure)", optcache.Fields{"key": key})
		return ErrRejected
	}
	return nil
}

// Load returns the snapshot stored for key. Misses, stale and corrupt frames
// all report (nil, false, nil); only backend failures are errors.
func (p *Persister) Load(ctx context.Context, key string) (value.Value, bool, error) {
	if key == "" {
		return nil, false, optcache.ErrEmptyKey
	}
	k := p.storageKey(key)
	raw, ok, err := p.prov.Get(ctx, k)
	if err != nil || !ok {
		return nil, false, err
	}
	gen, payload, err := wire.DecodeSnapshot(k, raw)
	if err != nil {
		p.heal(ctx, key, k, "corrupt frame", err)
		return nil, false, nil
	}
	cur, err := p.gen.Current(ctx, k)
	if err != nil {
		return nil, false, fmt.Errorf("persist: gen for %q: %w", key, err)
	}
	if gen != cur {
		p.heal(ctx, key, k, "stale generation", fmt.Errorf("frame gen %d, current %d", gen, cur))
		return nil, false, nil
	}
	tree, err := p.codec.Decode(payload)
	if err != nil {
		p.heal(ctx, key, k, "undecodable payload", err)
		return nil, false, nil
	}
	v, err := value.Restore(tree)
	if err != nil {
		p.heal(ctx, key, k, "corrupt tree", err)
		return nil, false, nil
	}
	return v, true, nil
}

// Invalidate bumps key's generation and deletes its frame.
func (p *Persister) Invalidate(ctx context.Context, key string) error {
	if key == "" {
		return optcache.ErrEmptyKey
	}
	k := p.storageKey(key)
	newGen, bumpErr := p.gen.Bump(ctx, k)
	delErr := p.prov.Del(ctx, k)
	if bumpErr != nil || delErr != nil {
		if bumpErr != nil {
			p.log.Error("gen bump error", optcache.Fields{"key": key, "err": bumpErr})
		}
		return &InvalidateError{Key: key, BumpErr: bumpErr, DelErr: delErr}
	}
	p.log.Debug("invalidated snapshot (bumped gen + deleted frame)", optcache.Fields{"key": key, "newGen": newGen})
	return nil
}

// Close closes the generation store and the provider.
func (p *Persister) Close(ctx context.Context) error {
	return errors.Join(p.gen.Close(ctx), p.prov.Close(ctx))
}

func (p *Persister) heal(ctx context.Context, key, storageKey, reason string, cause error) {
	p.log.Debug("dropping snapshot: "+reason, optcache.Fields{"key": key, "err": cause})
	if err := p.prov.Del(ctx, storageKey); err != nil {
		p.log.Warn("snapshot self-heal delete failed", optcache.Fields{"key": key, "err": err})
	}
}

func (p *Persister) storageKey(key string) string {
	// isolate by namespace
	return "snap:" + p.ns + ":" + key
}
