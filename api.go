package optcache

import (
	"context"
	"time"

	"github.com/unkn0wn-root/optcache/future"
	"github.com/unkn0wn-root/optcache/value"
)

// Source is anything that eventually settles with a raw payload or an error.
// *future.Future[any] satisfies it.
type Source interface {
	OnSettle(fn func(raw any, err error))
}

// Fetch runs fn on its own goroutine and returns it as a Source.
func Fetch(ctx context.Context, fn func(context.Context) (any, error)) Source {
	return future.Go(ctx, fn)
}

// Mapper turns one raw payload (or one raw element of a list payload) into a
// domain value. nil means value.FromRaw.
type Mapper func(raw any) (value.Value, error)

// Target is a binding destination, e.g. a view model. Assign is called with
// the store lock held and must not call back into the Store.
type Target interface {
	Assign(prop string, v value.Value)
}

// AssignFunc adapts a function to a Target.
type AssignFunc func(prop string, v value.Value)

func (f AssignFunc) Assign(prop string, v value.Value) { f(prop, v) }

// FetchOptions are supplied per Cache/Resolve call. The zero value maps with
// value.FromRaw, pre-populates children and reads identifiers from "id".
type FetchOptions struct {
	Mapper     Mapper
	NoChildren bool   // skip child pre-population for list payloads
	IDField    string // "" => Options.IDField
}

// MismatchPolicy decides what happens when a payload's kind differs from
// the live container it would merge into (object vs sequence).
type MismatchPolicy uint8

const (
	// MismatchReject fails the resolution and leaves the entry untouched.
	MismatchReject MismatchPolicy = iota
	// MismatchReplace installs the incoming value as a new identity,
	// re-assigns bindings and logs a warning.
	MismatchReplace
)

func (p MismatchPolicy) String() string {
	switch p {
	case MismatchReject:
		return "reject"
	case MismatchReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// Snapshotter persists canonical values outside the process. Save receives
// a detached value.Dump tree. persist.Persister implements it.
type Snapshotter interface {
	Save(ctx context.Context, key string, tree any) error
	Load(ctx context.Context, key string) (value.Value, bool, error)
}

// Options configure a Store. Every field is optional.
type Options struct {
	Logger   Logger         // nil => NopLogger
	Hooks    Hooks          // nil => NopHooks
	Mismatch MismatchPolicy // default MismatchReject
	IDField  string         // default identifier field; "" => "id"

	Snapshots       Snapshotter   // nil => no persistence
	SnapshotQueue   int           // pending saves before dropping; 0 => 1024
	SnapshotTimeout time.Duration // per Save; 0 => 5s
}

func New(opts Options) (*Store, error) {
	return newStore(opts)
}
