package optcache

import "github.com/unkn0wn-root/optcache/value"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; most are called with the
// store lock held.
type Hooks interface {
	// The source of a Cache call failed; the entry was left untouched.
	FetchFailed(key string, err error)

	// The mapper returned an error; the entry was left untouched.
	MapperFailed(key string, err error)

	// A payload's kind did not match the live container.
	// replaced reports whether MismatchReplace swapped the identity.
	ShapeMismatch(key string, existing, incoming value.Kind, replaced bool)

	// count child entries were resolved from the list at key.
	ChildrenPopulated(key string, count int)

	// An item of the list at key could not seed a child entry.
	// reason ∈ {"not_object", "missing_id", "mismatch"}
	ChildSkipped(key string, index int, reason string)

	// Persisting a snapshot failed, or it was dropped because the queue was full.
	SnapshotFailed(key string, err error)
	SnapshotDropped(key string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) FetchFailed(string, error)                         {}
func (NopHooks) MapperFailed(string, error)                        {}
func (NopHooks) ShapeMismatch(string, value.Kind, value.Kind, bool) {}
func (NopHooks) ChildrenPopulated(string, int)                     {}
func (NopHooks) ChildSkipped(string, int, string)                  {}
func (NopHooks) SnapshotFailed(string, error)                      {}
func (NopHooks) SnapshotDropped(string)                            {}
