// Package value models cached payloads as tagged variants (scalar, object,
// sequence) and reconciles new payloads into live ones in place.
//
// Identity is pointer identity: a *Object or *Sequence handed to a consumer
// stays the same pointer for as long as the cache keeps merging into it.
// Scalars carry no identity and are always read fresh.
//
// Objects and sequences guard their contents with their own lock, so
// accessor methods are safe to call while the cache merges into them.
package value

import (
	"sort"
	"sync"
)

type Kind uint8

const (
	KindScalar Kind = iota + 1
	KindObject
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindObject:
		return "object"
	case KindSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// Value is one of Scalar, *Object or *Sequence.
type Value interface {
	Kind() Kind
}

// Scalar wraps a leaf value (string, number, bool, nil, or anything opaque).
type Scalar struct{ V any }

func (Scalar) Kind() Kind { return KindScalar }

// Object is a mutable record of named fields. Field order is insertion order.
// Type is an optional domain tag set by a mapper (e.g. "Person"); merges keep
// the tag of the object that already lives in the cache.
type Object struct {
	mu     sync.RWMutex
	typ    string
	keys   []string
	fields map[string]Value
}

func NewObject(typ string) *Object {
	return &Object{typ: typ, fields: make(map[string]Value)}
}

func (o *Object) Kind() Kind { return KindObject }

func (o *Object) Type() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.typ
}

func (o *Object) Get(name string) (Value, bool) {
	o.mu.RLock()
	v, ok := o.fields[name]
	o.mu.RUnlock()
	return v, ok
}

// Scalar returns the underlying value of a scalar field.
func (o *Object) Scalar(name string) (any, bool) {
	v, ok := o.Get(name)
	if !ok {
		return nil, false
	}
	s, ok := v.(Scalar)
	if !ok {
		return nil, false
	}
	return s.V, true
}

func (o *Object) Set(name string, v Value) {
	if v == nil {
		v = Scalar{}
	}
	o.mu.Lock()
	o.setLocked(name, v)
	o.mu.Unlock()
}

// Assign lets an Object act as a binding target.
func (o *Object) Assign(prop string, v Value) { o.Set(prop, v) }

func (o *Object) Keys() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]string(nil), o.keys...)
}

func (o *Object) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.keys)
}

// Range calls fn for each field in order over a copy of the fields; fn may
// mutate o.
func (o *Object) Range(fn func(name string, v Value) bool) {
	keys, fields := o.snapshot()
	for _, k := range keys {
		if !fn(k, fields[k]) {
			return
		}
	}
}

func (o *Object) setLocked(name string, v Value) {
	if o.fields == nil {
		o.fields = make(map[string]Value)
	}
	if _, ok := o.fields[name]; !ok {
		o.keys = append(o.keys, name)
	}
	o.fields[name] = v
}

func (o *Object) snapshot() ([]string, map[string]Value) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	keys := append([]string(nil), o.keys...)
	fields := make(map[string]Value, len(o.fields))
	for k, v := range o.fields {
		fields[k] = v
	}
	return keys, fields
}

// Sequence is a mutable ordered list of values.
type Sequence struct {
	mu    sync.RWMutex
	items []Value
}

func NewSequence(items ...Value) *Sequence {
	s := &Sequence{items: make([]Value, 0, len(items))}
	for _, it := range items {
		s.items = append(s.items, orNull(it))
	}
	return s
}

func (s *Sequence) Kind() Kind { return KindSequence }

func (s *Sequence) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// At returns the item at i, or nil when i is out of range.
func (s *Sequence) At(i int) Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.items) {
		return nil
	}
	return s.items[i]
}

// Items returns a copy of the item slice; the items themselves are shared.
func (s *Sequence) Items() []Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Value(nil), s.items...)
}

func (s *Sequence) Append(items ...Value) {
	s.mu.Lock()
	for _, it := range items {
		s.items = append(s.items, orNull(it))
	}
	s.mu.Unlock()
}

// FromRaw converts decoded data into a Value: map[string]any becomes an
// *Object (fields in sorted key order), []any becomes a *Sequence, a Value is
// passed through and anything else becomes a Scalar.
func FromRaw(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Scalar{}
	case *Object:
		if x == nil {
			return Scalar{}
		}
		return x
	case *Sequence:
		if x == nil {
			return Scalar{}
		}
		return x
	case Value:
		return x
	case map[string]any:
		o := NewObject("")
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			o.setLocked(k, FromRaw(x[k]))
		}
		return o
	case []any:
		s := &Sequence{items: make([]Value, 0, len(x))}
		for _, it := range x {
			s.items = append(s.items, FromRaw(it))
		}
		return s
	default:
		return Scalar{V: raw}
	}
}

// ToRaw converts v back into plain data. Type tags are dropped.
func ToRaw(v Value) any {
	switch x := v.(type) {
	case *Object:
		if x == nil {
			return nil
		}
		keys, fields := x.snapshot()
		out := make(map[string]any, len(keys))
		for _, k := range keys {
			out[k] = ToRaw(fields[k])
		}
		return out
	case *Sequence:
		if x == nil {
			return nil
		}
		items := x.Items()
		out := make([]any, len(items))
		for i, it := range items {
			out[i] = ToRaw(it)
		}
		return out
	case Scalar:
		return x.V
	default:
		return nil
	}
}

// Clone returns a new container holding the same fields or items as v.
// Nested values are shared; merges replace fields rather than mutating them,
// so only the top-level container needs its own identity.
func Clone(v Value) Value {
	switch x := orNull(v).(type) {
	case *Object:
		keys, fields := x.snapshot()
		return &Object{typ: x.Type(), keys: keys, fields: fields}
	case *Sequence:
		return &Sequence{items: x.Items()}
	default:
		return x
	}
}

// Normalize maps nil and typed-nil containers to the null scalar.
func Normalize(v Value) Value { return orNull(v) }

func orNull(v Value) Value {
	switch x := v.(type) {
	case nil:
		return Scalar{}
	case *Object:
		if x == nil {
			return Scalar{}
		}
	case *Sequence:
		if x == nil {
			return Scalar{}
		}
	}
	return v
}
