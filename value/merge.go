package value

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch is matched (errors.Is) by every *MismatchError.
var ErrShapeMismatch = errors.New("value: shape mismatch")

// MismatchError reports an incoming value whose kind cannot be merged into
// the live container.
type MismatchError struct {
	Existing Kind
	Incoming Kind
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("value: cannot merge %s into live %s", e.Incoming, e.Existing)
}

func (e *MismatchError) Is(target error) bool { return target == ErrShapeMismatch }

// Merge reconciles incoming into existing and returns the value to expose.
//
//   - existing nil or scalar: incoming is adopted as-is.
//   - object into object: incoming fields overwrite existing ones, fields
//     only present on existing are kept; existing is returned.
//   - sequence into sequence: existing is resized to incoming's length and
//     shared indices are reconciled recursively; existing is returned.
//   - anything else into a live container: *MismatchError, nothing mutated.
//
// incoming is never mutated.
func Merge(existing, incoming Value) (Value, error) {
	incoming = orNull(incoming)
	switch ex := existing.(type) {
	case nil:
		return incoming, nil
	case *Object:
		if ex == nil {
			return incoming, nil
		}
		in, ok := incoming.(*Object)
		if !ok {
			return existing, &MismatchError{Existing: KindObject, Incoming: incoming.Kind()}
		}
		ex.mergeFrom(in)
		return ex, nil
	case *Sequence:
		if ex == nil {
			return incoming, nil
		}
		in, ok := incoming.(*Sequence)
		if !ok {
			return existing, &MismatchError{Existing: KindSequence, Incoming: incoming.Kind()}
		}
		ex.mergeFrom(in)
		return ex, nil
	default:
		return incoming, nil
	}
}

// reconcile is Merge for items inside a sequence: a kind change replaces the
// item instead of failing.
func reconcile(existing, incoming Value) Value {
	v, err := Merge(existing, incoming)
	if err != nil {
		return orNull(incoming)
	}
	return v
}

func (o *Object) mergeFrom(in *Object) {
	if in == o {
		return
	}
	keys, fields := in.snapshot()

	o.mu.Lock()
	defer o.mu.Unlock()
	for _, k := range keys {
		o.setLocked(k, fields[k])
	}
}

func (s *Sequence) mergeFrom(in *Sequence) {
	if in == s {
		return
	}
	items := in.Items()

	s.mu.Lock()
	defer s.mu.Unlock()

	shared := min(len(s.items), len(items))
	for i := 0; i < shared; i++ {
		s.items[i] = reconcile(s.items[i], items[i])
	}
	if len(items) < len(s.items) {
		clear(s.items[len(items):])
		s.items = s.items[:len(items)]
		return
	}
	for _, it := range items[shared:] {
		s.items = append(s.items, orNull(it))
	}
}
