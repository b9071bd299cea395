package value

import (
	"errors"
	"fmt"
)

// ErrCorruptTree is returned by Restore for trees Dump could not have produced.
var ErrCorruptTree = errors.New("value: corrupt tree")

// Tree node layout:
//
//	scalar:   {"v": <scalar>}
//	object:   {"t": <type>, "k": [<field names in order>], "o": {<name>: <node>}}
//	sequence: {"s": [<node>...]}
//
// Only map[string]any, []any and scalars are used so any codec that can
// round-trip generic data (JSON, CBOR, msgpack, structpb) can carry it.
const (
	nodeScalar   = "v"
	nodeType     = "t"
	nodeKeys     = "k"
	nodeFields   = "o"
	nodeSequence = "s"
)

// Dump returns a detached tree of v suitable for encoding.
func Dump(v Value) any {
	switch x := orNull(v).(type) {
	case *Object:
		keys, fields := x.snapshot()
		names := make([]any, len(keys))
		out := make(map[string]any, len(keys))
		for i, k := range keys {
			names[i] = k
			out[k] = Dump(fields[k])
		}
		node := map[string]any{nodeKeys: names, nodeFields: out}
		if t := x.Type(); t != "" {
			node[nodeType] = t
		}
		return node
	case *Sequence:
		items := x.Items()
		out := make([]any, len(items))
		for i, it := range items {
			out[i] = Dump(it)
		}
		return map[string]any{nodeSequence: out}
	case Scalar:
		return map[string]any{nodeScalar: x.V}
	default:
		return map[string]any{nodeScalar: nil}
	}
}

// Restore rebuilds a Value from a tree produced by Dump (after a codec
// round-trip). Numbers come back in whatever type the codec decodes to.
func Restore(tree any) (Value, error) {
	node, ok := asMap(tree)
	if !ok {
		return nil, fmt.Errorf("%w: node is %T", ErrCorruptTree, tree)
	}
	if v, ok := node[nodeScalar]; ok {
		return Scalar{V: v}, nil
	}
	if raw, ok := node[nodeSequence]; ok {
		items, ok := raw.([]any)
		if !ok && raw != nil {
			return nil, fmt.Errorf("%w: sequence items are %T", ErrCorruptTree, raw)
		}
		s := &Sequence{items: make([]Value, 0, len(items))}
		for i, it := range items {
			v, err := Restore(it)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			s.items = append(s.items, v)
		}
		return s, nil
	}
	if raw, ok := node[nodeFields]; ok {
		fields, ok := asMap(raw)
		if !ok && raw != nil {
			return nil, fmt.Errorf("%w: fields are %T", ErrCorruptTree, raw)
		}
		typ, _ := node[nodeType].(string)
		o := NewObject(typ)
		names, _ := node[nodeKeys].([]any)
		for _, n := range names {
			name, ok := n.(string)
			if !ok {
				return nil, fmt.Errorf("%w: field name is %T", ErrCorruptTree, n)
			}
			child, ok := fields[name]
			if !ok {
				return nil, fmt.Errorf("%w: field %q listed but missing", ErrCorruptTree, name)
			}
			v, err := Restore(child)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", name, err)
			}
			o.setLocked(name, v)
		}
		if len(o.keys) != len(fields) {
			return nil, fmt.Errorf("%w: %d fields but %d names", ErrCorruptTree, len(fields), len(o.keys))
		}
		return o, nil
	}
	return nil, fmt.Errorf("%w: unknown node", ErrCorruptTree)
}

// asMap accepts the map shapes generic decoders produce.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, x := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = x
		}
		return out, true
	default:
		return nil, false
	}
}
