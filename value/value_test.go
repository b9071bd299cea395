package value

import (
	"errors"
	"reflect"
	"testing"
)

func TestFromRawAndToRaw(t *testing.T) {
	raw := map[string]any{
		"name": "Ruben",
		"id":   1,
		"tags": []any{"a", map[string]any{"k": true}},
	}
	v := FromRaw(raw)
	o, ok := v.(*Object)
	if !ok {
		t.Fatalf("expected *Object, got %T", v)
	}
	if got := o.Keys(); !reflect.DeepEqual(got, []string{"id", "name", "tags"}) {
		t.Fatalf("keys not sorted: %v", got)
	}
	tags, _ := o.Get("tags")
	seq, ok := tags.(*Sequence)
	if !ok || seq.Len() != 2 {
		t.Fatalf("tags not a 2-item sequence: %#v", tags)
	}
	if _, ok := seq.At(1).(*Object); !ok {
		t.Fatalf("nested map not converted")
	}
	if !reflect.DeepEqual(ToRaw(v), raw) {
		t.Fatalf("ToRaw mismatch: %#v", ToRaw(v))
	}
}

func TestFromRawPassThroughAndNil(t *testing.T) {
	o := NewObject("X")
	if FromRaw(o) != Value(o) {
		t.Fatalf("Value should pass through")
	}
	if s, ok := FromRaw(nil).(Scalar); !ok || s.V != nil {
		t.Fatalf("nil should be null scalar")
	}
	var typed *Object
	if _, ok := FromRaw(typed).(Scalar); !ok {
		t.Fatalf("typed nil should be null scalar")
	}
	if s, ok := FromRaw(3.5).(Scalar); !ok || s.V != 3.5 {
		t.Fatalf("scalar not wrapped")
	}
}

func TestSequenceAccessors(t *testing.T) {
	s := NewSequence(Scalar{V: 1}, nil)
	s.Append(Scalar{V: 3})
	if s.Len() != 3 {
		t.Fatalf("len=%d", s.Len())
	}
	if sc, ok := s.At(1).(Scalar); !ok || sc.V != nil {
		t.Fatalf("nil item should be stored as null scalar")
	}
	if s.At(-1) != nil || s.At(3) != nil {
		t.Fatalf("out of range should be nil")
	}
	items := s.Items()
	items[0] = Scalar{V: "changed"}
	if sc := s.At(0).(Scalar); sc.V != 1 {
		t.Fatalf("Items must return a copy")
	}
}

func TestObjectRangeAllowsMutation(t *testing.T) {
	o := NewObject("")
	o.Set("a", Scalar{V: 1})
	o.Set("b", Scalar{V: 2})
	var seen []string
	o.Range(func(name string, _ Value) bool {
		seen = append(seen, name)
		o.Set(name+"x", Scalar{})
		return true
	})
	if !reflect.DeepEqual(seen, []string{"a", "b"}) {
		t.Fatalf("seen=%v", seen)
	}
	if o.Len() != 4 {
		t.Fatalf("len=%d want 4", o.Len())
	}
}

func TestDumpRestore(t *testing.T) {
	p := NewObject("Person")
	p.Set("ssn", Scalar{V: 1})
	p.Set("name", Scalar{V: "Ruben"})
	p.Set("pets", NewSequence(Scalar{V: "cat"}, nil))
	in := NewSequence(p, Scalar{V: 2.5})

	got, err := Restore(Dump(in))
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	seq, ok := got.(*Sequence)
	if !ok || seq.Len() != 2 {
		t.Fatalf("restored %#v", got)
	}
	rp, ok := seq.At(0).(*Object)
	if !ok {
		t.Fatalf("item 0 is %T", seq.At(0))
	}
	if rp == p {
		t.Fatalf("restore must build new containers")
	}
	if rp.Type() != "Person" {
		t.Fatalf("type=%q", rp.Type())
	}
	if !reflect.DeepEqual(rp.Keys(), []string{"ssn", "name", "pets"}) {
		t.Fatalf("field order lost: %v", rp.Keys())
	}
	if !reflect.DeepEqual(ToRaw(got), ToRaw(in)) {
		t.Fatalf("content mismatch: %#v vs %#v", ToRaw(got), ToRaw(in))
	}
}

func TestRestoreAcceptsAnyKeyedMaps(t *testing.T) {
	tree := map[any]any{
		"k": []any{"id"},
		"o": map[any]any{"id": map[any]any{"v": uint64(7)}},
	}
	v, err := Restore(tree)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if id, _ := v.(*Object).Scalar("id"); id != uint64(7) {
		t.Fatalf("id=%v", id)
	}
}

func TestRestoreRejectsCorrupt(t *testing.T) {
	cases := map[string]any{
		"not_a_map":      "x",
		"unknown_node":   map[string]any{"zzz": 1},
		"bad_items":      map[string]any{"s": "nope"},
		"missing_field":  map[string]any{"k": []any{"a"}, "o": map[string]any{}},
		"unlisted_field": map[string]any{"k": []any{}, "o": map[string]any{"a": map[string]any{"v": 1}}},
		"bad_name":       map[string]any{"k": []any{1}, "o": map[string]any{}},
	}
	for name, tree := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Restore(tree); !errors.Is(err, ErrCorruptTree) {
				t.Fatalf("expected ErrCorruptTree, got %v", err)
			}
		})
	}
}

func TestCloneDetachesTopLevelContainer(t *testing.T) {
	nested := NewObject("Address")
	o := NewObject("Person")
	o.Set("name", Scalar{V: "A"})
	o.Set("addr", nested)

	c, ok := Clone(o).(*Object)
	if !ok || c == o {
		t.Fatalf("Clone returned %#v", c)
	}
	if c.Type() != "Person" || !reflect.DeepEqual(c.Keys(), []string{"name", "addr"}) {
		t.Fatalf("clone type=%q keys=%v", c.Type(), c.Keys())
	}
	if got, _ := c.Get("addr"); got != Value(nested) {
		t.Fatalf("nested values should be shared")
	}

	// merging into the original leaves the clone alone
	in := NewObject("")
	in.Set("name", Scalar{V: "B"})
	if _, err := Merge(o, in); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if name, _ := c.Scalar("name"); name != "A" {
		t.Fatalf("clone changed with original: name=%v", name)
	}

	seq := NewSequence(Scalar{V: 1}, o)
	sc := Clone(seq).(*Sequence)
	seq.Append(Scalar{V: 3})
	if sc == seq || sc.Len() != 2 || sc.At(1) != Value(o) {
		t.Fatalf("sequence clone len=%d", sc.Len())
	}

	if got := Clone(nil); got != (Scalar{}) {
		t.Fatalf("Clone(nil)=%#v", got)
	}
	if got := Clone(Scalar{V: 7}); got != (Scalar{V: 7}) {
		t.Fatalf("Clone(scalar)=%#v", got)
	}
}
