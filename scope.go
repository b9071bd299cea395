package optcache

import (
	"sync"

	"github.com/unkn0wn-root/optcache/value"
)

// Scope is a concurrency-safe property bag usable as a binding Target.
type Scope struct {
	mu   sync.RWMutex
	vals map[string]value.Value
}

func NewScope() *Scope {
	return &Scope{vals: make(map[string]value.Value)}
}

func (s *Scope) Assign(prop string, v value.Value) {
	s.mu.Lock()
	if s.vals == nil {
		s.vals = make(map[string]value.Value)
	}
	s.vals[prop] = v
	s.mu.Unlock()
}

func (s *Scope) Get(prop string) (value.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vals[prop]
	return v, ok
}

// Object returns prop when it holds an object.
func (s *Scope) Object(prop string) (*value.Object, bool) {
	v, ok := s.Get(prop)
	if !ok {
		return nil, false
	}
	o, ok := v.(*value.Object)
	return o, ok
}

// Sequence returns prop when it holds a sequence.
func (s *Scope) Sequence(prop string) (*value.Sequence, bool) {
	v, ok := s.Get(prop)
	if !ok {
		return nil, false
	}
	seq, ok := v.(*value.Sequence)
	return seq, ok
}
