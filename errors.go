package optcache

import (
	"errors"
	"fmt"
)

var (
	ErrNilSource = errors.New("optcache: nil source")
	ErrEmptyKey  = errors.New("optcache: empty key")
	ErrClosed    = errors.New("optcache: store closed")
)

// Stage is the step of a resolution that failed.
type Stage string

const (
	StageFetch Stage = "fetch"
	StageMap   Stage = "map"
	StageMerge Stage = "merge"
)

// ResolveError is returned (and delivered to handle failure callbacks) when a
// resolution fails. The cache entry is left unmodified.
type ResolveError struct {
	Key   string
	Stage Stage
	Err   error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("optcache: %s %q: %v", e.Stage, e.Key, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }
