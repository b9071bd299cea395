// Package sloghooks reports optcache.Hooks events through log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/optcache"
	"github.com/unkn0wn-root/optcache/value"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	ChildSkippedEvery    uint64
	SnapshotDroppedEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	childSkippedCtr atomic.Uint64
	droppedCtr      atomic.Uint64
}

var _ optcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) FetchFailed(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("optcache.fetch_failed",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) MapperFailed(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("optcache.mapper_failed",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) ShapeMismatch(key string, existing, incoming value.Kind, replaced bool) {
	if h.l == nil {
		return
	}
	h.l.Warn("optcache.shape_mismatch",
		"key", h.redact(key),
		"existing", existing.String(),
		"incoming", incoming.String(),
		"replaced", replaced)
}

func (h *Hooks) ChildrenPopulated(key string, count int) {
	if h.l == nil {
		return
	}
	h.l.Debug("optcache.children_populated",
		"key", h.redact(key),
		"count", count)
}

func (h *Hooks) ChildSkipped(key string, index int, reason string) {
	if h.l == nil || !sample(h.opts.ChildSkippedEvery, &h.childSkippedCtr) {
		return
	}
	h.l.Debug("optcache.child_skipped",
		"key", h.redact(key),
		"index", index,
		"reason", reason)
}

func (h *Hooks) SnapshotFailed(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("optcache.snapshot_failed",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) SnapshotDropped(key string) {
	if h.l == nil || !sample(h.opts.SnapshotDroppedEvery, &h.droppedCtr) {
		return
	}
	h.l.Warn("optcache.snapshot_dropped",
		"key", h.redact(key))
}
