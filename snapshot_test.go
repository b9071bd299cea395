package optcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/unkn0wn-root/optcache/value"
)

type memSnapshots struct {
	mu    sync.Mutex
	trees map[string]any
	saves []string
	loads atomic.Int32
	err   error
	gate  chan struct{} // when set, Save blocks until closed
}

var _ Snapshotter = (*memSnapshots)(nil)

func newMemSnapshots() *memSnapshots { return &memSnapshots{trees: make(map[string]any)} }

func (m *memSnapshots) Save(_ context.Context, key string, tree any) error {
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.trees[key] = tree
	m.saves = append(m.saves, key)
	return nil
}

func (m *memSnapshots) Load(_ context.Context, key string) (value.Value, bool, error) {
	m.loads.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	tree, ok := m.trees[key]
	if !ok {
		return nil, false, nil
	}
	v, err := value.Restore(tree)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func TestSnapshotsSavedAfterResolve(t *testing.T) {
	snaps := newMemSnapshots()
	s := newTestStore(t, func(o *Options) { o.Snapshots = snaps })

	if _, err := s.Resolve("users", people(1, "A", 1, "dup", 2, "B"), FetchOptions{}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	want := []string{"users", "users/1", "users/2"}
	if len(snaps.saves) != len(want) {
		t.Fatalf("saves=%v want %v", snaps.saves, want)
	}
	for i := range want {
		if snaps.saves[i] != want[i] {
			t.Fatalf("saves=%v want %v", snaps.saves, want)
		}
	}
	// the duplicate id merged twice; the saved tree reflects the final state
	v, ok, err := snaps.Load(context.Background(), "users/1")
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if got := field(t, v, "name"); got != "dup" {
		t.Fatalf("name=%v want dup", got)
	}
}

func TestSnapshotFailuresAndDrops(t *testing.T) {
	t.Run("save_error", func(t *testing.T) {
		rec := &hookRecorder{}
		snaps := newMemSnapshots()
		snaps.err = errors.New("disk full")
		s := newTestStore(t, func(o *Options) {
			o.Snapshots = snaps
			o.Hooks = rec
		})
		if _, err := s.Resolve("k", 1, FetchOptions{}); err != nil {
			t.Fatalf("snapshot errors must not fail resolution: %v", err)
		}
		_ = s.Close(context.Background())
		if rec.snapErrs != 1 {
			t.Fatalf("SnapshotFailed fired %d times", rec.snapErrs)
		}
	})

	t.Run("queue_full", func(t *testing.T) {
		rec := &hookRecorder{}
		snaps := newMemSnapshots()
		snaps.gate = make(chan struct{})
		s := newTestStore(t, func(o *Options) {
			o.Snapshots = snaps
			o.Hooks = rec
			o.SnapshotQueue = 1
		})
		// the worker takes the first save and blocks; the second fills the
		// queue; the rest are dropped
		for i := 0; i < 5; i++ {
			if _, err := s.Resolve("k", i, FetchOptions{}); err != nil {
				t.Fatalf("Resolve: %v", err)
			}
		}
		close(snaps.gate)
		_ = s.Close(context.Background())

		rec.mu.Lock()
		dropped := rec.dropped
		rec.mu.Unlock()
		if dropped < 3 || dropped+len(snaps.saves) != 5 {
			t.Fatalf("dropped=%d saved=%d", dropped, len(snaps.saves))
		}
	})
}

func TestWarm(t *testing.T) {
	ctx := context.Background()
	snaps := newMemSnapshots()
	p := value.NewObject("Person")
	p.Set("id", value.Scalar{V: 1})
	p.Set("name", value.Scalar{V: "Persisted"})
	snaps.trees["users/1"] = value.Dump(p)
	snaps.trees["users/2"] = value.Dump(value.Scalar{V: "stale"})

	s := newTestStore(t, func(o *Options) { o.Snapshots = snaps })

	// users/2 is resolved live before warming; the snapshot must not win
	live, err := s.Resolve("users/2", map[string]any{"id": 2}, FetchOptions{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	sc := NewScope()
	d := deferred()
	s.Cache(d, "users/1", FetchOptions{}).Bind(sc, "user")
	if _, ok := sc.Get("user"); ok {
		t.Fatalf("nothing should be bound before warming")
	}

	if err := s.Warm(ctx, "users/1", "users/2", "users/3", ""); err != nil {
		t.Fatalf("Warm: %v", err)
	}

	warmed := mustGet(t, sc, "user")
	if got := field(t, warmed, "name"); got != "Persisted" {
		t.Fatalf("name=%v", got)
	}
	if mustObject(t, warmed).Type() != "Person" {
		t.Fatalf("type tag lost")
	}
	if cur, _ := s.Peek("users/2"); cur != live {
		t.Fatalf("warm overwrote a live value")
	}
	if _, ok := s.Peek("users/3"); ok {
		t.Fatalf("missing snapshot should stay a miss")
	}
	if n := snaps.loads.Load(); n != 2 {
		t.Fatalf("loads=%d want 2 (users/2 already live)", n)
	}

	// the live fetch still merges into the warmed identity
	d.Resolve(map[string]any{"id": 1, "name": "Fresh"})
	if mustGet(t, sc, "user") != warmed || field(t, warmed, "name") != "Fresh" {
		t.Fatalf("live fetch did not merge into warmed value")
	}
}

type failingSnapshots struct{ memSnapshots }

func (*failingSnapshots) Load(context.Context, string) (value.Value, bool, error) {
	return nil, false, errors.New("backend down")
}

func TestWarmErrorsAreJoined(t *testing.T) {
	s := newTestStore(t, func(o *Options) { o.Snapshots = &failingSnapshots{} })
	err := s.Warm(context.Background(), "a", "b")
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); got != "warm \"a\": backend down\nwarm \"b\": backend down" {
		t.Fatalf("err=%q", got)
	}
}

func TestWarmWithoutSnapshotterIsNoop(t *testing.T) {
	s := newTestStore(t, nil)
	if err := s.Warm(context.Background(), "a"); err != nil {
		t.Fatalf("Warm: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("warm without snapshotter created entries")
	}
}
