package queue

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestSingleWorkerKeepsOrder(t *testing.T) {
	q := New(1, 100)
	var mu sync.Mutex
	var got []int
	for i := 0; i < 50; i++ {
		i := i
		if !q.TryPush(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}) {
			t.Fatalf("push %d rejected", i)
		}
	}
	if err := q.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(got) != 50 {
		t.Fatalf("ran %d tasks, want 50", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("out of order at %d: %v", i, got)
		}
	}
}

func TestDropsWhenFullOrClosed(t *testing.T) {
	q := New(1, 1)
	block := make(chan struct{})
	started := make(chan struct{})
	q.TryPush(func() { close(started); <-block })
	<-started

	if !q.TryPush(func() {}) {
		t.Fatalf("one slot should be free")
	}
	if q.TryPush(func() {}) {
		t.Fatalf("full queue should reject")
	}
	close(block)
	if err := q.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if q.TryPush(func() {}) {
		t.Fatalf("closed queue should reject")
	}
}

func TestCloseHonorsContext(t *testing.T) {
	q := New(1, 1)
	block := make(chan struct{})
	defer close(block)
	q.TryPush(func() { <-block })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := q.Close(ctx); err == nil {
		t.Fatalf("Close should time out while a task blocks")
	}
}
