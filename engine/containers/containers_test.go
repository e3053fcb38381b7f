package containers

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestRingQueue(t *testing.T) {
	q := NewRingQueue[string](2)
	if _, err := q.Dequeue(); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("expected empty error, got %v", err)
	}
	if err := q.Enqueue("a"); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue("b"); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue("c"); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected full error, got %v", err)
	}
	if v, _ := q.Peek(); v != "a" {
		t.Fatalf("peek returned %q", v)
	}
	v, _ := q.Dequeue()
	if v != "a" {
		t.Fatalf("dequeue returned %q", v)
	}
	// wrap around
	if err := q.Enqueue("c"); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"b", "c"} {
		got, err := q.Dequeue()
		if err != nil || got != want {
			t.Fatalf("expected %q, got %q (%v)", want, got, err)
		}
	}
	if !q.IsEmpty() || q.Len() != 0 {
		t.Fatal("queue should be empty")
	}
}

func TestSlotPoolAcquireReleaseAll(t *testing.T) {
	const n = 16
	p := NewSlotPool(n)
	seen := map[uint32]bool{}
	handles := make([]Handle, 0, n)
	for i := 0; i < n; i++ {
		h, err := p.Acquire()
		if err != nil {
			t.Fatal(err)
		}
		if seen[h.Index] {
			t.Fatalf("slot %d issued twice while live", h.Index)
		}
		seen[h.Index] = true
		handles = append(handles, h)
	}
	if _, err := p.Acquire(); !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
	for _, h := range handles {
		if err := p.Release(h); err != nil {
			t.Fatal(err)
		}
	}
	if p.Live() != 0 {
		t.Fatalf("expected no live slots, got %d", p.Live())
	}
	for i := 0; i < n; i++ {
		if _, err := p.Acquire(); err != nil {
			t.Fatalf("slot not returned to the pool: %v", err)
		}
	}
}

func TestSlotPoolStaleHandle(t *testing.T) {
	p := NewSlotPool(4)
	old, _ := p.Acquire()
	if err := p.Release(old); err != nil {
		t.Fatal(err)
	}
	fresh, _ := p.Acquire()
	if fresh.Index != old.Index {
		t.Fatalf("expected slot reuse, got %s after %s", fresh, old)
	}
	if p.Valid(old) {
		t.Fatal("stale handle validated against a recycled slot")
	}
	if err := p.Release(old); !errors.Is(err, ErrStaleHandle) {
		t.Fatalf("expected stale error, got %v", err)
	}
	if !p.Valid(fresh) {
		t.Fatal("fresh handle should be valid")
	}
	if p.Valid(InvalidHandle) {
		t.Fatal("invalid handle validated")
	}
	if !fresh.Assigned() || InvalidHandle.Assigned() || (Handle{}).Assigned() {
		t.Fatal("only acquired handles are assigned")
	}
}
