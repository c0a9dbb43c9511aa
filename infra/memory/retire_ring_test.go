package memory

import (
	"sync"
	"testing"
)

type box struct {
	id    int
	reset bool
}

func (b *box) Reset() { b.reset = true }

func TestRetireRingBasic(t *testing.T) {
	r := NewRetireRing(4)
	b1 := &box{id: 1}
	b2 := &box{id: 2}

	if !r.Enqueue(b1) || !r.Enqueue(b2) {
		t.Fatal("enqueue failed unexpectedly")
	}
	if r.Dequeue() != b1 {
		t.Error("expected first dequeue to be b1")
	}
	if r.Dequeue() != b2 {
		t.Error("expected second dequeue to be b2")
	}
	if r.Dequeue() != nil {
		t.Error("expected empty ring to return nil")
	}
}

func TestRetireRingFull(t *testing.T) {
	r := NewRetireRing(2)
	if !r.Enqueue(&box{}) || !r.Enqueue(&box{}) {
		t.Fatal("ring should accept up to capacity")
	}
	if r.Enqueue(&box{}) {
		t.Error("full ring must reject, not overwrite")
	}
	r.Dequeue()
	if !r.Enqueue(&box{}) {
		t.Error("ring should accept after a dequeue")
	}
}

func TestRetireRingWrapAround(t *testing.T) {
	r := NewRetireRing(4)
	for i := 0; i < 100; i++ {
		if !r.Enqueue(&box{id: i}) {
			t.Fatalf("enqueue %d failed", i)
		}
		got := r.Dequeue()
		if got.(*box).id != i {
			t.Fatalf("wrap-around broke ordering at %d", i)
		}
	}
}

func TestRetireRingSizeMustBePowerOfTwo(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("non power-of-two size should panic")
		}
	}()
	NewRetireRing(6)
}

func TestPoolResetsOnPut(t *testing.T) {
	pool := NewPool(func() *box { return &box{} })

	b := pool.Get()
	b.id = 7
	pool.Put(b)
	if !b.reset {
		t.Error("Put should reset the object")
	}
}

func TestDrainReturnsAll(t *testing.T) {
	pool := NewPool(func() *box { return &box{} })
	r := NewRetireRing(8)

	for i := 0; i < 5; i++ {
		r.Enqueue(&box{id: i})
	}
	if n := Drain(r, pool); n != 5 {
		t.Errorf("expected 5 drained, got %d", n)
	}
	if n := Drain(r, pool); n != 0 {
		t.Errorf("second drain should be empty, got %d", n)
	}
}

// Single producer, single consumer under concurrency. Every object
// enqueued must come out exactly once, in order.
func TestRetireRingSPSC(t *testing.T) {
	r := NewRetireRing(1 << 10)
	const total = 100000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		next := 0
		for next < total {
			v := r.Dequeue()
			if v == nil {
				continue
			}
			if v.(*box).id != next {
				t.Errorf("out of order: got %d want %d", v.(*box).id, next)
				return
			}
			next++
		}
	}()

	for i := 0; i < total; {
		if r.Enqueue(&box{id: i}) {
			i++
		}
	}
	wg.Wait()
}
