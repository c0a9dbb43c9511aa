package memory

import "sync/atomic"

// RetireRing is a lock-free SPSC ring buffer for retired objects.
// Producer is the owning symbol loop, consumer is the reclaim job.
type RetireRing struct {
	head  uint64
	_pad1 [56]byte
	tail  uint64
	_pad2 [56]byte
	buf   []any
	mask  uint64
}

func NewRetireRing(size uint64) *RetireRing {
	if size&(size-1) != 0 {
		panic("RetireRing size must be power of two")
	}
	return &RetireRing{
		buf:  make([]any, size),
		mask: size - 1,
	}
}

// Enqueue adds a retired object. Returns false when the ring is full;
// the producer then recycles inline instead of dropping the object.
func (r *RetireRing) Enqueue(v any) bool {
	h := atomic.LoadUint64(&r.head)
	t := atomic.LoadUint64(&r.tail)
	if h-t == uint64(len(r.buf)) {
		return false
	}
	r.buf[h&r.mask] = v
	atomic.StoreUint64(&r.head, h+1)
	return true
}

func (r *RetireRing) Dequeue() any {
	t := atomic.LoadUint64(&r.tail)
	h := atomic.LoadUint64(&r.head)
	if t == h {
		return nil
	}
	v := r.buf[t&r.mask]
	r.buf[t&r.mask] = nil
	atomic.StoreUint64(&r.tail, t+1)
	return v
}

// ReclaimablePool is the only requirement for reclamation.
type ReclaimablePool interface {
	PutAny(any)
}

// Drain moves every retired object currently in the ring back into the
// pool. Called periodically by the reclaim job.
func Drain(ring *RetireRing, pool ReclaimablePool) int {
	n := 0
	for {
		obj := ring.Dequeue()
		if obj == nil {
			return n
		}
		pool.PutAny(obj)
		n++
	}
}
