// Package memory provides allocation reuse for the hot order path:
// a typed pool for order objects and an SPSC ring that hands retired
// orders from a symbol loop to the background reclaim job.
package memory

import "sync"

// Resettable objects clear themselves before re-entering the pool.
type Resettable interface {
	Reset()
}

// Pool is a typed object pool. Get/Put are safe for concurrent use.
type Pool[T any] struct {
	p *sync.Pool
}

func NewPool[T any](ctor func() *T) *Pool[T] {
	return &Pool[T]{
		p: &sync.Pool{
			New: func() any { return ctor() },
		},
	}
}

func (p *Pool[T]) Get() *T {
	return p.p.Get().(*T)
}

func (p *Pool[T]) Put(v *T) {
	if r, ok := any(v).(Resettable); ok {
		r.Reset()
	}
	p.p.Put(v)
}

// PutAny lets a Pool[T] participate in type-erased reclamation.
func (p *Pool[T]) PutAny(v any) {
	obj, ok := v.(*T)
	if !ok {
		panic("memory.Pool: PutAny received wrong type")
	}
	p.Put(obj)
}
