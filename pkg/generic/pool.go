// Package generic holds small typed helpers over standard containers.
package generic

import "sync"

// Pool is a typed sync.Pool. Values are reset before they are handed back
// out; values rejected by the limit are dropped instead of pooled.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	keep  func(T) bool
}

func NewPool[T any](generate func() T) *Pool[T] {
	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				return generate()
			},
		},
	}
}

// WithReset sets the function applied to every value on Put.
func (p *Pool[T]) WithReset(reset func(T)) *Pool[T] {
	p.reset = reset
	return p
}

// WithLimit sets a predicate deciding whether a returned value is kept.
func (p *Pool[T]) WithLimit(keep func(T) bool) *Pool[T] {
	p.keep = keep
	return p
}

func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(value T) {
	if p.keep != nil && !p.keep(value) {
		return
	}
	if p.reset != nil {
		p.reset(value)
	}
	p.pool.Put(value)
}
