// Package pool provides typed wrappers around sync.Pool.
package pool

import (
	"sync"
)

// ReuseMemory may be switched off to make memory bugs easier to catch.
var ReuseMemory = true

type Pool[T any] struct {
	sync.Pool
	ResetFunc func(*T)
}

func NewPool[T any](
	allocFunc func() *T,
	resetFunc func(*T),
) *Pool[T] {
	return &Pool[T]{
		Pool: sync.Pool{
			New: func() any {
				return allocFunc()
			},
		},
		ResetFunc: resetFunc,
	}
}

func (p *Pool[T]) Get() *T {
	return p.Pool.Get().(*T)
}

func (p *Pool[T]) Put(items ...*T) {
	if !ReuseMemory {
		return
	}
	for _, item := range items {
		if p.ResetFunc != nil {
			p.ResetFunc(item)
		}
		p.Pool.Put(item)
	}
}

// Bytes hands out byte slices of at least the requested length.
//
// Buffers larger than MaxCap are never retained.
type Bytes struct {
	pool   *Pool[[]byte]
	MaxCap int
}

func NewBytes(maxCap int) *Bytes {
	return &Bytes{
		pool: NewPool(
			func() *[]byte {
				var b []byte
				return &b
			},
			func(b *[]byte) {
				*b = (*b)[:0]
			},
		),
		MaxCap: maxCap,
	}
}

// Get returns a slice of length size. The content is undefined.
func (p *Bytes) Get(size int) []byte {
	b := p.pool.Get()
	if cap(*b) < size {
		*b = make([]byte, size)
	}
	return (*b)[:size]
}

func (p *Bytes) Put(buf []byte) {
	if buf == nil || (p.MaxCap > 0 && cap(buf) > p.MaxCap) {
		return
	}
	p.pool.Put(&buf)
}
