// Package bufpool is the production implementation of ports.RequestPool,
// built on pkg/pool's generic sync.Pool wrapper rather than a bare
// sync.Pool, for the same type-safety pkg/pool was written to give every
// other pooled type in this codebase.
package bufpool

import (
	"github.com/streamhub/streamhub/internal/core/ports"
	"github.com/streamhub/streamhub/pkg/pool"
)

const defaultScratchCapacity = 512

// Pool hands out zero-length, pre-allocated byte slices for assembling a
// sink's chunk-plus-footer write in a single Write call.
type Pool struct {
	inner *pool.Pool[*scratch]
}

type scratch struct {
	buf []byte
}

func (s *scratch) Reset() { s.buf = s.buf[:0] }

// New builds a Pool whose scratch buffers start at capacity bytes.
func New(capacity int) *Pool {
	if capacity <= 0 {
		capacity = defaultScratchCapacity
	}
	return &Pool{
		inner: pool.NewLitePool(func() *scratch {
			return &scratch{buf: make([]byte, 0, capacity)}
		}),
	}
}

// Get returns a zero-length scratch slice with spare capacity.
func (p *Pool) Get() []byte {
	return p.inner.Get().buf
}

// Put returns buf to the pool. Callers must not use buf after calling Put.
func (p *Pool) Put(buf []byte) {
	p.inner.Put(&scratch{buf: buf})
}

var _ ports.RequestPool = (*Pool)(nil)
