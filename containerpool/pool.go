// Package containerpool wraps core's fixed-block size-class allocator
// (core/pool.go, spec §4.C) behind sync.Pool-style Get/Put ergonomics, for
// callers who would otherwise reach for sync.Pool directly and want the
// same "acquire, use, give back" shape without re-deriving the {64B, 256B}
// class split themselves.
//
// Grounded on the teacher's core/connection_pool.go per-address free-list
// pattern, generalized here one layer further: per-size-class byte blocks
// instead of per-address net.Conn values.
package containerpool

import "github.com/kcenon/container-system-sub003/core"

// Pool is a Get/Put front end over a core.Pool.
type Pool struct {
	inner *core.Pool
}

// New builds a Pool backed by a fresh core.Pool with the given per-class
// capacity. capacity <= 0 uses core's default (4096 blocks per class).
func New(capacity int) *Pool {
	return &Pool{inner: core.NewPool(capacity)}
}

// Get acquires a zeroed buffer of at least size bytes and a put-back
// closure. Unlike sync.Pool.Get/Put, the put-back is bound to the specific
// block returned — callers cannot accidentally return the wrong buffer to
// the wrong class.
func (p *Pool) Get(size int) (buf []byte, put func(), err error) {
	block, err := p.inner.Acquire(size)
	if err != nil {
		return nil, nil, err
	}
	return block.Bytes(), func() { p.inner.Release(block) }, nil
}

// Stats reports per-class hit/miss/allocation counters (core.PoolStats).
func (p *Pool) Stats() []core.PoolStats {
	return p.inner.Stats()
}

// Default is a process-wide Pool for callers that don't need an isolated
// instance, mirroring the ergonomics of a package-level sync.Pool.
var Default = New(0)

// Get acquires from Default.
func Get(size int) (buf []byte, put func(), err error) {
	return Default.Get(size)
}
