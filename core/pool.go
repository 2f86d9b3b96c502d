// core/pool.go
package core

// Pool allocator — fixed-block free lists for the {64B, 256B} size classes
// described in spec §4.C. Adapted from a per-address connection free list
// pattern: instead of net.Conn keyed by remote address, each class keeps
// a capped slice of reusable byte blocks guarded by its own mutex. Acquiring
// past the class cap returns PoolExhausted; the caller is expected to fall
// back to the general allocator (spec §4.C, §7 resource-fault policy).

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

const defaultClassCapacity = 4096

// poolBlock is a block checked out of a class free list. Pool.Release
// returns it to the class it came from; cross-class or cross-Pool release is
// a programming error and is not supported (spec §4.C correctness clause).
type poolBlock struct {
	class *poolClass
	buf   []byte
}

// freeBlock pairs a reusable buffer with the time it was returned to the
// free list, so evictIdle can reclaim buffers nobody has asked for in a
// while. Grounded on the teacher's core/connection_pool.go reaper, which
// tracks net.Conn.lastUsed the same way.
type freeBlock struct {
	buf    []byte
	freeAt time.Time
}

type poolClass struct {
	size int
	cap  int
	clk  clock.Clock

	mu   sync.Mutex
	free []freeBlock

	hits      atomic.Uint64
	misses    atomic.Uint64
	allocated atomic.Uint64
	released  atomic.Uint64
	evicted   atomic.Uint64
}

func newPoolClass(size, cap int, clk clock.Clock) *poolClass {
	return &poolClass{size: size, cap: cap, clk: clk}
}

func (c *poolClass) acquire() (*poolBlock, error) {
	c.mu.Lock()
	n := len(c.free)
	if n > 0 {
		buf := c.free[n-1].buf
		c.free = c.free[:n-1]
		c.mu.Unlock()
		c.hits.Add(1)
		for i := range buf {
			buf[i] = 0
		}
		return &poolBlock{class: c, buf: buf}, nil
	}
	c.mu.Unlock()

	if int(c.allocated.Load()) >= c.cap {
		c.misses.Add(1)
		log.Errorf("pool: class %dB exhausted at cap %d", c.size, c.cap)
		return nil, errPoolExhausted("pool", c.size)
	}
	c.misses.Add(1)
	c.allocated.Add(1)
	return &poolBlock{class: c, buf: make([]byte, c.size)}, nil
}

// evictIdle removes free blocks that have sat unused for at least ttl,
// shrinking allocated so the class can grow again under its cap. Mirrors
// the teacher's reaper sweep, generalized from closing idle net.Conns to
// dropping idle byte blocks (there is nothing to close, only to forget).
func (c *poolClass) evictIdle(ttl time.Duration) int {
	cutoff := c.clk.Now().Add(-ttl)
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.free[:0]
	removed := 0
	for _, fb := range c.free {
		if fb.freeAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, fb)
	}
	c.free = kept
	if removed > 0 {
		c.allocated.Add(^uint64(removed - 1)) // atomic decrement by removed
		c.evicted.Add(uint64(removed))
		log.Infof("pool: evicted %d idle %dB block(s)", removed, c.size)
	}
	return removed
}

// Bytes returns the block's backing slice, exported so callers outside this
// package (e.g. containerpool) can use an acquired block without naming its
// unexported type.
func (b *poolBlock) Bytes() []byte { return b.buf }

func (c *poolClass) release(b *poolBlock) {
	if b == nil || b.class != c {
		return
	}
	c.mu.Lock()
	c.free = append(c.free, freeBlock{buf: b.buf[:cap(b.buf)], freeAt: c.clk.Now()})
	c.mu.Unlock()
	c.released.Add(1)
}

// PoolStats mirrors spec §4.C's reporting contract for one size class.
type PoolStats struct {
	ClassSize int
	Hits      uint64
	Misses    uint64
	Allocated uint64
	Released  uint64
	Evicted   uint64
	Available int
	HitRate   float64
}

func (c *poolClass) stats() PoolStats {
	c.mu.Lock()
	avail := len(c.free)
	c.mu.Unlock()
	hits, misses := c.hits.Load(), c.misses.Load()
	total := hits + misses
	rate := 0.0
	if total > 0 {
		rate = float64(hits) / float64(total)
	}
	return PoolStats{
		ClassSize: c.size,
		Hits:      hits,
		Misses:    misses,
		Allocated: c.allocated.Load(),
		Released:  c.released.Load(),
		Evicted:   c.evicted.Load(),
		Available: avail,
		HitRate:   rate,
	}
}

// Pool is a collection of fixed-block size classes. A single process-wide
// Pool (defaultPool) backs Value small-object allocation; additional Pools
// may be constructed for isolated workloads (e.g. tests).
type Pool struct {
	class64  *poolClass
	class256 *poolClass
}

// NewPool creates a Pool with the standard {64B, 256B} classes, each capped
// at capacity blocks before PoolExhausted is returned, using the real wall
// clock for idle-eviction accounting.
func NewPool(capacity int) *Pool {
	return NewPoolWithClock(capacity, clock.New())
}

// NewPoolWithClock is NewPool with an injectable clock, for deterministic
// tests of idle-block eviction timing without sleeping (mirrors how
// core/connection_pool.go's reaper would be tested with a fake clock).
func NewPoolWithClock(capacity int, clk clock.Clock) *Pool {
	if capacity <= 0 {
		capacity = defaultClassCapacity
	}
	return &Pool{
		class64:  newPoolClass(64, capacity, clk),
		class256: newPoolClass(256, capacity, clk),
	}
}

// EvictIdle drops free blocks in every size class that have been idle for
// at least ttl, returning the total number evicted. Callers that want
// continuous reclamation should invoke this periodically (e.g. from a
// ticker), the same role the teacher's background reaper goroutine plays
// for idle connections — left to the caller here since Pool has no
// Close/lifecycle of its own to stop a background goroutine with.
func (p *Pool) EvictIdle(ttl time.Duration) int {
	return p.class64.evictIdle(ttl) + p.class256.evictIdle(ttl)
}

var defaultPool = NewPool(defaultClassCapacity)

// classFor returns the smallest class that can hold size bytes, or nil if
// size exceeds every class (the caller must use the general allocator).
func (p *Pool) classFor(size int) *poolClass {
	switch {
	case size <= 64:
		return p.class64
	case size <= 256:
		return p.class256
	default:
		return nil
	}
}

// Acquire returns a zeroed block of at least size bytes from the
// appropriate class, or PoolExhausted if that class's cap is exhausted.
func (p *Pool) Acquire(size int) (*poolBlock, error) {
	class := p.classFor(size)
	if class == nil {
		return nil, errPoolExhausted("pool", size)
	}
	return class.acquire()
}

// Release returns b to the pool it was acquired from. Releasing a block
// acquired from a different Pool is a no-op.
func (p *Pool) Release(b *poolBlock) {
	if b == nil || (b.class != p.class64 && b.class != p.class256) {
		return
	}
	b.class.release(b)
}

// Stats reports per-class statistics for telemetry (spec §4.C).
func (p *Pool) Stats() []PoolStats {
	return []PoolStats{p.class64.stats(), p.class256.stats()}
}

// allocPayload copies data into pool-backed storage when it fits the 64B
// small-object limit (spec §3.2), otherwise onto the general heap. It
// returns the backing slice, the pool block it came from (nil for heap
// allocations), and whether the allocation was heap-provenance.
func allocPayload(data []byte) (blob []byte, block *poolBlock, heap bool) {
	if len(data) > inlineSmallBlockLimit {
		blob = make([]byte, len(data))
		copy(blob, data)
		return blob, nil, true
	}
	b, err := defaultPool.Acquire(len(data))
	if err != nil {
		blob = make([]byte, len(data))
		copy(blob, data)
		return blob, nil, true
	}
	blob = b.buf[:len(data)]
	copy(blob, data)
	return blob, b, false
}
