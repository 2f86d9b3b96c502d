package core

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)



// Header carries the routing/addressing fields of a Container (spec §3.3).
// All fields are UTF-8 strings and are escaped by every codec on emit.
type Header struct {
	SourceID     string
	SourceSubID  string
	TargetID     string
	TargetSubID  string
	MessageType  string
	Version      string
}

// Container is an ordered, keyed collection of Values with a routing
// Header, a hash index over names, and two optional accelerator caches
// (spec §3.3). It is always safe for concurrent locked access (spec §5:
// "there is no opt-out runtime flag"); lock-free snapshot access is
// available through Reader (snapshot_reader.go).
type Container struct {
	Header Header

	mu     sync.RWMutex
	values []Value
	index  map[uint64][]int // xxhash(name) -> positions, insertion order

	recent *lru.Cache[string, Value] // recently-read value cache
	exists *existsCache              // bloom-or-map key-existence cache

	snapshot atomic.Pointer[containerSnapshot]

	heapAllocs  atomic.Uint64
	stackAllocs atomic.Uint64
	poolHits    atomic.Uint64
	poolMisses  atomic.Uint64

	reads  atomic.Uint64
	writes atomic.Uint64
}

const defaultRecentCacheSize = 128

// NewContainer builds an empty Container with the given header.
func NewContainer(h Header) *Container {
	recent, _ := lru.New[string, Value](defaultRecentCacheSize)
	c := &Container{
		Header: h,
		index:  make(map[uint64][]int),
		recent: recent,
		exists: newExistsCache(1024),
	}
	c.publishSnapshot(nil)
	return c
}

func hashName(name string) uint64 {
	return xxhash.Sum64String(name)
}

// Size returns the number of stored values, including duplicates.
func (c *Container) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}

// Empty reports whether the container holds no values.
func (c *Container) Empty() bool {
	return c.Size() == 0
}

// recordWrite bumps write-path telemetry and republishes the RCU snapshot.
// stale holds any Values this mutation replaced or removed: their pool
// blocks must not be freed until the snapshot that could still be observing
// them clears the epoch grace period (see publishSnapshot, epoch.go).
// Must be called with mu held for writing.
func (c *Container) recordWrite(stale ...Value) {
	c.writes.Add(1)
	recordWriteMetric()
	c.publishSnapshot(stale)
}

func (c *Container) trackAlloc(v Value) {
	if v.heap {
		c.heapAllocs.Add(1)
	} else if v.pooled != nil {
		c.stackAllocs.Add(1)
		c.poolHits.Add(1)
	}
}

// releaseValue returns v's pool block, if any, to the allocator. Invoked
// only once the epoch reclaimer (epoch.go) has confirmed no snapshot still
// retiring under the grace period can observe v (spec §3.2: values are
// immutable, replaced rather than mutated — but the old payload's pool
// block may still be aliased by a lock-free reader's snapshot until then).
func releaseValue(v Value) {
	if v.pooled != nil {
		defaultPool.Release(v.pooled)
	}
}

// AllocStats reports the heap/stack/pool counters from spec §3.3's metadata
// fields.
type AllocStats struct {
	HeapAllocs  uint64
	StackAllocs uint64
	PoolHits    uint64
	PoolMisses  uint64
}

func (c *Container) AllocStats() AllocStats {
	return AllocStats{
		HeapAllocs:  c.heapAllocs.Load(),
		StackAllocs: c.stackAllocs.Load(),
		PoolHits:    c.poolHits.Load(),
		PoolMisses:  c.poolMisses.Load(),
	}
}

// SwapHeader swaps source/target addressing fields, for reply routing
// (spec §4.B).
func (c *Container) SwapHeader() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Header.SourceID, c.Header.TargetID = c.Header.TargetID, c.Header.SourceID
	c.Header.SourceSubID, c.Header.TargetSubID = c.Header.TargetSubID, c.Header.SourceSubID
	c.recordWrite()
}

// Clone returns an independent copy of c: a fresh Container with the same
// header and values, its own hash index and caches, and its own copies of
// pool-backed bytes/string payloads. Nested container and array values are
// shared references, as with NewContainerValue. Exposed for callers that
// need an owned copy before mutating it further.
// Grounded on the teacher's TxPool.Snapshot() copy-before-return pattern
// (core/txpool_snapshot.go), generalized from a slice copy to a full
// Container copy.
func (c *Container) Clone() *Container {
	recordCopy()
	c.mu.RLock()
	defer c.mu.RUnlock()

	cp := NewContainer(c.Header)
	cp.values = make([]Value, len(c.values))
	copy(cp.values, c.values)
	for i, v := range cp.values {
		if v.pooled != nil {
			cp.values[i].blob, cp.values[i].pooled, cp.values[i].heap = allocPayload(v.blob)
		}
		cp.exists.add(v.name)
	}
	cp.index = make(map[uint64][]int, len(c.index))
	for h, positions := range c.index {
		dup := make([]int, len(positions))
		copy(dup, positions)
		cp.index[h] = dup
	}
	cp.publishSnapshot(nil)
	return cp
}
