// core/container_cache.go
package core

// Key-existence cache — a small Bloom filter over inserted names, backed by
// github.com/bits-and-blooms/bitset and github.com/cespare/xxhash/v2 (spec
// §3.3: "a key-existence cache (bloom-or-map)"). It never produces false
// negatives: a "not present" answer from the filter is trusted immediately;
// a "maybe present" answer falls through to the authoritative hash index.
// This mirrors the teacher's on-disk LRU in core/storage.go in spirit (a
// cheap accelerator in front of an authoritative store) but trades the
// teacher's hand-rolled map+mutex cache for a purpose-built probabilistic
// structure, since the contract here is membership, not value storage.

import (
	"sync"

	"github.com/bits-and-blooms/bitset"
)

const existsCacheHashes = 3

type existsCache struct {
	mu   sync.Mutex
	bits *bitset.BitSet
	m    uint64
}

func newExistsCache(bits uint) *existsCache {
	if bits == 0 {
		bits = 1024
	}
	return &existsCache{bits: bitset.New(bits), m: uint64(bits)}
}

func (e *existsCache) positions(name string) [existsCacheHashes]uint64 {
	h1 := hashName(name)
	h2 := hashName(name + "\x00salt")
	var out [existsCacheHashes]uint64
	for i := 0; i < existsCacheHashes; i++ {
		out[i] = (h1 + uint64(i)*h2) % e.m
	}
	return out
}

func (e *existsCache) add(name string) {
	pos := e.positions(name)
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range pos {
		e.bits.Set(uint(p))
	}
}

// maybeContains reports false only when name is definitely absent. A true
// result means the index must still be consulted.
func (e *existsCache) maybeContains(name string) bool {
	pos := e.positions(name)
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range pos {
		if !e.bits.Test(uint(p)) {
			return false
		}
	}
	return true
}

// reset clears the filter, used when a container's full key set changes
// shape enough that stale bits would no longer help (e.g. after a bulk
// remove, where the filter cannot selectively clear bits it set for other
// still-present keys sharing the same positions).
func (e *existsCache) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bits.ClearAll()
}
