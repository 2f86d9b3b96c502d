// core/epoch.go
package core

// Epoch reclaimer — defers freeing retired snapshots until every registered
// reader has observed at least two epoch advances since retirement (spec
// §4.D/§5/§9 glossary). This is process-wide, initialized lazily, and never
// torn down, per spec §9 "Global state". There is exactly one instance,
// globalEpochReclaimer; Container never constructs its own.

import (
	"sync"
	"sync/atomic"
)

// readerState is one registered reader's epoch-observation slot. A
// localEpoch of 0 means the reader is outside a critical section; any other
// value is the global epoch it observed when it last entered one.
type readerState struct {
	localEpoch atomic.Uint64
}

type retiredEntry struct {
	snap      *containerSnapshot
	stale     []Value
	retiredAt uint64
}

type epochReclaimer struct {
	global atomic.Uint64

	mu      sync.Mutex
	readers map[*readerState]struct{}
	retired []retiredEntry
}

func newEpochReclaimer() *epochReclaimer {
	return &epochReclaimer{readers: make(map[*readerState]struct{})}
}

// globalEpochReclaimer is the single process-wide reclaimer (spec §9).
var globalEpochReclaimer = newEpochReclaimer()

func (r *epochReclaimer) register() *readerState {
	rs := &readerState{}
	r.mu.Lock()
	r.readers[rs] = struct{}{}
	r.mu.Unlock()
	return rs
}

func (r *epochReclaimer) unregister(rs *readerState) {
	r.mu.Lock()
	delete(r.readers, rs)
	r.mu.Unlock()
}

// enter marks rs as having begun a read critical section at the current
// global epoch (spec §4.D step 1).
func (r *epochReclaimer) enter(rs *readerState) {
	rs.localEpoch.Store(r.global.Load() + 1) // +1: never equal to the "not reading" sentinel 0
}

// exit marks rs as outside any critical section.
func (r *epochReclaimer) exit(rs *readerState) {
	rs.localEpoch.Store(0)
}

// retire queues snap for reclamation once two epoch advances have occurred
// since this call, then attempts to advance the epoch and sweep anything
// already eligible. stale is the set of Values the mutation that produced
// snap's successor replaced or removed; their pool blocks are only freed
// once this entry itself becomes reclaimable, so a reader still viewing
// snap cannot observe a recycled, zeroed buffer.
func (r *epochReclaimer) retire(snap *containerSnapshot, stale []Value) {
	r.mu.Lock()
	r.retired = append(r.retired, retiredEntry{snap: snap, stale: stale, retiredAt: r.global.Load()})
	r.mu.Unlock()
	r.tryAdvance()
}

// tryAdvance advances the global epoch when no registered reader is still
// observing an older one, then reclaims any retired snapshot whose
// retirement epoch is at least two advances behind the current epoch (the
// grace period required by spec §4.D/§5/§9).
func (r *epochReclaimer) tryAdvance() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.global.Load()
	laggingBehindCurrent := false
	for rs := range r.readers {
		local := rs.localEpoch.Load()
		if local != 0 && local <= cur {
			laggingBehindCurrent = true
			break
		}
	}
	if !laggingBehindCurrent {
		cur = r.global.Add(1)
	}

	kept := r.retired[:0]
	for _, entry := range r.retired {
		if cur >= entry.retiredAt+2 {
			for _, v := range entry.stale {
				releaseValue(v)
			}
			continue // reclaimable: pool blocks freed, GC does the rest
		}
		kept = append(kept, entry)
	}
	r.retired = kept
}

// pendingReclamation reports how many retired snapshots are still held,
// for tests and memory telemetry.
func (r *epochReclaimer) pendingReclamation() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.retired)
}
