package core

import "runtime"

// Reader is a wait-free snapshot reader over a Container (spec §4.D). Create
// one per goroutine that needs lock-free reads and Close it when done — the
// pattern mirrors one OS thread registering with the epoch reclaimer at
// first use and deregistering at exit (spec §5 "Shared-resource policy").
// A finalizer backstops callers that forget to Close, since Go goroutines
// have no exit hook to deregister from automatically.
type Reader struct {
	c     *Container
	state *readerState
}

// NewReader registers a new lock-free reader against c.
func (c *Container) NewReader() *Reader {
	r := &Reader{c: c, state: globalEpochReclaimer.register()}
	runtime.SetFinalizer(r, func(r *Reader) { r.Close() })
	return r
}

// Close deregisters the reader from the epoch reclaimer. Safe to call more
// than once.
func (r *Reader) Close() {
	if r.state == nil {
		return
	}
	globalEpochReclaimer.unregister(r.state)
	r.state = nil
	runtime.SetFinalizer(r, nil)
}

// View runs fn against a consistent snapshot of the container without ever
// blocking behind a writer (spec §4.D steps 1–4). fn must not retain the
// passed *SnapshotView beyond the call.
func (r *Reader) View(fn func(*SnapshotView)) {
	globalEpochReclaimer.enter(r.state)
	defer globalEpochReclaimer.exit(r.state)

	snap := r.c.loadSnapshot()
	fn(&SnapshotView{snap: snap})
}

// SnapshotView is a read-only handle onto one immutable snapshot, valid
// only for the duration of the Reader.View callback that produced it.
type SnapshotView struct {
	snap *containerSnapshot
}

// Header returns the snapshot's header.
func (v *SnapshotView) Header() Header { return v.snap.header }

// Get returns the first Value named name as of this snapshot, with O(1)
// indexed lookup (spec §4.D step 3).
func (v *SnapshotView) Get(name string) (Value, bool) {
	pos := v.snap.firstMatch(name)
	if pos < 0 {
		return Value{}, false
	}
	return v.snap.values[pos], true
}

// Size returns the number of values in this snapshot.
func (v *SnapshotView) Size() int { return len(v.snap.values) }

// Iterate calls fn for every value in this snapshot, in insertion order.
func (v *SnapshotView) Iterate(fn func(Value) bool) {
	for _, val := range v.snap.values {
		if !fn(val) {
			return
		}
	}
}
