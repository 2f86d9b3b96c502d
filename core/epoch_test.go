package core

import "testing"

func TestEpochReclaimerAdvancesWithNoReaders(t *testing.T) {
	r := newEpochReclaimer()
	for i := 0; i < 5; i++ {
		r.retire(&containerSnapshot{}, nil)
	}
	// The last retirement has seen only one advance; one more clears its
	// two-epoch grace period.
	r.tryAdvance()
	if got := r.pendingReclamation(); got != 0 {
		t.Fatalf("expected all retired snapshots reclaimed with no readers, got %d pending", got)
	}
}

func TestEpochReclaimerHoldsSnapshotWhileReaderActive(t *testing.T) {
	r := newEpochReclaimer()
	rs := r.register()
	defer r.unregister(rs)

	r.enter(rs)
	r.retire(&containerSnapshot{}, nil)
	if got := r.pendingReclamation(); got == 0 {
		t.Fatal("expected retired snapshot to be held while a reader is active")
	}
	r.exit(rs)

	// Advancing twice more clears the grace period.
	r.tryAdvance()
	r.tryAdvance()
	if got := r.pendingReclamation(); got != 0 {
		t.Fatalf("expected snapshot reclaimed after reader exits, got %d pending", got)
	}
}

func TestReaderViewSeesConsistentSnapshot(t *testing.T) {
	c := NewContainer(sampleHeader())
	if err := c.Set("x", NewInt("x", 1)); err != nil {
		t.Fatal(err)
	}

	reader := c.NewReader()
	defer reader.Close()

	var sawValue int32
	reader.View(func(snap *SnapshotView) {
		v, ok := snap.Get("x")
		if !ok {
			t.Fatal("expected x present in snapshot")
		}
		n, err := v.Int32()
		if err != nil {
			t.Fatal(err)
		}
		sawValue = n
	})
	if sawValue != 1 {
		t.Fatalf("expected 1, got %d", sawValue)
	}

	if err := c.Set("x", NewInt("x", 2)); err != nil {
		t.Fatal(err)
	}
	reader.View(func(snap *SnapshotView) {
		v, _ := snap.Get("x")
		n, _ := v.Int32()
		sawValue = n
	})
	if sawValue != 2 {
		t.Fatalf("expected updated snapshot value 2, got %d", sawValue)
	}
}
