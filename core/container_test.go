package core

import (
	"sync"
	"testing"
)

func TestSetGetRoundTrip(t *testing.T) {
	c := NewContainer(sampleHeader())
	if err := c.Set("name", NewString("name", "bob")); err != nil {
		t.Fatal(err)
	}
	v, err := c.Get("name")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	s, err := v.Str()
	if err != nil || s != "bob" {
		t.Fatalf("Str: %q %v", s, err)
	}
}

func TestSetRejectsEmptyKey(t *testing.T) {
	c := NewContainer(sampleHeader())
	if err := c.Set("", NewInt("", 1)); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestSetReplacesInPlace(t *testing.T) {
	c := NewContainer(sampleHeader())
	if err := c.Set("x", NewInt("x", 1)); err != nil {
		t.Fatal(err)
	}
	if err := c.Set("x", NewInt("x", 2)); err != nil {
		t.Fatal(err)
	}
	if c.Size() != 1 {
		t.Fatalf("expected replace in place, size = %d", c.Size())
	}
	x, err := Get[int32](c, "x")
	if err != nil || x != 2 {
		t.Fatalf("expected 2, got %d %v", x, err)
	}
}

func TestSetInvalidatesRecentCache(t *testing.T) {
	c := NewContainer(sampleHeader())
	if err := c.Set("x", NewInt("x", 1)); err != nil {
		t.Fatal(err)
	}
	if x, err := Get[int32](c, "x"); err != nil || x != 1 {
		t.Fatalf("expected 1, got %d %v", x, err)
	}
	// The read above populated c.recent; Set must evict that entry so the
	// next Get does not return the stale cached value.
	if err := c.Set("x", NewInt("x", 2)); err != nil {
		t.Fatal(err)
	}
	if x, err := Get[int32](c, "x"); err != nil || x != 2 {
		t.Fatalf("expected updated value 2 after Set invalidated the cache, got %d %v", x, err)
	}
}

func TestSetAllInvalidatesRecentCache(t *testing.T) {
	c := NewContainer(sampleHeader())
	if err := c.Set("x", NewInt("x", 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := Get[int32](c, "x"); err != nil {
		t.Fatal(err)
	}
	if err := c.SetAll(map[string]Value{"x": NewInt("x", 9)}); err != nil {
		t.Fatal(err)
	}
	if x, err := Get[int32](c, "x"); err != nil || x != 9 {
		t.Fatalf("expected updated value 9 after SetAll invalidated the cache, got %d %v", x, err)
	}
}

func TestGetMissingKeyErrors(t *testing.T) {
	c := NewContainer(sampleHeader())
	if _, err := c.Get("nope"); err == nil {
		t.Fatal("expected KeyNotFound error")
	}
}

func TestRemove(t *testing.T) {
	c := NewContainer(sampleHeader())
	if err := c.Set("x", NewInt("x", 1)); err != nil {
		t.Fatal(err)
	}
	if err := c.Remove("x"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if c.Contains("x") {
		t.Fatal("expected x to be removed")
	}
	if err := c.Remove("x"); err == nil {
		t.Fatal("expected KeyNotFound removing again")
	}
}

func TestDuplicateNamesRetainedGetReturnsFirst(t *testing.T) {
	c := NewContainer(sampleHeader())
	if err := c.BulkInsert([]Value{NewInt("dup", 1), NewInt("dup", 2)}); err != nil {
		t.Fatal(err)
	}
	v, err := Get[int32](c, "dup")
	if err != nil || v != 1 {
		t.Fatalf("expected first match (1), got %d %v", v, err)
	}
	if c.Size() != 2 {
		t.Fatalf("expected both duplicates retained, size = %d", c.Size())
	}
}

func TestCloneIsIndependent(t *testing.T) {
	c := NewContainer(sampleHeader())
	if err := c.Set("x", NewInt("x", 1)); err != nil {
		t.Fatal(err)
	}
	clone := c.Clone()
	if err := clone.Set("x", NewInt("x", 99)); err != nil {
		t.Fatal(err)
	}
	orig, err := Get[int32](c, "x")
	if err != nil || orig != 1 {
		t.Fatalf("expected original untouched, got %d %v", orig, err)
	}
	cloned, err := Get[int32](clone, "x")
	if err != nil || cloned != 99 {
		t.Fatalf("expected clone mutated, got %d %v", cloned, err)
	}
}

func TestSwapHeader(t *testing.T) {
	c := NewContainer(sampleHeader())
	origSource, origTarget := c.Header.SourceID, c.Header.TargetID
	c.SwapHeader()
	if c.Header.SourceID != origTarget || c.Header.TargetID != origSource {
		t.Fatalf("expected swapped header, got %+v", c.Header)
	}
}

func TestIterateStopsEarly(t *testing.T) {
	c := NewContainer(sampleHeader())
	if err := c.BulkInsert([]Value{NewInt("a", 1), NewInt("b", 2), NewInt("c", 3)}); err != nil {
		t.Fatal(err)
	}
	var seen int
	c.Iterate(func(v Value) bool {
		seen++
		return seen < 2
	})
	if seen != 2 {
		t.Fatalf("expected iteration to stop after 2, got %d", seen)
	}
}

// TestSnapshotReadUnderConcurrentWrite is spec §8's lock-free reader
// scenario: 1,000 reads via Reader.View running concurrently with 1,000
// writes, with every observed snapshot internally consistent.
func TestSnapshotReadUnderConcurrentWrite(t *testing.T) {
	c := NewContainer(sampleHeader())
	if err := c.Set("counter", NewInt("counter", 0)); err != nil {
		t.Fatal(err)
	}

	const n = 1000
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		reader := c.NewReader()
		defer reader.Close()
		for i := 0; i < n; i++ {
			reader.View(func(snap *SnapshotView) {
				if _, ok := snap.Get("counter"); !ok {
					t.Error("expected counter present in every snapshot")
				}
				if snap.Size() < 1 {
					t.Error("expected at least one value in every snapshot")
				}
			})
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			if err := c.Set("counter", NewInt("counter", int32(i))); err != nil {
				t.Errorf("Set: %v", err)
			}
		}
	}()

	wg.Wait()
}

func TestAllocStatsTracksPoolAndHeap(t *testing.T) {
	c := NewContainer(sampleHeader())
	if err := c.Set("small", NewInt("small", 1)); err != nil {
		t.Fatal(err)
	}
	big := make([]byte, 4096)
	if err := c.Set("big", NewBytes("big", big)); err != nil {
		t.Fatal(err)
	}
	stats := c.AllocStats()
	if stats.HeapAllocs == 0 {
		t.Fatalf("expected at least one heap allocation for the oversized blob, got %+v", stats)
	}
}

// TestReplacedPoolBlockSurvivesWhileSnapshotRetiring guards against
// releasing a replaced Value's pool block back to the allocator before the
// snapshot that may still reference it clears the epoch grace period: a
// concurrent Reader holding that snapshot must keep seeing its original
// bytes, not a zeroed buffer handed out to some other Acquire.
func TestReplacedPoolBlockSurvivesWhileSnapshotRetiring(t *testing.T) {
	c := NewContainer(sampleHeader())
	if err := c.Set("payload", NewBytes("payload", []byte("hello"))); err != nil {
		t.Fatal(err)
	}

	reader := c.NewReader()
	defer reader.Close()

	var snapValue Value
	reader.View(func(snap *SnapshotView) {
		v, ok := snap.Get("payload")
		if !ok {
			t.Fatal("expected payload present in snapshot")
		}
		snapValue = v
	})

	before := defaultPool.Stats()

	if err := c.Set("payload", NewBytes("payload", []byte("world"))); err != nil {
		t.Fatal(err)
	}

	if globalEpochReclaimer.pendingReclamation() == 0 {
		t.Fatal("expected the old snapshot to be held pending while the reader is still registered")
	}

	after := defaultPool.Stats()
	for i := range before {
		if after[i].Available > before[i].Available {
			t.Fatalf("class %dB: replaced block was released to the pool before the grace period elapsed", after[i].ClassSize)
		}
	}

	got, err := snapValue.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("expected retained snapshot value to still read %q, got %q", "hello", got)
	}
}
