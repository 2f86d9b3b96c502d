package core

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestPoolAcquireReuse(t *testing.T) {
	p := NewPool(2)

	b1, err := p.Acquire(32)
	if err != nil {
		t.Fatalf("acquire1: %v", err)
	}
	p.Release(b1)
	stats := p.Stats()
	if stats[0].Available != 1 {
		t.Fatalf("expected 1 available, got %d", stats[0].Available)
	}

	b2, err := p.Acquire(10)
	if err != nil {
		t.Fatalf("acquire2: %v", err)
	}
	if &b2.buf[0] != &b1.buf[0] {
		t.Fatalf("expected reused backing array")
	}
	if stats := p.Stats(); stats[0].Hits != 1 {
		t.Fatalf("expected 1 hit, got %d", stats[0].Hits)
	}
}

func TestPoolExhaustion(t *testing.T) {
	p := NewPool(2)
	if _, err := p.Acquire(32); err != nil {
		t.Fatalf("acquire1: %v", err)
	}
	if _, err := p.Acquire(32); err != nil {
		t.Fatalf("acquire2 (still within cap, none released): %v", err)
	}
	if _, err := p.Acquire(32); err == nil {
		t.Fatalf("expected PoolExhausted on third acquire past cap")
	} else if info, ok := err.(*ErrorInfo); !ok || info.Code != CodePoolExhausted {
		t.Fatalf("expected CodePoolExhausted, got %v", err)
	}
}

func TestPoolClassSelection(t *testing.T) {
	p := NewPool(4)
	b, err := p.Acquire(200)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if len(b.buf) != 256 {
		t.Fatalf("expected 256B class buffer, got %d", len(b.buf))
	}
	if _, err := p.Acquire(300); err == nil {
		t.Fatalf("expected error for size beyond largest class")
	}
}

func TestAllocPayloadSmallUsesPool(t *testing.T) {
	data := []byte("hello")
	blob, block, heap := allocPayload(data)
	if heap {
		t.Fatalf("expected pool-backed allocation for small payload")
	}
	if block == nil {
		t.Fatalf("expected non-nil pool block")
	}
	if string(blob) != "hello" {
		t.Fatalf("unexpected blob contents: %q", blob)
	}
}

func TestPoolEvictIdleReclaimsOldFreeBlocks(t *testing.T) {
	mock := clock.NewMock()
	p := NewPoolWithClock(4, mock)

	b, err := p.Acquire(32)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	p.Release(b)
	if stats := p.Stats(); stats[0].Available != 1 {
		t.Fatalf("expected 1 available before eviction, got %d", stats[0].Available)
	}

	mock.Add(time.Hour)
	evicted := p.EvictIdle(time.Minute)
	if evicted != 1 {
		t.Fatalf("expected 1 block evicted, got %d", evicted)
	}
	stats := p.Stats()
	if stats[0].Available != 0 {
		t.Fatalf("expected 0 available after eviction, got %d", stats[0].Available)
	}
	if stats[0].Evicted != 1 {
		t.Fatalf("expected Evicted counter to be 1, got %d", stats[0].Evicted)
	}

	if _, err := p.Acquire(32); err != nil {
		t.Fatalf("expected capacity freed up after eviction, got error: %v", err)
	}
}

func TestAllocPayloadLargeUsesHeap(t *testing.T) {
	data := make([]byte, 128)
	blob, block, heap := allocPayload(data)
	if !heap {
		t.Fatalf("expected heap allocation for payload over the small-object limit")
	}
	if block != nil {
		t.Fatalf("expected nil pool block for heap allocation")
	}
	if len(blob) != 128 {
		t.Fatalf("unexpected blob length: %d", len(blob))
	}
}
