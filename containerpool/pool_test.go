package containerpool

import "testing"

func TestGetPutRoundTrip(t *testing.T) {
	p := New(4)
	buf, put, err := p.Get(32)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(buf) < 32 {
		t.Fatalf("expected buffer of at least 32 bytes, got %d", len(buf))
	}
	for _, b := range buf {
		if b != 0 {
			t.Fatalf("expected zeroed buffer, got %v", buf)
		}
	}
	put()
}

func TestGetExhaustsClassCap(t *testing.T) {
	p := New(2)
	var puts []func()
	for i := 0; i < 2; i++ {
		_, put, err := p.Get(16)
		if err != nil {
			t.Fatalf("unexpected exhaustion on iteration %d: %v", i, err)
		}
		puts = append(puts, put)
	}
	if _, _, err := p.Get(16); err == nil {
		t.Fatal("expected pool exhaustion error past class cap")
	}
	for _, put := range puts {
		put()
	}
	if _, _, err := p.Get(16); err != nil {
		t.Fatalf("expected Get to succeed after releasing blocks: %v", err)
	}
}

func TestStatsReportsBothClasses(t *testing.T) {
	p := New(4)
	_, put, err := p.Get(200)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer put()

	stats := p.Stats()
	if len(stats) != 2 {
		t.Fatalf("expected 2 size classes, got %d", len(stats))
	}
}

func TestPackageLevelDefault(t *testing.T) {
	buf, put, err := Get(10)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(buf) == 0 {
		t.Fatal("expected non-empty buffer")
	}
	put()
}
