package config

import "testing"

func TestDefaultsArePopulated(t *testing.T) {
	d := Defaults()
	if d.Pool.SmallClassCapacity != 4096 {
		t.Fatalf("expected small class capacity 4096, got %d", d.Pool.SmallClassCapacity)
	}
	if d.Async.ChunkSizeBytes != 64*1024 {
		t.Fatalf("expected 64 KiB chunk size, got %d", d.Async.ChunkSizeBytes)
	}
	if d.Metrics.Enabled {
		t.Fatal("expected metrics disabled by default")
	}
	if d.Logging.Level != "info" {
		t.Fatalf("expected default logging level info, got %q", d.Logging.Level)
	}
}
