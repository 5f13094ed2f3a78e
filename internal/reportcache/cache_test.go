package reportcache

import (
	"encoding/json"
	"testing"
)

func TestCachePutAndLoadRoundTrip(t *testing.T) {
	c, err := NewCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	key := Key{AbsolutePath: "/dumps/abc.json", FileLength: 4096, LastWriteUTCTicks: 638000000000000000}
	sections := []Section{
		{Pointer: "/threads", Value: json.RawMessage(`[{"id":1}]`)},
		{Pointer: "/modules", Value: json.RawMessage(`[{"name":"a"}]`)},
	}

	if c.Has(key) {
		t.Fatalf("expected fresh cache to not have key yet")
	}

	if _, err := c.Put(key, sections); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !c.Has(key) {
		t.Fatalf("expected Has to report true after Put")
	}

	loaded, err := c.Load(key)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != len(sections) {
		t.Fatalf("expected %d sections, got %d", len(sections), len(loaded))
	}
	for i, s := range loaded {
		if s.Pointer != sections[i].Pointer {
			t.Fatalf("pointer mismatch at %d: got %q want %q", i, s.Pointer, sections[i].Pointer)
		}
	}
}

func TestKeyDigestStableForSameInputs(t *testing.T) {
	k1 := Key{AbsolutePath: "/a", FileLength: 10, LastWriteUTCTicks: 1}
	k2 := Key{AbsolutePath: "/a", FileLength: 10, LastWriteUTCTicks: 1}
	k3 := Key{AbsolutePath: "/a", FileLength: 10, LastWriteUTCTicks: 2}

	if k1.Digest() != k2.Digest() {
		t.Fatalf("expected identical keys to produce identical digests")
	}
	if k1.Digest() == k3.Digest() {
		t.Fatalf("expected different last-write ticks to change the digest")
	}
}
