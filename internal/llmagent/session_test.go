package llmagent

import (
	"sync"
	"testing"
	"time"
)

func TestSessionStoreGetOrCreateIsLazyAndStable(t *testing.T) {
	store := NewSessionStore(nil)
	scope := ScopeKey{ServerURL: "https://dbg.local", SessionID: "s1", DumpID: "d1"}

	a := store.GetOrCreate(scope)
	b := store.GetOrCreate(scope)
	if a != b {
		t.Fatalf("expected the same SessionState instance for repeated access")
	}
	if store.Len() != 1 {
		t.Fatalf("expected exactly one live scope, got %d", store.Len())
	}
}

func TestSessionStoreResetRemovesScope(t *testing.T) {
	store := NewSessionStore(nil)
	scope := ScopeKey{SessionID: "s1"}
	first := store.GetOrCreate(scope)
	first.Ledger.AddOrUpdate("exec", `{}`, "k", []byte("x"), "x", []string{TagExec}, false, time.Now())

	store.Reset(scope)
	second := store.GetOrCreate(scope)
	if second == first {
		t.Fatalf("expected a fresh SessionState after reset")
	}
	if second.Ledger.Len() != 0 {
		t.Fatalf("expected fresh ledger after reset")
	}
}

func TestSessionStoreConcurrentGetOrCreateIsSafe(t *testing.T) {
	store := NewSessionStore(nil)
	scope := ScopeKey{SessionID: "concurrent"}

	var wg sync.WaitGroup
	results := make([]*SessionState, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = store.GetOrCreate(scope)
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatalf("expected all concurrent accesses to share one SessionState")
		}
	}
}
