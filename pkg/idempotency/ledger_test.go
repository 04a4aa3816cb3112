package idempotency

import (
	"sync"
	"testing"
	"time"
)

func TestKeyDeterministic(t *testing.T) {
	a := Key("refund", "VO-1", "ZZ-VO-1")
	b := Key("refund", "VO-1", "ZZ-VO-1")
	if a != b {
		t.Error("same inputs produced different keys")
	}
	if a == Key("refund", "VO-2", "ZZ-VO-2") {
		t.Error("different inputs produced the same key")
	}
	if a == Key("document", "VO-1", "ZZ-VO-1") {
		t.Error("operation not part of the key")
	}
}

func TestAcquireOnce(t *testing.T) {
	l := NewLedger()
	key := Key("refund", "VO-1", "ZZ-VO-1")

	if !l.Acquire(key) {
		t.Fatal("first Acquire lost")
	}
	if l.Acquire(key) {
		t.Error("second Acquire won")
	}
	if !l.Done(key) {
		t.Error("Done false after Acquire")
	}
}

func TestAcquireConcurrent(t *testing.T) {
	l := NewLedger()
	key := Key("refund", "VO-1", "ZZ-VO-1")

	var wg sync.WaitGroup
	wins := make(chan struct{}, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Acquire(key) {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Errorf("%d winners, want exactly 1", count)
	}
}

func TestRestore(t *testing.T) {
	l := NewLedger()
	key := Key("refund", "VO-1", "ZZ-VO-1")
	at := time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC)

	l.Restore(key, at)
	if l.Acquire(key) {
		t.Error("Acquire won after Restore")
	}
	if l.Len() != 1 {
		t.Errorf("Len = %d, want 1", l.Len())
	}

	// Restoring again keeps the original timestamp and entry.
	l.Restore(key, at.Add(time.Hour))
	if l.Len() != 1 {
		t.Errorf("Len after double restore = %d, want 1", l.Len())
	}
}
