// Package idempotency provides exactly-once guards for settlement
// writes. A refund correction must never be issued twice for the same
// invoice; the ledger is the final check-before-write barrier behind the
// composer's eligibility guard.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// Key builds a deterministic idempotency key for a settlement write.
// Same inputs always produce the same key.
func Key(operation, voNumber, invoiceNumber string) string {
	data := strings.Join([]string{operation, voNumber, invoiceNumber}, "|")
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// Ledger records completed one-shot operations for the lifetime of the
// process. Entries are monotonic: once acquired, a key stays acquired.
type Ledger struct {
	mu   sync.Mutex
	done map[string]time.Time
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{done: make(map[string]time.Time)}
}

// Acquire marks key as done and reports whether this call was the first
// to do so. The check and the mark happen under one lock, so exactly one
// caller ever wins.
func (l *Ledger) Acquire(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.done[key]; ok {
		return false
	}
	l.done[key] = time.Now().UTC()
	return true
}

// Done reports whether key has been acquired.
func (l *Ledger) Done(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.done[key]
	return ok
}

// Restore pre-marks a key as done, for seeding from records that already
// carry a generated refund.
func (l *Ledger) Restore(key string, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.done[key]; !ok {
		l.done[key] = at
	}
}

// Len returns the number of recorded operations.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.done)
}
