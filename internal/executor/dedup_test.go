package executor

import (
	"testing"
	"time"
)

func TestDedup_FirstSeenThenDuplicate(t *testing.T) {
	d := NewDedup(time.Minute)

	if d.IsDuplicate("0xaaa:1") {
		t.Fatal("first occurrence flagged as duplicate")
	}
	if !d.IsDuplicate("0xaaa:1") {
		t.Fatal("second occurrence not flagged as duplicate")
	}
	if d.IsDuplicate("0xaaa:2") {
		t.Fatal("different log index must be a distinct key")
	}
}

func TestDedup_ExpiresAfterTTL(t *testing.T) {
	d := NewDedup(10 * time.Millisecond)

	d.IsDuplicate("0xbbb:0")
	time.Sleep(20 * time.Millisecond)

	if d.IsDuplicate("0xbbb:0") {
		t.Fatal("expired key still flagged as duplicate")
	}
}

func TestDedup_CleanupRemovesExpired(t *testing.T) {
	d := NewDedup(10 * time.Millisecond)
	d.IsDuplicate("0xccc:0")
	d.IsDuplicate("0xccc:1")

	time.Sleep(20 * time.Millisecond)
	d.Cleanup()

	d.mu.Lock()
	n := len(d.seen)
	d.mu.Unlock()
	if n != 0 {
		t.Errorf("seen map has %d entries after cleanup, want 0", n)
	}
}
