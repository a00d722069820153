package admission

import (
	"sync"
	"testing"
	"time"
)

func TestLimiter_SlidingWindow(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	l := NewLimiter(2)
	l.now = func() time.Time { return now }

	// Three checks within ten seconds: first two admitted, third rejected.
	if !l.Allow() {
		t.Fatal("first admission should pass")
	}
	now = base.Add(5 * time.Second)
	if !l.Allow() {
		t.Fatal("second admission should pass")
	}
	now = base.Add(10 * time.Second)
	if l.Allow() {
		t.Fatal("third admission within the window should be rejected")
	}

	// After 61 seconds the first two have expired.
	now = base.Add(61 * time.Second)
	if !l.Allow() {
		t.Fatal("admission after the window slid should pass")
	}
}

func TestLimiter_RejectionNotCounted(t *testing.T) {
	base := time.Now()
	now := base
	l := NewLimiter(1)
	l.now = func() time.Time { return now }

	l.Allow()
	for i := 0; i < 10; i++ {
		if l.Allow() {
			t.Fatal("limiter should stay saturated")
		}
	}
	now = base.Add(window + time.Second)
	if !l.Allow() {
		t.Fatal("rejected checks must not extend the window")
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	l := NewLimiter(50)
	var wg sync.WaitGroup
	admitted := make(chan struct{}, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow() {
				admitted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(admitted)
	count := 0
	for range admitted {
		count++
	}
	if count != 50 {
		t.Errorf("admitted = %d, want exactly 50", count)
	}
}

func TestGate_Capacity(t *testing.T) {
	g := NewGate(2)
	if !g.TryEnter() || !g.TryEnter() {
		t.Fatal("gate should admit up to its capacity")
	}
	if g.TryEnter() {
		t.Fatal("gate should reject at capacity")
	}
	g.Exit()
	if !g.TryEnter() {
		t.Fatal("gate should admit again after an exit")
	}
}

func TestGate_ExitClampsAtZero(t *testing.T) {
	g := NewGate(1)
	g.Exit()
	g.Exit()
	if g.Inflight() != 0 {
		t.Errorf("inflight = %d, want 0", g.Inflight())
	}
	if !g.TryEnter() {
		t.Fatal("spurious exits must not create capacity debt")
	}
	if g.TryEnter() {
		t.Fatal("spurious exits must not create extra capacity")
	}
}

func TestGate_Concurrent(t *testing.T) {
	g := NewGate(8)
	var wg sync.WaitGroup
	var mu sync.Mutex
	peak := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !g.TryEnter() {
				return
			}
			defer g.Exit()
			mu.Lock()
			if n := g.Inflight(); n > peak {
				peak = n
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	if peak > 8 {
		t.Errorf("peak inflight = %d, want <= 8", peak)
	}
	if g.Inflight() != 0 {
		t.Errorf("inflight after drain = %d, want 0", g.Inflight())
	}
}
