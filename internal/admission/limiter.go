// Package admission implements the two gates every replica order must pass
// before submission: a sliding-window rate limit and an in-flight concurrency
// cap. Both gates mutate their state synchronously under a mutex, so
// concurrent event handlers can never double-admit. A gate rejection drops
// the event; the copy trader sheds load instead of buffering stale prices.
package admission

import (
	"sync"
	"time"
)

// window is the trailing interval the rate limiter counts admissions over.
const window = time.Minute

// Limiter is a sliding one-minute window rate limiter. It tracks the
// timestamps of admitted submissions and prunes expired ones lazily on each
// check. Safe for concurrent use.
type Limiter struct {
	mu         sync.Mutex
	timestamps []time.Time
	maxPerMin  int
	now        func() time.Time
}

// NewLimiter creates a Limiter that admits at most maxPerMin submissions per
// trailing minute.
func NewLimiter(maxPerMin int) *Limiter {
	return &Limiter{
		maxPerMin: maxPerMin,
		now:       time.Now,
	}
}

// Allow reports whether a submission may proceed. When it returns true the
// submission has been counted against the window.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-window)

	kept := l.timestamps[:0]
	for _, ts := range l.timestamps {
		if !ts.Before(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.timestamps = kept

	if len(l.timestamps) >= l.maxPerMin {
		return false
	}
	l.timestamps = append(l.timestamps, now)
	return true
}
