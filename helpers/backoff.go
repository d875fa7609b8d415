package helpers

import (
	"sync/atomic"
	"time"
)

// Limited exponential delay between retries.
// First Next() after Reset() returns Min, each following is K times longer, at most Max.
type Backoff struct {
	next int64 // atomic

	Min time.Duration
	Max time.Duration
	K   float32
	Res time.Duration // SleepUnless poll step, default=1ms
}

func (b *Backoff) Reset() { atomic.StoreInt64(&b.next, 0) }

func (b *Backoff) Next() time.Duration {
	current := time.Duration(atomic.LoadInt64(&b.next))
	if current == 0 {
		current = b.Min
	}
	current = b.limit(current)
	atomic.StoreInt64(&b.next, int64(b.limit(time.Duration(float32(current)*b.K))))
	return current
}

func (b *Backoff) limit(d time.Duration) time.Duration {
	if d < b.Min {
		d = b.Min
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d
}

// SleepUnless waits for d, checking stop every Res.
// Returns false when stop() interrupted the wait.
func (b *Backoff) SleepUnless(d time.Duration, stop func() bool) bool {
	step := b.Res
	if step <= 0 {
		step = time.Millisecond
	}
	deadline := time.Now().Add(d)
	for {
		if stop != nil && stop() {
			return false
		}
		left := time.Until(deadline)
		if left <= 0 {
			return true
		}
		if left > step {
			left = step
		}
		time.Sleep(left)
	}
}
