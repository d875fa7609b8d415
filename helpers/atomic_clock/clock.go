// Package atomic_clock is int64 wall clock safe for concurrent Load/Store.
// Use for time accounting, e.g. stat counters read from another goroutine.
package atomic_clock

import (
	"sync/atomic"
	"time"
)

// Zero value means never set.
type Clock struct{ v int64 }

func source() int64 { return time.Now().UnixNano() }

func Now() *Clock { return &Clock{v: source()} }

func (c *Clock) get() int64 { return atomic.LoadInt64(&c.v) }

func (c *Clock) IsZero() bool                   { return c.get() == 0 }
func (c *Clock) SetNow()                        { atomic.StoreInt64(&c.v, source()) }
func (c *Clock) Set(t time.Time)                { atomic.StoreInt64(&c.v, t.UnixNano()) }
func (c *Clock) UnixNano() int64                { return c.get() }
func (c *Clock) Sub(begin *Clock) time.Duration { return time.Duration(c.get() - begin.get()) }

// Time returns zero time.Time for zero Clock.
func (c *Clock) Time() time.Time {
	v := c.get()
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v)
}

// Stamp sets now and returns time passed since begin.
func (c *Clock) Stamp(begin *Clock) time.Duration {
	now := source()
	atomic.StoreInt64(&c.v, now)
	return time.Duration(now - begin.get())
}

func Since(begin *Clock) time.Duration { return time.Duration(source() - begin.get()) }
