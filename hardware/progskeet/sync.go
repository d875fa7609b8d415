package progskeet

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/progskeet/helpers/atomic_clock"
)

var ErrCancelled = errors.New("sync cancelled")
var ErrStall = errors.New("transport stalled")

func IsCancelled(err error) bool { return errors.Cause(err) == ErrCancelled }

type transportError struct {
	Phase string // send/receive
	Done  int
	Total int
	Err   error
}

func (e *transportError) Error() string {
	return fmt.Sprintf("%s failed done=%d total=%d err=%v", e.Phase, e.Done, e.Total, e.Err)
}

func IsTransportError(err error) bool {
	_, ok := errors.Cause(err).(*transportError)
	return ok
}

// Sync sends whole transmit queue, then fills every scheduled read destination.
// On any error pending work is discarded and state cache invalidated,
// so next commands are sent unconditionally.
func (self *Handle) Sync() error {
	if err := self.check(); err != nil {
		return err
	}
	defer atomic.StoreUint32(&self.cancel, 0)

	txLen, rxLen := self.tx.Len(), self.rx.Len()
	if txLen == 0 && rxLen == 0 {
		return nil
	}
	tbegin := atomic_clock.Now()
	self.backoff.Reset()

	err := self.flush()
	if err == nil {
		err = self.drain()
	}
	self.tx.reset()
	self.rx.reset()
	if err != nil {
		self.state.invalidate()
		if IsCancelled(err) {
			atomic.AddUint32(&self.stat.Cancel, 1)
			self.Log.Infof("%s sync cancelled", modName)
		} else {
			atomic.AddUint32(&self.stat.Error, 1)
			self.Log.Errorf("%s sync err=%v", modName, err)
		}
		return errors.Annotatef(err, "%s sync tx=%d rx=%d", modName, txLen, rxLen)
	}

	duration := self.lastSync.Stamp(tbegin)
	atomic.StoreInt64((*int64)(&self.stat.LastSync), int64(duration))
	atomic.AddUint32(&self.stat.Sync, 1)
	self.Log.Debugf("%s sync tx=%d rx=%d duration=%v", modName, txLen, rxLen, duration)
	return nil
}

// SyncContext is Sync with external deadline: done ctx cancels running transfer.
func (self *Handle) SyncContext(ctx context.Context) error {
	if err := self.check(); err != nil {
		return err
	}
	if ctx.Err() != nil {
		self.Cancel()
	}
	a := alive.NewAlive()
	a.Add(1)
	go func() {
		defer a.Done()
		select {
		case <-ctx.Done():
			_ = self.Cancel()
		case <-a.StopChan():
		}
	}()
	err := self.Sync()
	a.Stop()
	a.Wait()
	// watcher may have fired after Sync finished
	atomic.StoreUint32(&self.cancel, 0)
	if IsCancelled(err) && ctx.Err() != nil {
		err = errors.Annotate(err, ctx.Err().Error())
	}
	return err
}

// LastSyncAt returns time of last successful Sync, zero if none.
func (self *Handle) LastSyncAt() time.Time {
	if self == nil {
		return time.Time{}
	}
	return self.lastSync.Time()
}

// retry accounts one failed or empty transport call.
// Returns non-nil when budget is exhausted.
func (self *Handle) retry(phase string, done, total int, err error, failures, stalls *int) error {
	if err == nil {
		*stalls++
		if self.stallLimit > 0 && *stalls >= self.stallLimit {
			return &transportError{Phase: phase, Done: done, Total: total, Err: errors.Annotatef(ErrStall, "zero transfers=%d", *stalls)}
		}
		self.Log.Debugf("%s %s zero transfer done=%d total=%d", modName, phase, done, total)
		return nil
	}
	*failures++
	if *failures > self.retryLimit {
		return &transportError{Phase: phase, Done: done, Total: total, Err: err}
	}
	atomic.AddUint32(&self.stat.Retry, 1)
	delay := self.backoff.Next()
	self.Log.Errorf("%s %s retry=%d/%d done=%d total=%d delay=%v err=%v",
		modName, phase, *failures, self.retryLimit, done, total, delay, err)
	// Cancel interrupts delay, caller loop reports it
	self.backoff.SleepUnless(delay, self.cancelled)
	return nil
}

func (self *Handle) flush() error {
	data := self.tx.Bytes()
	done, failures, stalls := 0, 0, 0
	for done < len(data) {
		if self.cancelled() {
			return errors.Annotatef(ErrCancelled, "send done=%d total=%d", done, len(data))
		}
		n, err := self.t.Send(data[done:])
		if n < 0 || n > len(data)-done {
			return errors.Trace(&transportError{Phase: "send", Done: done, Total: len(data),
				Err: errors.NotValidf("transport returned n=%d", n)})
		}
		done += n
		atomic.AddUint64(&self.stat.BytesSent, uint64(n))
		if err != nil || n == 0 {
			if rerr := self.retry("send", done, len(data), err, &failures, &stalls); rerr != nil {
				return errors.Trace(rerr)
			}
			continue
		}
		if failures != 0 {
			self.backoff.Reset()
		}
		failures, stalls = 0, 0
	}
	return nil
}

// drain fills destinations in schedule order, one at a time.
// Every receive is limited to unfilled suffix of current destination,
// so cancel is observed before next destination is touched.
func (self *Handle) drain() error {
	total := self.rx.Len()
	list := self.rx.list
	idx, pos := 0, 0
	done, failures, stalls := 0, 0, 0
	for idx < len(list) {
		if self.cancelled() {
			return errors.Annotatef(ErrCancelled, "receive done=%d total=%d", done, total)
		}
		d := &list[idx]
		want := len(d.dst) - pos
		n, err := self.t.Receive(d.dst[pos:])
		if n < 0 || n > want {
			return errors.Trace(&transportError{Phase: "receive", Done: done, Total: total,
				Err: errors.NotValidf("transport returned n=%d", n)})
		}
		pos += n
		done += n
		atomic.AddUint64(&self.stat.BytesReceived, uint64(n))
		if pos == len(d.dst) {
			d.complete()
			idx++
			pos = 0
		}
		if err != nil || n == 0 {
			if rerr := self.retry("receive", done, total, err, &failures, &stalls); rerr != nil {
				return errors.Trace(rerr)
			}
			continue
		}
		if failures != 0 {
			self.backoff.Reset()
		}
		failures, stalls = 0, 0
	}
	return nil
}
