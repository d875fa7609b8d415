package progskeet

import (
	"sync/atomic"
	"time"

	"github.com/juju/errors"
	progskeet_config "github.com/temoto/progskeet/hardware/progskeet/config"
	"github.com/temoto/progskeet/helpers"
	"github.com/temoto/progskeet/helpers/atomic_clock"
	"github.com/temoto/progskeet/log2"
)

const modName string = "progskeet"

const Version = "0.0.1"

var ErrClosed = errors.New("progskeet handle closed")

// Handle drives one device. Not safe for concurrent use except Cancel().
type Handle struct {
	// atomic align, keep first
	stat     Stat
	lastSync atomic_clock.Clock
	backoff  helpers.Backoff

	Log *log2.Log

	t     Transporter
	tx    txQueue
	rx    rxSchedule
	state deviceState
	xform addrTransform

	cancel uint32
	closed bool

	retryLimit int
	stallLimit int
	baseline   ConfigFlag
}

type Stat struct {
	BytesSent     uint64
	BytesReceived uint64
	// duration of last successful Sync
	LastSync time.Duration

	Sync   uint32
	Reset  uint32
	Cancel uint32
	Error  uint32
	Retry  uint32
	Elided uint32
}

// New takes ownership of transport and brings device to baseline with Reset().
// On error transport is closed.
func New(t Transporter, c *progskeet_config.Config, log *log2.Log) (*Handle, error) {
	if t == nil {
		return nil, errors.NotValidf("transport nil")
	}
	if c == nil {
		c = &progskeet_config.Config{}
	}
	if err := c.Validate(); err != nil {
		_ = t.Close()
		return nil, errors.Annotatef(err, "%s open", modName)
	}
	log = log.Or()
	if c.LogDebug && log != nil {
		log = log.Clone(log2.LDebug)
	}
	self := &Handle{
		Log:        log,
		t:          t,
		tx:         newTxQueue(c.Capacity()),
		xform:      addrIdentity,
		retryLimit: c.Retries(),
		stallLimit: c.StallLimit,
		backoff: helpers.Backoff{
			Min: c.RetryDelayMin(),
			Max: c.RetryDelayMax(),
			K:   2,
		},
	}
	self.baseline = ConfigFlag(c.Delay()) & CONFIG_DELAY_MASK
	if !c.ByteMode {
		self.baseline |= CONFIG_WORD
	}

	if err := self.Reset(); err != nil {
		err = errors.Annotatef(err, "%s open", modName)
		if cerr := t.Close(); cerr != nil {
			err = errors.Annotate(err, cerr.Error())
		}
		return nil, err
	}
	return self, nil
}

func (self *Handle) check() error {
	if self == nil {
		return errors.NotValidf("%s handle nil", modName)
	}
	if self.closed {
		return ErrClosed
	}
	return nil
}

// Close discards pending commands and releases transport.
func (self *Handle) Close() error {
	if err := self.check(); err != nil {
		return err
	}
	self.Log.Infof("%s closing device, discard tx=%d rx=%d", modName, self.tx.Len(), self.rx.Len())
	self.tx.reset()
	self.rx.reset()
	self.closed = true
	return errors.Annotatef(self.t.Close(), "%s close", modName)
}

// Reset re-claims device (if transport supports it), drops pending work and
// drives device and state cache to baseline: address 0, GPIO 0 all inputs, default config.
func (self *Handle) Reset() error {
	if err := self.check(); err != nil {
		return err
	}
	self.Log.Infof("%s resetting device", modName)
	atomic.AddUint32(&self.stat.Reset, 1)
	if r, ok := self.t.(Resetter); ok {
		if err := r.Reset(); err != nil {
			self.Log.Errorf("%s reset failed err=%v", modName, err)
			return errors.Annotate(err, "transport reset")
		}
	}

	self.tx.reset()
	self.rx.reset()
	atomic.StoreUint32(&self.cancel, 0)
	self.state.invalidate()
	self.xform = addrIdentity

	if err := self.SetAddr(0, false); err != nil {
		return errors.Annotate(err, "reset")
	}
	if err := self.SetGPIO(0); err != nil {
		return errors.Annotate(err, "reset")
	}
	if err := self.SetGPIODir(0); err != nil {
		return errors.Annotate(err, "reset")
	}
	if err := self.SetConfig(uint8(self.baseline&CONFIG_DELAY_MASK), self.baseline&configFlagsMask); err != nil {
		return errors.Annotate(err, "reset")
	}
	return errors.Annotate(self.Sync(), "reset")
}

// Cancel requests running or next Sync to stop at transfer boundary.
// Safe to call from another goroutine.
func (self *Handle) Cancel() error {
	if self == nil {
		return errors.NotValidf("%s handle nil", modName)
	}
	atomic.StoreUint32(&self.cancel, 1)
	return nil
}

func (self *Handle) cancelled() bool { return atomic.LoadUint32(&self.cancel) != 0 }

// SetAddrTransform sets mask and add applied to every address until next Reset.
func (self *Handle) SetAddrTransform(mask, add uint32) error {
	if err := self.check(); err != nil {
		return err
	}
	self.xform = addrTransform{mask: mask, add: add}
	return nil
}

// Pending returns bytes queued for send and bytes expected from device.
func (self *Handle) Pending() (tx int, rx int) {
	if self == nil {
		return 0, 0
	}
	return self.tx.Len(), self.rx.Len()
}

// Config returns config byte as it will be on device after Sync.
func (self *Handle) Config() ConfigFlag {
	if self == nil {
		return 0
	}
	return self.state.config
}

// GPIOCached returns GPIO output value as it will be on device after Sync.
func (self *Handle) GPIOCached() uint16 {
	if self == nil {
		return 0
	}
	return self.state.gpio
}

func (self *Handle) Stat() Stat {
	if self == nil {
		return Stat{}
	}
	return Stat{
		Sync:          atomic.LoadUint32(&self.stat.Sync),
		Reset:         atomic.LoadUint32(&self.stat.Reset),
		Cancel:        atomic.LoadUint32(&self.stat.Cancel),
		Error:         atomic.LoadUint32(&self.stat.Error),
		Retry:         atomic.LoadUint32(&self.stat.Retry),
		Elided:        atomic.LoadUint32(&self.stat.Elided),
		BytesSent:     atomic.LoadUint64(&self.stat.BytesSent),
		BytesReceived: atomic.LoadUint64(&self.stat.BytesReceived),
		LastSync:      time.Duration(atomic.LoadInt64((*int64)(&self.stat.LastSync))),
	}
}
