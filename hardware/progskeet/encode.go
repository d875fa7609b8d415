package progskeet

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/juju/errors"
)

// chunkCounts splits n units into protocol count fields:
// full chunks carry sentinel (max) count, tail carries remainder, empty tail omitted.
func chunkCounts(n uint64, sentinel uint64) []uint64 {
	if n == 0 {
		return nil
	}
	counts := make([]uint64, 0, n/sentinel+1)
	for n >= sentinel {
		counts = append(counts, sentinel)
		n -= sentinel
	}
	if n > 0 {
		counts = append(counts, n)
	}
	return counts
}

func cycleHeader(cmd Command_t, count uint64) []byte {
	h := []byte{byte(cmd), 0, 0}
	binary.LittleEndian.PutUint16(h[1:], uint16(count))
	return h
}

func (self *Handle) elided(what string) {
	atomic.AddUint32(&self.stat.Elided, 1)
	self.Log.Debugf("%s %s unchanged, skip", modName, what)
}

// EnqueueTx appends raw protocol bytes.
func (self *Handle) EnqueueTx(data ...byte) error {
	if err := self.check(); err != nil {
		return err
	}
	return errors.Trace(self.tx.append(data))
}

// EnqueueRx schedules next len(dst) inbound bytes into dst.
// Caller must not touch dst until Sync returns.
func (self *Handle) EnqueueRx(dst []byte) error {
	if err := self.check(); err != nil {
		return err
	}
	self.rx.push(rxDesc{dst: dst})
	return nil
}

// SetAddr sets (transformed) address for following read/write cycles.
// autoInc makes device increment address after every cycle.
func (self *Handle) SetAddr(addr uint32, autoInc bool) error {
	if err := self.check(); err != nil {
		return err
	}
	if addr > addrMask {
		return errors.NotValidf("address=%06x > max=%06x", addr, addrMask)
	}
	eff := self.xform.apply(addr)
	if autoInc {
		eff |= ADDR_AUTO_INC
	}
	if self.state.sameAddr(eff) {
		self.elided("address")
		return nil
	}
	cmd := []byte{byte(COMMAND_SET_ADDR), byte(eff), byte(eff >> 8), byte(eff >> 16)}
	if err := self.tx.append(cmd); err != nil {
		return errors.Annotatef(err, "SetAddr address=%06x", addr)
	}
	self.state.setAddr(eff)
	return nil
}

// SetConfig sets strobe delay (low nibble) and mode flags.
func (self *Handle) SetConfig(delay uint8, flags ConfigFlag) error {
	if err := self.check(); err != nil {
		return err
	}
	if ConfigFlag(delay) > CONFIG_DELAY_MASK {
		return errors.NotValidf("config delay=%d > max=%d", delay, CONFIG_DELAY_MASK)
	}
	if flags&^(configFlagsMask|CONFIG_DELAY_MASK) != 0 {
		return errors.NotValidf("config flags=%02x", byte(flags))
	}
	cfg := flags&configFlagsMask | ConfigFlag(delay)
	if self.state.sameConfig(cfg) {
		self.elided("config")
		return nil
	}
	if err := self.tx.append([]byte{byte(COMMAND_SET_CONFIG), byte(cfg)}); err != nil {
		return errors.Annotatef(err, "SetConfig %s", cfg.String())
	}
	self.state.setConfig(cfg)
	return nil
}

func (self *Handle) SetGPIO(value uint16) error {
	if err := self.check(); err != nil {
		return err
	}
	if self.state.sameGPIO(value) {
		self.elided("gpio")
		return nil
	}
	if err := self.tx.append([]byte{byte(COMMAND_SET_GPIO), byte(value), byte(value >> 8)}); err != nil {
		return errors.Annotatef(err, "SetGPIO value=%04x", value)
	}
	self.state.setGPIO(value)
	return nil
}

// SetGPIODir sets pin directions, bit 1 = output.
func (self *Handle) SetGPIODir(dir uint16) error {
	if err := self.check(); err != nil {
		return err
	}
	if self.state.sameGPIODir(dir) {
		self.elided("gpio dir")
		return nil
	}
	if err := self.tx.append([]byte{byte(COMMAND_SET_GPIO_DIR), byte(dir), byte(dir >> 8)}); err != nil {
		return errors.Annotatef(err, "SetGPIODir dir=%04x", dir)
	}
	self.state.setGPIODir(dir)
	return nil
}

func (self *Handle) AssertGPIO(bits uint16) error {
	if err := self.check(); err != nil {
		return err
	}
	return self.SetGPIO(self.state.gpio | bits)
}

func (self *Handle) DeassertGPIO(bits uint16) error {
	if err := self.check(); err != nil {
		return err
	}
	return self.SetGPIO(self.state.gpio &^ bits)
}

// GetGPIO reads pin levels into *dst during next Sync.
func (self *Handle) GetGPIO(dst *uint16) error {
	if err := self.check(); err != nil {
		return err
	}
	if dst == nil {
		return errors.NotValidf("GetGPIO dst nil")
	}
	if err := self.tx.append([]byte{byte(COMMAND_GET_GPIO)}); err != nil {
		return errors.Annotate(err, "GetGPIO")
	}
	self.rx.push(rxDesc{dst: make([]byte, 2), word: dst})
	return nil
}

// WaitGPIO makes device block until (gpio & mask) == (value & mask).
// Zero mask is no-op.
func (self *Handle) WaitGPIO(mask, value uint16) error {
	if err := self.check(); err != nil {
		return err
	}
	if mask == 0 {
		return nil
	}
	cmd := []byte{byte(COMMAND_WAIT_GPIO), byte(value), byte(value >> 8), byte(mask), byte(mask >> 8)}
	return errors.Annotatef(self.tx.append(cmd), "WaitGPIO mask=%04x value=%04x", mask, value)
}

func (self *Handle) elements(op string, n int) (uint64, error) {
	size := self.state.elementSize()
	if n%size != 0 {
		return 0, errors.NotValidf("%s length=%d not multiple of element size=%d", op, n, size)
	}
	return uint64(n / size), nil
}

// Write queues write cycles for buf at current address.
// Length is bytes, must be even in word mode.
func (self *Handle) Write(buf []byte) error {
	if err := self.check(); err != nil {
		return err
	}
	n, err := self.elements("Write", len(buf))
	if err != nil {
		return err
	}
	size := uint64(self.state.elementSize())
	counts := chunkCounts(n, countSentinel)
	parts := make([][]byte, 0, 2*len(counts))
	offset := uint64(0)
	for _, c := range counts {
		parts = append(parts, cycleHeader(COMMAND_WRITE_CYCLE, c), buf[offset:offset+c*size])
		offset += c * size
	}
	return errors.Annotatef(self.tx.append(parts...), "Write length=%d", len(buf))
}

// Read queues read cycles at current address, buf is filled during next Sync.
// Caller must not touch buf until Sync returns.
func (self *Handle) Read(buf []byte) error {
	if err := self.check(); err != nil {
		return err
	}
	n, err := self.elements("Read", len(buf))
	if err != nil {
		return err
	}
	size := uint64(self.state.elementSize())
	counts := chunkCounts(n, countSentinel)
	parts := make([][]byte, 0, len(counts))
	descs := make([]rxDesc, 0, len(counts))
	offset := uint64(0)
	for _, c := range counts {
		parts = append(parts, cycleHeader(COMMAND_READ_CYCLE, c))
		descs = append(descs, rxDesc{dst: buf[offset : offset+c*size]})
		offset += c * size
	}
	if err := self.tx.append(parts...); err != nil {
		return errors.Annotatef(err, "Read length=%d", len(buf))
	}
	self.rx.push(descs...)
	return nil
}

// SetData queues single write cycle with one element.
func (self *Handle) SetData(data uint16) error {
	if err := self.check(); err != nil {
		return err
	}
	cmd := cycleHeader(COMMAND_WRITE_CYCLE, 1)
	cmd = append(cmd, byte(data))
	if self.state.elementSize() == 2 {
		cmd = append(cmd, byte(data>>8))
	}
	return errors.Annotatef(self.tx.append(cmd), "SetData data=%04x", data)
}

// atomic runs f and rolls back queue, schedule and state cache if it fails.
func (self *Handle) atomic(f func() error) error {
	txLen, rxLen, rxTotal, state := self.tx.Len(), len(self.rx.list), self.rx.total, self.state
	err := f()
	if err != nil {
		self.tx.buf = self.tx.buf[:txLen]
		self.rx.list = self.rx.list[:rxLen]
		self.rx.total = rxTotal
		self.state = state
	}
	return err
}

func (self *Handle) WriteAt(addr uint32, buf []byte) error {
	if err := self.check(); err != nil {
		return err
	}
	return self.atomic(func() error {
		if err := self.SetAddr(addr, false); err != nil {
			return err
		}
		return self.Write(buf)
	})
}

func (self *Handle) ReadAt(addr uint32, buf []byte) error {
	if err := self.check(); err != nil {
		return err
	}
	return self.atomic(func() error {
		if err := self.SetAddr(addr, false); err != nil {
			return err
		}
		return self.Read(buf)
	})
}

// WriteWordAt writes 16 bit value little endian at addr.
func (self *Handle) WriteWordAt(addr uint32, data uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], data)
	return self.WriteAt(addr, buf[:])
}

// ReadWordAt reads 16 bit value little endian at addr into *dst during next Sync.
func (self *Handle) ReadWordAt(addr uint32, dst *uint16) error {
	if err := self.check(); err != nil {
		return err
	}
	if dst == nil {
		return errors.NotValidf("ReadWordAt dst nil")
	}
	return self.atomic(func() error {
		if err := self.SetAddr(addr, false); err != nil {
			return err
		}
		n, err := self.elements("ReadWordAt", 2)
		if err != nil {
			return err
		}
		if err := self.tx.append(cycleHeader(COMMAND_READ_CYCLE, n)); err != nil {
			return errors.Annotatef(err, "ReadWordAt address=%06x", addr)
		}
		self.rx.push(rxDesc{dst: make([]byte, 2), word: dst})
		return nil
	})
}
