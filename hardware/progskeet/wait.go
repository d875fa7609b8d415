package progskeet

import (
	"time"

	"github.com/juju/errors"
)

// Nop makes device idle for given number of 1/48us ticks.
func (self *Handle) Nop(ticks uint64) error {
	if err := self.check(); err != nil {
		return err
	}
	if ticks == 0 {
		return nil
	}
	full := ticks / nopCountSentinel
	tail := ticks % nopCountSentinel
	commands := full
	if tail > 0 {
		commands++
	}
	// check before allocating, tick counts can be huge
	if err := self.tx.reserve(int(2 * commands)); err != nil {
		return errors.Annotatef(err, "Nop ticks=%d", ticks)
	}
	cmd := make([]byte, 0, 2*commands)
	for _, c := range chunkCounts(ticks, nopCountSentinel) {
		cmd = append(cmd, byte(COMMAND_NOP), byte(c))
	}
	return errors.Annotatef(self.tx.append(cmd), "Nop ticks=%d", ticks)
}

// NsTicks never rounds down: ceil(ns/tick)+1.
func NsTicks(ns uint64) uint64 {
	return (ns*TicksPerUs+999)/1000 + 1
}

func (self *Handle) WaitNs(ns uint32) error { return self.Nop(NsTicks(uint64(ns))) }
func (self *Handle) WaitUs(us uint32) error { return self.Nop(uint64(us) * TicksPerUs) }
func (self *Handle) WaitMs(ms uint32) error { return self.Nop(uint64(ms) * TicksPerMs) }
func (self *Handle) Wait(seconds uint32) error {
	return self.Nop(uint64(seconds) * TicksPerSecond)
}

// Sleep queues device side delay of at least d, using the coarsest exact unit.
func (self *Handle) Sleep(d time.Duration) error {
	if err := self.check(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	var ticks uint64
	switch {
	case d%time.Second == 0:
		ticks = uint64(d/time.Second) * TicksPerSecond
	case d%time.Millisecond == 0:
		ticks = uint64(d/time.Millisecond) * TicksPerMs
	case d%time.Microsecond == 0:
		ticks = uint64(d/time.Microsecond) * TicksPerUs
	default:
		ticks = NsTicks(uint64(d))
	}
	return self.Nop(ticks)
}
